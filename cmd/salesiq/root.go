package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/salesiq/salesiq-agent/internal/cache"
	"github.com/salesiq/salesiq-agent/internal/config"
	"github.com/salesiq/salesiq-agent/internal/investigate"
	"github.com/salesiq/salesiq-agent/internal/llm"
	"github.com/salesiq/salesiq-agent/internal/metrics"
	"github.com/salesiq/salesiq-agent/internal/store"
	"github.com/salesiq/salesiq-agent/internal/synth"
	"github.com/salesiq/salesiq-agent/pkg/models"
)

func newRootCmd() *cobra.Command {
	var (
		output         string
		verbose        bool
		contextPairs   string
		testConnection bool
	)

	cmd := &cobra.Command{
		Use:   "salesiq [question]",
		Short: "Investigate marketing performance anomalies",
		Long: `salesiq answers questions like "Why did the CTR drop for Campaign 5?"
by querying the metrics database, comparing a recent window against a
baseline, and synthesizing a narrative report.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(verbose)

			if testConnection {
				return runTestConnection(cmd.Context(), log)
			}
			if len(args) == 0 {
				return fmt.Errorf("a question is required (or use --test-connection)")
			}

			qctx, err := parseContextPairs(contextPairs)
			if err != nil {
				return err
			}
			return runInvestigation(cmd.Context(), log, args[0], qctx, output, verbose)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file (a .json path exports the full audit trail)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging plus the action log table")
	cmd.Flags().StringVar(&contextPairs, "context", "", "extra hints as k=v,k=v (keys: campaign, metric, timeframe)")
	cmd.Flags().BoolVar(&testConnection, "test-connection", false, "check database, cache and model backend connectivity, then exit")

	cmd.AddCommand(newSeedCmd())
	return cmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func runInvestigation(ctx context.Context, log *slog.Logger, question string, qctx map[string]string, output string, verbose bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool)

	ca, err := cache.New(cfg.Redis.URL)
	if err != nil {
		log.Warn("cache disabled", "error", err)
		ca = cache.Noop{}
	}
	defer ca.Close()

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("model backend: %w", err)
	}
	sy := synth.New(client, cfg.LLM.InferenceTimeout, log)

	orch := investigate.New(st, sy,
		metrics.NewExtractor(cfg.Investigation.AnomalyThreshold),
		ca, cfg.Investigation, cfg.Database.URL, log)

	result, err := orch.Run(ctx, question, qctx)
	if result != nil && verbose {
		printActionLog(result.Entries)
	}
	if err != nil {
		return fmt.Errorf("investigation: %w", err)
	}

	return writeResult(result, output)
}

func runTestConnection(ctx context.Context, log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	schema, err := store.NewPostgresStore(pool).FetchSchema(ctx)
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	log.Info("database ok", "tables", len(schema.Tables))

	ca, err := cache.New(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer ca.Close()
	if cfg.Redis.URL != "" {
		if err := ca.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
		log.Info("cache ok")
	} else {
		log.Info("cache disabled")
	}

	client, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("model backend: %w", err)
	}
	log.Info("model backend configured", "provider", client.Name())

	fmt.Println("all connections ok")
	return nil
}

// parseContextPairs splits "k=v,k=v" into a map. Empty input yields nil.
func parseContextPairs(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid context pair %q, expected k=v", pair)
		}
		out[k] = v
	}
	return out, nil
}

// writeResult emits the report: markdown to stdout or a file, or the full
// investigation record plus audit trail when the target is a .json path.
func writeResult(result *investigate.Result, output string) error {
	if output == "" {
		fmt.Println(result.Investigation.Report.Markdown())
		return nil
	}

	var data []byte
	if strings.HasSuffix(output, ".json") {
		raw, err := json.MarshalIndent(struct {
			Investigation models.Investigation     `json:"investigation"`
			Entries       []models.ScratchpadEntry `json:"entries"`
		}{result.Investigation, result.Entries}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		data = raw
	} else {
		data = []byte(result.Investigation.Report.Markdown())
	}

	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Printf("report written to %s\n", output)
	return nil
}

// printActionLog renders the scratchpad as a table on stderr so it never
// mixes with a report piped from stdout.
func printActionLog(entries []models.ScratchpadEntry) {
	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"Seq", "Kind", "Summary"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		table.Append([]string{fmt.Sprintf("%d", e.Seq), e.Kind, e.Summary})
	}
	table.Render()
}
