package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/salesiq/salesiq-agent/internal/config"
	"github.com/salesiq/salesiq-agent/internal/seed"
	"github.com/salesiq/salesiq-agent/internal/store"
)

func newSeedCmd() *cobra.Command {
	var (
		migrationsDir string
		rngSeed       int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run migrations and load the demo dataset",
		Long: `seed applies the schema migrations and replaces all data with the
deterministic demo dataset: 10 campaigns, 5 ads each, 30 days of metrics,
with a CTR drop in Campaign 5 over the final 10 days.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(false)

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if err := store.RunMigrations(cfg.Database.URL, migrationsDir); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			log.Info("migrations applied")

			pool, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()

			ds := seed.Generate(time.Now(), rngSeed)
			if err := seed.Apply(cmd.Context(), pool, ds); err != nil {
				return fmt.Errorf("seed: %w", err)
			}

			log.Info("demo data loaded",
				"campaigns", len(ds.Campaigns),
				"ads", len(ds.Ads),
				"daily_metrics", len(ds.Metrics))
			return nil
		},
	}

	cmd.Flags().StringVar(&migrationsDir, "migrations", "migrations", "path to the migrations directory")
	cmd.Flags().Int64Var(&rngSeed, "rng-seed", 42, "random seed for the generated dataset")
	return cmd
}
