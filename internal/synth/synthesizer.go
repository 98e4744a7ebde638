// Package synth turns investigation evidence into the five-section
// natural-language report by calling the language-model backend.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/salesiq/salesiq-agent/internal/llm"
	"github.com/salesiq/salesiq-agent/pkg/models"
)

// ErrMalformedResponse is returned when the backend response does not
// contain all five mandated sections. The orchestrator recovers from this
// by producing a degraded report.
var ErrMalformedResponse = errors.New("synthesis response missing required sections")

// Synthesizer sends evidence to the backend and parses the response.
type Synthesizer struct {
	client  llm.Client
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Synthesizer. The timeout bounds each backend call.
func New(client llm.Client, timeout time.Duration, log *slog.Logger) *Synthesizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synthesizer{client: client, timeout: timeout, log: log}
}

// Provider returns the backend name, for logging and scratchpad summaries.
func (s *Synthesizer) Provider() string {
	return s.client.Name()
}

// Synthesize builds the prompt, calls the backend once and parses the
// response into the five report sections by heading match.
func (s *Synthesizer) Synthesize(ctx context.Context, evidence string) (*models.Report, error) {
	prompt := BuildPrompt(evidence)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.log.Debug("synthesis request", "provider", s.client.Name(), "prompt_bytes", len(prompt))

	raw, err := s.client.Complete(callCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}

	report, err := ParseSections(raw)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ParseSections splits a markdown response into the five report sections
// by heading match. Heading level and case are tolerated; fewer than five
// recognized sections is ErrMalformedResponse.
func ParseSections(raw string) (*models.Report, error) {
	report := &models.Report{}
	found := 0

	var section string
	var buf []string
	flush := func() {
		if section != "" {
			report.SetSection(section, strings.TrimSpace(strings.Join(buf, "\n")))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(raw, "\n") {
		if name, ok := matchHeading(line); ok {
			flush()
			section = name
			found++
			continue
		}
		buf = append(buf, line)
	}
	flush()

	if found < len(models.ReportSections) {
		return nil, fmt.Errorf("%w: found %d of %d", ErrMalformedResponse, found, len(models.ReportSections))
	}
	return report, nil
}

// matchHeading returns the canonical section name when the line is one of
// the five mandated headings.
func matchHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "#")
	trimmed = strings.TrimSpace(trimmed)
	// Tolerate numbered headings like "1. Summary".
	if i := strings.Index(trimmed, ". "); i > 0 && i <= 2 {
		trimmed = trimmed[i+2:]
	}
	for _, name := range models.ReportSections {
		if strings.EqualFold(trimmed, name) {
			return name, true
		}
	}
	return "", false
}
