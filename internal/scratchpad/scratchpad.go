// Package scratchpad is the append-only action log of one investigation.
// The ordered sequence of entries doubles as the orchestrator's working
// memory and as the audit trail: every schema lookup, query, metric
// computation, synthesis call and error is recorded here before anything
// is returned to the caller.
package scratchpad

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/salesiq/salesiq-agent/pkg/models"
)

// Scratchpad accumulates ScratchpadEntry values in append order. Construct
// one per investigation; there is no reset and no cross-investigation
// sharing. It is not safe for concurrent use — an investigation is a single
// logical thread of control.
type Scratchpad struct {
	entries []models.ScratchpadEntry
	now     func() time.Time
}

// New returns an empty scratchpad.
func New() *Scratchpad {
	return &Scratchpad{now: time.Now}
}

// NewWithClock returns a scratchpad using the given clock, for tests that
// assert on timestamps.
func NewWithClock(now func() time.Time) *Scratchpad {
	return &Scratchpad{now: now}
}

// Append records an action and returns its sequence number. Sequence
// numbers start at 1 and are gapless. Entries are never modified after
// this call returns.
func (s *Scratchpad) Append(kind, summary, input, output string) int {
	seq := len(s.entries) + 1
	s.entries = append(s.entries, models.ScratchpadEntry{
		Seq:       seq,
		Kind:      kind,
		Summary:   summary,
		Input:     input,
		Output:    output,
		Timestamp: s.now().UTC(),
	})
	return seq
}

// Len returns the number of entries.
func (s *Scratchpad) Len() int {
	return len(s.entries)
}

// Entries returns a copy of all entries in append order.
func (s *Scratchpad) Entries() []models.ScratchpadEntry {
	out := make([]models.ScratchpadEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Last returns the most recent entry and true, or the zero entry and false
// when the scratchpad is empty.
func (s *Scratchpad) Last() (models.ScratchpadEntry, bool) {
	if len(s.entries) == 0 {
		return models.ScratchpadEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// CountKind returns how many entries have the given kind.
func (s *Scratchpad) CountKind(kind string) int {
	n := 0
	for _, e := range s.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// RenderForPrompt serializes the full log as deterministic plain text for
// the narrative synthesizer: fixed field order, entries in sequence order,
// timestamps omitted so identical investigations render identically.
func (s *Scratchpad) RenderForPrompt() string {
	var b strings.Builder
	for _, e := range s.entries {
		fmt.Fprintf(&b, "[%d] %s: %s\n", e.Seq, e.Kind, e.Summary)
		if e.Input != "" {
			writeIndented(&b, "input", e.Input)
		}
		if e.Output != "" {
			writeIndented(&b, "output", e.Output)
		}
	}
	return b.String()
}

// MarshalJSON exports the entry log, used by the CLI's JSON output mode.
func (s *Scratchpad) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Entries []models.ScratchpadEntry `json:"entries"`
	}{Entries: s.entries})
}

func writeIndented(b *strings.Builder, label, text string) {
	fmt.Fprintf(b, "    %s:\n", label)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "      %s\n", line)
	}
}
