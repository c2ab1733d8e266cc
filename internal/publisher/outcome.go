package publisher

import (
	"powerindex/internal/index"
	"powerindex/internal/nordpool"
)

// OutcomeKind enumerates the terminal states of the per-area publish gate.
type OutcomeKind string

const (
	OutcomePublished       OutcomeKind = "published"
	OutcomeDryRun          OutcomeKind = "dry_run"
	OutcomeSkippedAlready  OutcomeKind = "skipped_already"
	OutcomeSkippedNotFinal OutcomeKind = "skipped_not_final"
	OutcomeError           OutcomeKind = "error"
)

// Outcome is the single terminal result for one area in one run. "Not final"
// and "already committed" are ordinary data here, not errors: only genuinely
// unexpected failures populate Err.
type Outcome struct {
	Area   string
	Kind   OutcomeKind
	Result index.Result
	// Status carries the non-final auction status for OutcomeSkippedNotFinal.
	Status nordpool.Status
	// TxHash is set for OutcomePublished when the sender returned one.
	TxHash string
	// Err is the failure message for OutcomeError.
	Err string
}

// Summary tallies terminal outcomes across all areas of one invocation.
// Dry-run results count as committed, matching the operator-facing meaning
// of "this area produced a publishable value".
type Summary struct {
	DeliveryDate    string
	Committed       int
	SkippedAlready  int
	SkippedNotFinal int
	Errors          int
}

func (s *Summary) add(o Outcome) {
	switch o.Kind {
	case OutcomePublished, OutcomeDryRun:
		s.Committed++
	case OutcomeSkippedAlready:
		s.SkippedAlready++
	case OutcomeSkippedNotFinal:
		s.SkippedNotFinal++
	case OutcomeError:
		s.Errors++
	}
}
