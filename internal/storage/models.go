package storage

import (
	"time"
)

// Publication is one per-area outcome row of the audit trail. The on-chain
// commitment stays the source of truth for idempotency; these rows exist so
// operators can inspect history without an archive node.
type Publication struct {
	IndexName   string
	Area        string
	DateNum     uint32
	Value1e6    int64
	PeriodCount int
	DatasetHash string
	Status      string
	TxHash      *string
	Error       *string
	CreatedAt   time.Time
}

// RunRecord captures the exit summary of one publish invocation.
type RunRecord struct {
	ID              int64
	DateNum         uint32
	Committed       int
	SkippedAlready  int
	SkippedNotFinal int
	Errors          int
	DryRun          bool
	CreatedAt       time.Time
}
