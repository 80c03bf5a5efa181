package models

import (
	"fmt"
	"time"
)

const (
	DefaultBatchSize    = 500
	DefaultMaxPerSecond = 200
)

// DispatchOptions control one dispatch run. Zero values fall back to the
// service defaults via Normalize.
type DispatchOptions struct {
	DryRun       bool `json:"dryRun"`
	SaveToInbox  bool `json:"saveToInbox"`
	BatchSize    int  `json:"batchSize,omitempty"`
	MaxPerSecond int  `json:"maxPerSecond,omitempty"`
}

func (o DispatchOptions) Normalize() DispatchOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxPerSecond <= 0 {
		o.MaxPerSecond = DefaultMaxPerSecond
	}
	return o
}

// Summary is the running per-job tally. It is owned by the batcher that
// created the job; everyone else reads it.
type Summary struct {
	Total         int    `json:"total"`
	Sent          int    `json:"sent"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	FailureDetail string `json:"failureDetail,omitempty"`
}

// Merge folds a chunk-level partial into the cumulative summary.
func (s *Summary) Merge(part Summary) {
	s.Sent += part.Sent
	s.Skipped += part.Skipped
	s.Failed += part.Failed
	if part.FailureDetail != "" {
		if s.FailureDetail != "" {
			s.FailureDetail += "; "
		}
		s.FailureDetail += part.FailureDetail
	}
}

type DispatchJob struct {
	ID          string          `json:"id"`
	Channel     Channel         `json:"channel"`
	TemplateID  string          `json:"templateId"`
	Segment     Segment         `json:"segment"`
	Options     DispatchOptions `json:"options"`
	RequestedBy string          `json:"requestedBy,omitempty"`
	Summary     Summary         `json:"summary"`
	CreatedAt   time.Time       `json:"created_at"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
}

// NewDispatchJobID derives the job id from the start time, template and
// channel, so a re-submitted run maps onto the same job and the ledger
// absorbs duplicates. The channel keeps a campaign's simultaneous push and
// email runs from colliding.
func NewDispatchJobID(t time.Time, templateID string, ch Channel) string {
	return fmt.Sprintf("run_%s_%s_%s", t.UTC().Format("20060102T150405"), templateID, ch)
}
