// Package report defines the Reporter capability the collection engine hands
// its final state to, plus a file-based implementation emitting JSON, CSV and
// Markdown artifacts.
package report

import (
	"context"
	"time"

	"github.com/tidemark/harvest/pkg/sources"
)

// Summary is the immutable end-of-run statistics snapshot a Reporter receives.
// A run with zero records and Aborted == false completed successfully against
// unavailable data; Aborted distinguishes a system fault from "no data".
type Summary struct {
	Run                string    `json:"run"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
	Duration           string    `json:"duration"`
	TotalRequests      int       `json:"totalRequests"`
	SuccessfulRequests int       `json:"successfulRequests"`
	FailedRequests     int       `json:"failedRequests"`
	SuccessRate        float64   `json:"successRate"`
	MeanQuality        float64   `json:"meanQuality"`
	RecordsCollected   int       `json:"recordsCollected"`
	DelayMultiplier    float64   `json:"delayMultiplier"`
	QualityHistory     []float64 `json:"qualityHistory"`
	Aborted            bool      `json:"aborted"`
	AbortCause         string    `json:"abortCause,omitempty"`
}

// Reporter consumes the final dataset and summary exactly once per run and
// produces whatever artifacts it owns. The engine does not inspect the result
// beyond the error.
type Reporter interface {
	Report(ctx context.Context, dataset []sources.Record, summary Summary) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, dataset []sources.Record, summary Summary) error

func (f ReporterFunc) Report(ctx context.Context, dataset []sources.Record, summary Summary) error {
	return f(ctx, dataset, summary)
}
