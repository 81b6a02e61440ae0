package storage

import "time"

// Snapshot is the compact, serializable result of one collection run,
// persisted at finalization and served over the status API.
type Snapshot struct {
	Run             string    `json:"run"`
	GeneratedAt     time.Time `json:"generatedAt"`
	Records         int       `json:"records"`
	TotalRequests   int       `json:"totalRequests"`
	SuccessRate     float64   `json:"successRate"`
	MeanQuality     float64   `json:"meanQuality"`
	DelayMultiplier float64   `json:"delayMultiplier"`
	QualityHistory  []float64 `json:"qualityHistory"`
	Aborted         bool      `json:"aborted"`
}

type Store interface {
	Put(Snapshot) error
	GetLatest(run string) (Snapshot, bool, error)
}
