package sources

import (
	"context"
	"time"
)

// Reserved record fields stamped or attached by the collection pipeline.
const (
	FieldTimestamp = "timestamp"
	FieldSourceID  = "source_id"
	FieldQuality   = "quality_score"
)

// Record represents a single collected observation as field name -> scalar value.
// Example: {"city": "Oslo", "temperature": 14.2, "timestamp": "2025-10-25T17:00:00Z", "source_id": "open-meteo"}
type Record map[string]any

// Batch is an ordered sequence of records produced by one source invocation.
// It is consumed by validation and scoring and then merged into the run's
// dataset or discarded.
type Batch struct {
	Records []Record
}

// Source is the interface that all Harvest data sources must implement.
//
// Sources are responsible for fetching raw records from an external system
// (REST API, message queue, file drop, etc.), shaping them into a Batch, and
// returning it for validation and scoring.
//
// The Fetch() call is synchronous and should respect context cancellation
// and deadlines. Sources own their own request timeouts; the engine treats
// any returned error as a failed request and moves on.
type Source interface {
	// Fetch retrieves one batch of raw records. It must handle transient
	// errors gracefully and never panic.
	Fetch(ctx context.Context) (*Batch, error)

	// Name returns a short, unique identifier for the source.
	// Example: "open-meteo", "cards-api".
	Name() string
}

// Timestamp extracts the record's collection timestamp, if present and parseable.
func (r Record) Timestamp() (time.Time, bool) {
	raw, ok := r[FieldTimestamp]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		return time.Unix(v, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// Clone returns a shallow copy of the record. Validated records are immutable
// once stored; callers that need to attach derived metadata copy first.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
