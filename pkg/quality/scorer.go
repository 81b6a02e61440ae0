package quality

import (
	"time"

	"github.com/tidemark/harvest/pkg/sources"
)

// DefaultMaxAge is the age at which a batch's timeliness score reaches zero.
const DefaultMaxAge = 24 * time.Hour

// Scorer computes composite quality scores for record batches.
//
// The score is the arithmetic mean of three equally weighted sub-scores:
//   - completeness: non-missing field values / total field slots
//   - validity: fraction of records whose declared-range fields are in range
//   - timeliness: max(0, 1 - age/MaxAge), using the latest record timestamp
//
// An empty batch scores 0, not NaN. The scorer is stateless apart from its
// configuration and safe to share across cycles.
type Scorer struct {
	// Rules provides the field universe (Required) and the ranges measured
	// by the validity sub-score.
	Rules Rules

	// MaxAge is the horizon for the timeliness score. Defaults to 24h if <= 0.
	MaxAge time.Duration

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Score computes the composite quality score for one batch.
func (s *Scorer) Score(batch *sources.Batch) float64 {
	if batch == nil || len(batch.Records) == 0 {
		return 0
	}
	return s.ScoreRecords(batch.Records)
}

// ScoreRecords computes the composite score over an arbitrary record set, such
// as a run's accumulated dataset.
func (s *Scorer) ScoreRecords(records []sources.Record) float64 {
	if len(records) == 0 {
		return 0
	}

	completeness := s.completeness(records)
	validity := s.validity(records)
	timeliness := s.timeliness(records)

	return (completeness + validity + timeliness) / 3.0
}

// completeness is the ratio of present, non-empty values to total field slots.
// The field universe per record is its own fields plus every required field,
// so a record missing a required field is penalized for the empty slot.
func (s *Scorer) completeness(records []sources.Record) float64 {
	var filled, slots int
	for _, rec := range records {
		seen := make(map[string]bool, len(rec)+len(s.Rules.Required))
		for field, v := range rec {
			seen[field] = true
			slots++
			if !isEmpty(v) {
				filled++
			}
		}
		for _, field := range s.Rules.Required {
			if !seen[field] {
				slots++
			}
		}
	}
	if slots == 0 {
		return 0
	}
	return float64(filled) / float64(slots)
}

// validity is the fraction of records whose declared-range fields all satisfy
// their range. It mirrors the validator's rule as a ratio, so it still
// registers near-misses on sets the validator never filtered.
func (s *Scorer) validity(records []sources.Record) float64 {
	if len(s.Rules.Ranges) == 0 {
		return 1.0
	}
	valid := 0
	for _, rec := range records {
		ok := true
		for field, rng := range s.Rules.Ranges {
			raw, present := rec[field]
			if !present {
				continue
			}
			v, numeric := toFloat64(raw)
			if !numeric || v < rng.Min || v > rng.Max {
				ok = false
				break
			}
		}
		if ok {
			valid++
		}
	}
	return float64(valid) / float64(len(records))
}

// timeliness scores the batch by the age of its latest record timestamp:
// 1.0 when fresh, linearly down to 0 at MaxAge. Records with no parseable
// timestamp contribute nothing; a batch with none at all scores 0.
func (s *Scorer) timeliness(records []sources.Record) float64 {
	var latest time.Time
	found := false
	for _, rec := range records {
		if ts, ok := rec.Timestamp(); ok {
			if !found || ts.After(latest) {
				latest = ts
				found = true
			}
		}
	}
	if !found {
		return 0
	}

	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	age := now.Sub(latest)
	if age <= 0 {
		return 1.0
	}
	score := 1.0 - float64(age)/float64(maxAge)
	if score < 0 {
		return 0
	}
	return score
}
