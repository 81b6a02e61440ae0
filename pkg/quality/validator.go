// Package quality applies structural rules to raw record batches and scores
// record sets on a composite [0,1] quality measure (completeness, validity,
// timeliness).
package quality

import (
	"github.com/tidemark/harvest/pkg/sources"
)

// RangeRule constrains a numeric field to [Min, Max], inclusive.
type RangeRule struct {
	Min float64
	Max float64
}

// Rules declares what a valid record looks like: the fields every record must
// carry, and the numeric ranges declared fields must fall inside. Fields with
// no declared range are unconstrained.
type Rules struct {
	Required []string
	Ranges   map[string]RangeRule
}

// Validate returns the subset of batch whose records carry every required
// field (non-empty) and satisfy every declared range rule. Rejection is a
// normal outcome: a fully rejected batch yields an empty batch, not an error.
// Validate is pure; the caller records drop counts.
func Validate(batch *sources.Batch, rules Rules) *sources.Batch {
	if batch == nil || len(batch.Records) == 0 {
		return &sources.Batch{}
	}

	out := make([]sources.Record, 0, len(batch.Records))
	for _, rec := range batch.Records {
		if recordValid(rec, rules) {
			out = append(out, rec)
		}
	}
	return &sources.Batch{Records: out}
}

func recordValid(rec sources.Record, rules Rules) bool {
	for _, field := range rules.Required {
		v, ok := rec[field]
		if !ok || isEmpty(v) {
			return false
		}
	}
	for field, rng := range rules.Ranges {
		raw, ok := rec[field]
		if !ok {
			continue
		}
		v, ok := toFloat64(raw)
		if !ok {
			return false
		}
		if v < rng.Min || v > rng.Max {
			return false
		}
	}
	return true
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}

// toFloat64 attempts to convert any numeric type to float64.
// Handles float64, float32, int, int64, and int32.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}
