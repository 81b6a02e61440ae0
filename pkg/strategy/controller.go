// Package strategy converts observed collection performance into a pacing
// decision using a deterministic policy (success-rate bands, quality
// threshold, multiplier clamps).
package strategy

import (
	"math/rand"
	"time"
)

// Action is the qualitative band a decision falls into.
type Action int

const (
	// Steady leaves the delay multiplier unchanged.
	Steady Action = iota
	// Throttle slows the loop down after a low success rate.
	Throttle
	// Tighten signals that validation rules should be reviewed. It carries
	// no numeric change; the engine surfaces it as a policy hook.
	Tighten
	// Relax speeds the loop up when both success rate and quality are high.
	Relax
)

func (a Action) String() string {
	switch a {
	case Throttle:
		return "throttle"
	case Tighten:
		return "tighten"
	case Relax:
		return "relax"
	default:
		return "steady"
	}
}

// Policy defines how performance history is translated into pacing changes.
type Policy struct {
	// QualityThreshold is the minimum acceptable quality score before the
	// Tighten band fires. Must lie in [0,1]. Defaults to 0.7.
	QualityThreshold float64

	// SuccessFloor is the success rate below which Throttle fires.
	// Defaults to 0.7.
	SuccessFloor float64

	// RelaxSuccessAbove and RelaxQualityAbove gate the Relax band; both must
	// be exceeded. Default to 0.9 and 0.8.
	RelaxSuccessAbove float64
	RelaxQualityAbove float64

	// ThrottleFactor multiplies the delay multiplier on Throttle. Must be
	// > 1. Defaults to 1.5.
	ThrottleFactor float64

	// RelaxFactor multiplies the delay multiplier on Relax. Must be in
	// (0,1). Defaults to 0.9.
	RelaxFactor float64

	// MinMultiplier floors the delay multiplier so Relax cannot run away.
	// Defaults to 0.5.
	MinMultiplier float64
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Action     Action
	Multiplier float64
}

// Decide evaluates the policy for one completed cycle. It is a pure function
// of its inputs: identical (successRate, qualityScore, multiplier, policy)
// always yields the identical decision.
//
// Bands are evaluated in priority order, first match wins:
//  1. successRate < SuccessFloor                      -> Throttle
//  2. qualityScore < QualityThreshold                 -> Tighten
//  3. successRate > RelaxSuccessAbove &&
//     qualityScore > RelaxQualityAbove                -> Relax
//  4. otherwise                                       -> Steady
func Decide(successRate, qualityScore, multiplier float64, p Policy) Decision {
	p = sanitize(p)
	if multiplier <= 0 {
		multiplier = 1.0
	}

	switch {
	case successRate < p.SuccessFloor:
		return Decision{Action: Throttle, Multiplier: multiplier * p.ThrottleFactor}
	case qualityScore < p.QualityThreshold:
		return Decision{Action: Tighten, Multiplier: multiplier}
	case successRate > p.RelaxSuccessAbove && qualityScore > p.RelaxQualityAbove:
		next := multiplier * p.RelaxFactor
		if next < p.MinMultiplier {
			next = p.MinMultiplier
		}
		return Decision{Action: Relax, Multiplier: next}
	default:
		return Decision{Action: Steady, Multiplier: multiplier}
	}
}

// Delay computes the paced sleep for one cycle:
// base * multiplier * jitter, jitter drawn uniformly from [0.8, 1.2].
// Jitter desynchronizes concurrent collector instances hitting the same
// upstream. rng may be nil, in which case the shared global source is used.
func Delay(base time.Duration, multiplier float64, rng *rand.Rand) time.Duration {
	if base <= 0 || multiplier <= 0 {
		return 0
	}
	var jitter float64
	if rng != nil {
		jitter = 0.8 + 0.4*rng.Float64()
	} else {
		jitter = 0.8 + 0.4*rand.Float64()
	}
	return time.Duration(float64(base) * multiplier * jitter)
}

func sanitize(p Policy) Policy {
	if p.QualityThreshold <= 0 || p.QualityThreshold > 1 {
		p.QualityThreshold = 0.7
	}
	if p.SuccessFloor <= 0 || p.SuccessFloor > 1 {
		p.SuccessFloor = 0.7
	}
	if p.RelaxSuccessAbove <= 0 || p.RelaxSuccessAbove > 1 {
		p.RelaxSuccessAbove = 0.9
	}
	if p.RelaxQualityAbove <= 0 || p.RelaxQualityAbove > 1 {
		p.RelaxQualityAbove = 0.8
	}
	if p.ThrottleFactor <= 1 {
		p.ThrottleFactor = 1.5
	}
	if p.RelaxFactor <= 0 || p.RelaxFactor >= 1 {
		p.RelaxFactor = 0.9
	}
	if p.MinMultiplier <= 0 {
		p.MinMultiplier = 0.5
	}
	return p
}
