package quality

import (
	"math"
	"time"
)

// Interaction kinds recognized by the scoring math.
const (
	KindSave     = "save"
	KindCite     = "cite"
	KindReaction = "reaction"
)

// Params holds the tunable constants of the scoring curve.
type Params struct {
	GrowthRate float64 // multiplier on save/cite value accrual
	DecayRate  float64 // per-day exponential decay on reactions
}

// DefaultParams returns the production scoring constants.
func DefaultParams() Params {
	return Params{
		GrowthRate: 1.5,
		DecayRate:  0.5,
	}
}

// Event is the scoring view of a single interaction. Weight is the raw
// engagement weight assigned at ingestion; ObservedAt is when the
// interaction was seen, not when scoring runs.
type Event struct {
	Kind       string
	Weight     float64
	ObservedAt time.Time
}

// AgeHours returns the elapsed hours between createdAt and now,
// clamped to zero under clock skew.
func AgeHours(createdAt, now time.Time) float64 {
	h := now.Sub(createdAt).Hours()
	if h < 0 {
		return 0
	}
	return h
}

// MaturityScore expresses confidence that observed interactions are
// representative rather than premature: ln(1 + ageHours/24).
// Zero at creation, strictly non-decreasing as now advances.
func MaturityScore(createdAt, now time.Time) float64 {
	return math.Log(1 + AgeHours(createdAt, now)/24)
}

// InteractionValue sums the time-weighted value of events against content
// created at contentCreatedAt, evaluated at now.
//
// Saves and cites appreciate with the time they have had to prove out:
// weight * sqrt(hoursSinceObserved + 1) * GrowthRate. Reactions depreciate:
// weight * exp(-DecayRate * timeSincePost/24). Events observed "after now"
// (skewed clocks) contribute as if observed at now.
func (p Params) InteractionValue(events []Event, contentCreatedAt, now time.Time) float64 {
	postAge := AgeHours(contentCreatedAt, now)

	total := 0.0
	for _, ev := range events {
		eventAge := AgeHours(contentCreatedAt, ev.ObservedAt)
		sincePost := postAge - eventAge
		if sincePost < 0 {
			sincePost = 0
		}

		switch ev.Kind {
		case KindSave, KindCite:
			total += ev.Weight * math.Sqrt(sincePost+1) * p.GrowthRate
		case KindReaction:
			total += ev.Weight * math.Exp(-p.DecayRate*sincePost/24)
		}
	}
	return total
}

// QualityScore is the quality integral: maturity * accumulated interaction
// value. A pure function of (createdAt, events, now) — identical inputs
// always yield identical output. Empty event sets score zero.
func (p Params) QualityScore(createdAt time.Time, events []Event, now time.Time) float64 {
	if len(events) == 0 {
		return 0
	}
	return MaturityScore(createdAt, now) * p.InteractionValue(events, createdAt, now)
}
