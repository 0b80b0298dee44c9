// Package rating holds the skill-rating model and the update capabilities
// (symmetric, deviation-aware, decay, season reset) that derive new ratings
// from match outcomes. Ported from the teacher's internal/rating package
// (Elo-style expected score, Glicko-2 volatility iteration), generalized from
// "one rating dimension, average-opponent" to the full (point, deviation,
// volatility) triple with one real opponent per spec's rating-updater
// capability.
package rating

import "math"

const (
	// DefaultPoint is the beginner skill estimate on the Elo-like scale.
	DefaultPoint = 1500.0
	// DefaultDeviation is the beginner uncertainty.
	DefaultDeviation = 350.0
	// DefaultVolatility is the beginner rate-of-change of uncertainty.
	DefaultVolatility = 0.06
	// MaxDeviation bounds deviation from above; no update may push it higher.
	MaxDeviation = 350.0
)

// Rating is an immutable skill estimate. Every updater method returns a new
// value rather than mutating one in place, so a batch of pending updates can
// always be computed from an unmodified starting snapshot.
type Rating struct {
	Point      float64
	Deviation  float64
	Volatility float64
}

// Default returns the beginner rating (1500 / 350 / 0.06).
func Default() Rating {
	return Rating{Point: DefaultPoint, Deviation: DefaultDeviation, Volatility: DefaultVolatility}
}

// New constructs a Rating, clamping deviation into [0, MaxDeviation] and point
// and volatility into non-negative territory per the data-model invariants.
func New(point, deviation, volatility float64) Rating {
	return Rating{
		Point:      math.Max(0, point),
		Deviation:  clampDeviation(deviation),
		Volatility: math.Max(0, volatility),
	}
}

func clampDeviation(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > MaxDeviation {
		return MaxDeviation
	}
	return d
}

// ConservativeEstimate is a conservative projection useful for leaderboards:
// point minus two deviations.
func (r Rating) ConservativeEstimate() float64 {
	return r.Point - 2*r.Deviation
}

// Outcome is the result of a match from one participant's point of view.
type Outcome int

const (
	Loss Outcome = iota
	Draw
	Win
)

// Score maps an Outcome to its scalar value in {0, 0.5, 1}.
func (o Outcome) Score() float64 {
	switch o {
	case Win:
		return 1
	case Draw:
		return 0.5
	default:
		return 0
	}
}

func (o Outcome) String() string {
	switch o {
	case Win:
		return "win"
	case Draw:
		return "draw"
	case Loss:
		return "loss"
	default:
		return "unknown"
	}
}

// Opposite returns the outcome from the opponent's point of view.
func (o Outcome) Opposite() Outcome {
	switch o {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return Draw
	}
}

// Updater derives a new self-rating from a match against one opponent.
type Updater interface {
	// Update returns self's post-match rating given the opponent's
	// pre-match rating and self's outcome against that opponent.
	Update(self, opponent Rating, outcome Outcome) Rating
	Name() string
}
