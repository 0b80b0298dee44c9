package rating

import "math"

// SymmetricUpdater is the Elo-style update: expected score from the logistic
// curve, point moves by K times the score surprise, deviation ticks down by a
// flat factor on every match. Ported from the teacher's doGlickoUpdate/
// MultiIterationGlicko2 expected-score shape (internal/rating/rating.go),
// simplified to the spec's single-opponent form.
type SymmetricUpdater struct {
	// K is the rating-change factor. Default 32 per spec.
	K float64
}

// NewSymmetricUpdater returns a SymmetricUpdater with the default K=32.
func NewSymmetricUpdater() SymmetricUpdater {
	return SymmetricUpdater{K: 32}
}

func (u SymmetricUpdater) Name() string { return "symmetric" }

func (u SymmetricUpdater) Update(self, opponent Rating, outcome Outcome) Rating {
	k := u.K
	if k == 0 {
		k = 32
	}
	expected := 1.0 / (1.0 + math.Pow(10, (opponent.Point-self.Point)/400))
	newPoint := self.Point + k*(outcome.Score()-expected)
	// Spec preserves this informal confidence-gain rule verbatim; see
	// DESIGN.md for why it isn't replaced with a principled formula.
	newDeviation := 0.99 * self.Deviation
	return New(newPoint, newDeviation, self.Volatility)
}
