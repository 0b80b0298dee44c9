package rating

import "math"

// epsilon bounds how close the expected score may get to 0 or 1 before the
// variance term v = 1/(g^2*E*(1-E)) is clamped to avoid a divide-by-near-zero
// blowup. Grounded on original_source/src/mmr/algorithm.rs's explicit guard;
// the teacher's own Glicko-2 port has no such guard.
const epsilon = 1e-10

// DeviationAwareUpdater is the simplified Glicko-family update: the expected
// score and the point delta are both weighted by the opponent's deviation via
// g(sigma). The delta v*g*(score-E) with v = 1/(g^2*E*(1-E)) reduces to
// (score-E)/(g*E*(1-E)), so a higher opponent deviation (smaller g) yields a
// larger point change, not a smaller one. Ported from the teacher's g/E/volatility
// shape in internal/rating/glicko2.go, generalized from its "average
// opponent" shortcut to one real opponent per match, and cross-checked
// against other_examples/bc9cb489_swaits-glicko2 for the canonical g/E
// formulas.
type DeviationAwareUpdater struct{}

func (u DeviationAwareUpdater) Name() string { return "deviation_aware" }

// g is the deviation-discount factor from Glicko, applied to the opponent's
// deviation.
func g(deviation float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*deviation*deviation/(math.Pi*math.Pi))
}

func (u DeviationAwareUpdater) Update(self, opponent Rating, outcome Outcome) Rating {
	if opponent.Deviation == 0 {
		return self
	}

	gOpp := g(opponent.Deviation)
	expected := 1.0 / (1.0 + math.Exp(-gOpp*(self.Point-opponent.Point)/400))

	if expected < epsilon {
		expected = epsilon
	} else if expected > 1-epsilon {
		expected = 1 - epsilon
	}

	v := 1.0 / (gOpp * gOpp * expected * (1 - expected))
	delta := v * gOpp * (outcome.Score() - expected)

	newPoint := self.Point + delta
	newDeviation := math.Min(MaxDeviation, math.Sqrt(self.Deviation*self.Deviation+v))
	return New(newPoint, newDeviation, self.Volatility)
}
