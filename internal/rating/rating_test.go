package rating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymmetricUpdater_WinLoss(t *testing.T) {
	// S4 — Minimum 1v1 symmetric update scenario from spec §8.
	u := NewSymmetricUpdater()
	selfR := Rating{Point: 1500, Deviation: 350, Volatility: 0.06}
	oppR := Rating{Point: 1500, Deviation: 350, Volatility: 0.06}

	winner := u.Update(selfR, oppR, Win)
	loser := u.Update(oppR, selfR, Loss)

	assert.InDelta(t, 1516, winner.Point, 1e-9)
	assert.InDelta(t, 346.5, winner.Deviation, 1e-9)
	assert.Greater(t, winner.Point, selfR.Point)
	assert.Less(t, loser.Point, oppR.Point)
}

func TestSymmetricUpdater_DefaultK(t *testing.T) {
	var u SymmetricUpdater // zero value, K unset
	r := u.Update(Rating{Point: 1500, Deviation: 350}, Rating{Point: 1500, Deviation: 350}, Win)
	assert.InDelta(t, 1516, r.Point, 1e-9)
}

func TestDeviationAwareUpdater_ZeroOpponentDeviation(t *testing.T) {
	u := DeviationAwareUpdater{}
	self := Rating{Point: 1500, Deviation: 200, Volatility: 0.06}
	opp := Rating{Point: 1600, Deviation: 0, Volatility: 0.06}
	got := u.Update(self, opp, Win)
	require.Equal(t, self, got, "unchanged when opponent deviation is zero")
}

func TestDeviationAwareUpdater_WinIncreasesPoint(t *testing.T) {
	u := DeviationAwareUpdater{}
	self := Rating{Point: 1500, Deviation: 200, Volatility: 0.06}
	opp := Rating{Point: 1500, Deviation: 200, Volatility: 0.06}
	got := u.Update(self, opp, Win)
	assert.Greater(t, got.Point, self.Point)
	assert.LessOrEqual(t, got.Deviation, MaxDeviation)
}

func TestDeviationAwareUpdater_DeviationNeverExceedsCeiling(t *testing.T) {
	u := DeviationAwareUpdater{}
	self := Rating{Point: 1500, Deviation: 349, Volatility: 0.06}
	opp := Rating{Point: 1500, Deviation: 349, Volatility: 0.06}
	got := u.Update(self, opp, Draw)
	assert.LessOrEqual(t, got.Deviation, MaxDeviation)
}

func TestLinearDecay_NonPositiveElapsedIsIdentity(t *testing.T) {
	d := LinearDecay{PerDay: 5, MaxDecay: 200}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Rating{Point: 1500, Deviation: 100, Volatility: 0.06}

	assert.Equal(t, r, d.Apply(r, now, now), "zero elapsed is identity")
	assert.Equal(t, r, d.Apply(r, now.Add(time.Hour), now), "negative elapsed is identity")
}

func TestLinearDecay_CapsAtMaxDecay(t *testing.T) {
	d := LinearDecay{PerDay: 100, MaxDecay: 50}
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := last.AddDate(0, 0, 10)
	r := Rating{Point: 1500, Deviation: 100, Volatility: 0.06}

	got := d.Apply(r, last, now)
	assert.InDelta(t, 1450, got.Point, 1e-9, "loss capped at MaxDecay (50), not 1000")
	assert.InDelta(t, 105, got.Deviation, 1e-9)
}

func TestSoftReset_DefaultDeviation(t *testing.T) {
	s := SoftReset{Target: 1500, Fraction: 0.5}
	got := s.Apply(Rating{Point: 1800, Deviation: 60, Volatility: 0.09})
	assert.InDelta(t, 1650, got.Point, 1e-9)
	assert.InDelta(t, 200, got.Deviation, 1e-9)
	assert.InDelta(t, 0.09, got.Volatility, 1e-9, "volatility untouched by soft reset")
}

func TestHardReset(t *testing.T) {
	// Invariant 7 from spec §8: point equals target exactly, deviation equals
	// the full-uncertainty ceiling.
	h := HardReset{Target: 1500}
	got := h.Apply(Rating{Point: 2200, Deviation: 40, Volatility: 0.02})
	assert.Equal(t, 1500.0, got.Point)
	assert.Equal(t, MaxDeviation, got.Deviation)
	assert.Equal(t, DefaultVolatility, got.Volatility)
}

func TestOutcomeScoreAndOpposite(t *testing.T) {
	assert.Equal(t, 1.0, Win.Score())
	assert.Equal(t, 0.5, Draw.Score())
	assert.Equal(t, 0.0, Loss.Score())
	assert.Equal(t, Loss, Win.Opposite())
	assert.Equal(t, Win, Loss.Opposite())
	assert.Equal(t, Draw, Draw.Opposite())
}

func TestConservativeEstimate(t *testing.T) {
	r := Rating{Point: 1500, Deviation: 100}
	assert.Equal(t, 1300.0, r.ConservativeEstimate())
}
