package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/matchforge/internal/clock"
	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/persistence"
	"github.com/riftline/matchforge/internal/rating"
)

// S3 — party aggregation (Average).
func TestScenario_AverageAggregation(t *testing.T) {
	store := persistence.NewMemoryStore()
	clk := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := NewManager(store, AverageAggregator{}, clk)
	ctx := context.Background()

	leader, member := ident.New(), ident.New()
	require.NoError(t, store.SaveRating(ctx, leader, rating.New(1500, 300, 0.06)))
	require.NoError(t, store.SaveRating(ctx, member, rating.New(1700, 300, 0.06)))

	p, err := m.Create(ctx, leader, 5)
	require.NoError(t, err)
	_, err = m.Add(ctx, p.ID, member)
	require.NoError(t, err)

	_, derived, err := m.DerivedRating(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1600.0, derived.Rating.Point)
	assert.Equal(t, 300.0, derived.Rating.Deviation)
	assert.Equal(t, rating.DefaultVolatility, derived.Rating.Volatility)
}

func TestMaxPointAggregator(t *testing.T) {
	agg := MaxPointAggregator{}
	members := []MemberRating{
		{Rating: rating.New(1500, 100, 0.06)},
		{Rating: rating.New(1800, 50, 0.06)},
	}
	got := agg.Aggregate(members)
	assert.Equal(t, 1800.0, got.Point)
	assert.Equal(t, 50.0, got.Deviation)
}

func TestWeightedGapPenaltyAggregator_DefaultPenalty(t *testing.T) {
	agg := WeightedGapPenaltyAggregator{}
	members := []MemberRating{
		{Rating: rating.New(1400, 100, 0.06)},
		{Rating: rating.New(1800, 50, 0.06)},
	}
	got := agg.Aggregate(members)
	// avg = 1600, gap = 400, penalty 0.1 -> +40
	assert.Equal(t, 1640.0, got.Point)
	assert.Equal(t, 200.0, got.Deviation)
}

func TestPartyLifecycle_RemoveLeaderDisbands(t *testing.T) {
	store := persistence.NewMemoryStore()
	clk := clock.NewManual(time.Now())
	m := NewManager(store, AverageAggregator{}, clk)
	ctx := context.Background()

	leader, member := ident.New(), ident.New()
	p, err := m.Create(ctx, leader, 3)
	require.NoError(t, err)
	_, err = m.Add(ctx, p.ID, member)
	require.NoError(t, err)

	require.NoError(t, m.Remove(ctx, p.ID, leader))

	_, found := m.LookupByPlayer(leader)
	assert.False(t, found)
	_, found = m.LookupByPlayer(member)
	assert.False(t, found, "party disbanded when leader leaves, even if other members remain")

	_, _, err = store.LoadParty(ctx, p.ID)
	require.NoError(t, err)
}

func TestPartyLifecycle_RemoveLastMemberDisbands(t *testing.T) {
	store := persistence.NewMemoryStore()
	clk := clock.NewManual(time.Now())
	m := NewManager(store, AverageAggregator{}, clk)
	ctx := context.Background()

	leader := ident.New()
	p, err := m.Create(ctx, leader, 3)
	require.NoError(t, err)
	require.NoError(t, m.Remove(ctx, p.ID, leader))

	_, found := m.LookupByPlayer(leader)
	assert.False(t, found)
}

func TestAdd_FailsWhenFull(t *testing.T) {
	store := persistence.NewMemoryStore()
	clk := clock.NewManual(time.Now())
	m := NewManager(store, AverageAggregator{}, clk)
	ctx := context.Background()

	leader := ident.New()
	p, err := m.Create(ctx, leader, 1)
	require.NoError(t, err)

	_, err = m.Add(ctx, p.ID, ident.New())
	assert.Error(t, err)
}

func TestAdd_FailsWhenMemberAlreadyInAnotherParty(t *testing.T) {
	store := persistence.NewMemoryStore()
	clk := clock.NewManual(time.Now())
	m := NewManager(store, AverageAggregator{}, clk)
	ctx := context.Background()

	leader1, leader2 := ident.New(), ident.New()
	p1, err := m.Create(ctx, leader1, 5)
	require.NoError(t, err)
	p2, err := m.Create(ctx, leader2, 5)
	require.NoError(t, err)

	_, err = m.Add(ctx, p1.ID, leader2)
	assert.Error(t, err)
	_ = p2
}
