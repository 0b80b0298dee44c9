package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/matchforge/internal/clock"
	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/persistence"
	"github.com/riftline/matchforge/internal/rating"
)

// S5 — lobby lifecycle.
func TestScenario_LobbyLifecycle(t *testing.T) {
	store := persistence.NewMemoryStore()
	clk := clock.NewManual(time.Now())
	m := NewManager(store, clk)
	ctx := context.Background()

	a, b, c, d := ident.New(), ident.New(), ident.New(), ident.New()
	match := models.Match{
		ID: ident.New(),
		Entries: []models.Entry{
			models.NewSoloEntry("q", a, rating.Default(), models.Metadata{}, time.Now()),
			models.NewSoloEntry("q", b, rating.Default(), models.Metadata{}, time.Now()),
			models.NewSoloEntry("q", c, rating.Default(), models.Metadata{}, time.Now()),
			models.NewSoloEntry("q", d, rating.Default(), models.Metadata{}, time.Now()),
		},
		TeamOf: []int{0, 0, 1, 1},
	}
	l := FromMatch(match, "q")
	l, err := m.Create(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyForming, l.State)
	assert.ElementsMatch(t, []ident.ID{a, b}, l.Teams[0].ParticipantIDs)
	assert.ElementsMatch(t, []ident.ID{c, d}, l.Teams[1].ParticipantIDs)

	l, err = m.Transition(ctx, l.ID, models.LobbyWaitingForReady)
	require.NoError(t, err)

	for _, p := range []ident.ID{a, b, c} {
		l, err = m.MarkReady(ctx, l.ID, p)
		require.NoError(t, err)
		assert.Equal(t, models.LobbyWaitingForReady, l.State)
	}
	l, err = m.MarkReady(ctx, l.ID, d)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyReady, l.State, "auto-transitions once every participant is ready")

	l, err = m.Dispatch(ctx, l.ID, "srv-42")
	require.NoError(t, err)
	assert.Equal(t, models.LobbyDispatched, l.State)
	assert.Equal(t, "srv-42", l.Metadata.DispatchedServerID)

	require.NoError(t, m.Close(ctx, l.ID))
	_, found, err := store.LoadLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, found, "close deletes the live lobby")

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, l.ID, history[0].ID)
}

func TestTransition_InvalidEdgeRejected(t *testing.T) {
	store := persistence.NewMemoryStore()
	m := NewManager(store, clock.NewManual(time.Now()))
	ctx := context.Background()

	l := models.Lobby{ID: ident.New(), State: models.LobbyForming, Ready: map[ident.ID]bool{}}
	require.NoError(t, store.SaveLobby(ctx, l))

	_, err := m.Transition(ctx, l.ID, models.LobbyReady)
	assert.Error(t, err, "cannot skip WaitingForReady")
}

func TestClose_OnAlreadyClosedIsError(t *testing.T) {
	store := persistence.NewMemoryStore()
	m := NewManager(store, clock.NewManual(time.Now()))
	ctx := context.Background()

	l := models.Lobby{ID: ident.New(), State: models.LobbyForming, Ready: map[ident.ID]bool{}}
	require.NoError(t, store.SaveLobby(ctx, l))
	require.NoError(t, m.Close(ctx, l.ID))

	err := m.Close(ctx, l.ID)
	assert.Error(t, err)
}

func TestMarkReady_IdempotentWhenAlreadyReady(t *testing.T) {
	store := persistence.NewMemoryStore()
	m := NewManager(store, clock.NewManual(time.Now()))
	ctx := context.Background()

	p := ident.New()
	l := models.Lobby{
		ID:             ident.New(),
		State:          models.LobbyWaitingForReady,
		ParticipantIDs: []ident.ID{p},
		Ready:          map[ident.ID]bool{},
	}
	require.NoError(t, store.SaveLobby(ctx, l))

	first, err := m.MarkReady(ctx, l.ID, p)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyReady, first.State)

	second, err := m.MarkReady(ctx, l.ID, p)
	require.NoError(t, err)
	assert.Equal(t, models.LobbyReady, second.State)
}

func TestApplyOutcomes_CrossTeamOnlyUsingPreMatchSnapshot(t *testing.T) {
	store := persistence.NewMemoryStore()
	m := NewManager(store, clock.NewManual(time.Now()))
	ctx := context.Background()

	winner, loser := ident.New(), ident.New()
	require.NoError(t, store.SaveRating(ctx, winner, rating.New(1500, 350, 0.06)))
	require.NoError(t, store.SaveRating(ctx, loser, rating.New(1500, 350, 0.06)))

	l := models.Lobby{
		ID:             ident.New(),
		State:          models.LobbyDispatched,
		ParticipantIDs: []ident.ID{winner, loser},
		Teams: []models.Team{
			{Index: 0, ParticipantIDs: []ident.ID{winner}},
			{Index: 1, ParticipantIDs: []ident.ID{loser}},
		},
		Ready: map[ident.ID]bool{},
	}
	require.NoError(t, store.SaveLobby(ctx, l))

	updater := rating.SymmetricUpdater{K: 32}
	err := m.ApplyOutcomes(ctx, l.ID, []ReportedOutcome{
		{Player: winner, Outcome: rating.Win},
		{Player: loser, Outcome: rating.Loss},
	}, updater)
	require.NoError(t, err)

	wr, _, err := store.LoadRating(ctx, winner)
	require.NoError(t, err)
	assert.Equal(t, 1516.0, wr.Point)

	lr, _, err := store.LoadRating(ctx, loser)
	require.NoError(t, err)
	assert.Equal(t, 1484.0, lr.Point)
}

func TestApplyOutcomes_InconsistentTeamOutcomeRejected(t *testing.T) {
	store := persistence.NewMemoryStore()
	m := NewManager(store, clock.NewManual(time.Now()))
	ctx := context.Background()

	a1, a2, b1 := ident.New(), ident.New(), ident.New()
	l := models.Lobby{
		ID:             ident.New(),
		ParticipantIDs: []ident.ID{a1, a2, b1},
		Teams: []models.Team{
			{Index: 0, ParticipantIDs: []ident.ID{a1, a2}},
			{Index: 1, ParticipantIDs: []ident.ID{b1}},
		},
		Ready: map[ident.ID]bool{},
	}
	require.NoError(t, store.SaveLobby(ctx, l))

	err := m.ApplyOutcomes(ctx, l.ID, []ReportedOutcome{
		{Player: a1, Outcome: rating.Win},
		{Player: a2, Outcome: rating.Loss},
		{Player: b1, Outcome: rating.Loss},
	}, rating.SymmetricUpdater{K: 32})
	assert.Error(t, err)
}
