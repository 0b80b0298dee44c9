// Package lobby drives a materialized match through its state machine:
// Forming -> WaitingForReady -> Ready -> Dispatched -> Closed, plus the
// outcome-integration path that folds reported results back into ratings.
package lobby

import (
	"context"
	"fmt"

	"github.com/riftline/matchforge/internal/clock"
	"github.com/riftline/matchforge/internal/events"
	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/persistence"
	"github.com/riftline/matchforge/internal/rating"
)

// allowedTransitions enumerates every legal (from, to) pair, per §4.I. Any
// state may also transition to Closed (forced close), handled separately
// in Close rather than listed here for every source state.
var allowedTransitions = map[models.LobbyState]models.LobbyState{
	models.LobbyForming:         models.LobbyWaitingForReady,
	models.LobbyWaitingForReady: models.LobbyReady,
	models.LobbyReady:           models.LobbyDispatched,
}

// Manager drives lobbies through the state machine. It holds no in-memory
// lobby table of its own: persistence is the lobby's owner (§3's ownership
// rule), so every operation loads, mutates, and saves through the Store.
type Manager struct {
	store persistence.Store
	clk   clock.Clock

	// Events, if set, receives LobbyStateChange/RatingUpdated notifications.
	Events *events.Bus
}

// NewManager constructs a Manager backed by store.
func NewManager(store persistence.Store, clk clock.Clock) *Manager {
	return &Manager{store: store, clk: clk}
}

func (m *Manager) publish(evt events.Event) {
	if m.Events == nil {
		return
	}
	m.Events.Publish(evt)
}

func (m *Manager) publishStateChange(l models.Lobby) {
	m.publish(events.Event{Kind: events.KindLobbyStateChange, At: m.clk.Now(), Payload: l, QueueName: l.Metadata.QueueName})
}

// FromMatch materializes a Forming lobby from a match result, assigning team
// membership from the match's team-of vector.
func FromMatch(match models.Match, queueName string) models.Lobby {
	teamCount := 0
	for _, t := range match.TeamOf {
		if t+1 > teamCount {
			teamCount = t + 1
		}
	}
	teams := make([]models.Team, teamCount)
	for i := range teams {
		teams[i].Index = i
	}
	var participants []ident.ID
	for i, e := range match.Entries {
		t := match.TeamOf[i]
		teams[t].ParticipantIDs = append(teams[t].ParticipantIDs, e.ParticipantIDs...)
		participants = append(participants, e.ParticipantIDs...)
	}

	return models.Lobby{
		ID:             ident.New(),
		MatchID:        match.ID,
		State:          models.LobbyForming,
		Teams:          teams,
		ParticipantIDs: participants,
		Ready:          make(map[ident.ID]bool),
		Metadata:       models.LobbyMetadata{QueueName: queueName},
	}
}

// Create persists a freshly materialized lobby (normally the output of
// FromMatch) with its creation timestamp stamped from the manager's clock.
func (m *Manager) Create(ctx context.Context, l models.Lobby) (models.Lobby, error) {
	l.CreatedAt = m.clk.Now()
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return models.Lobby{}, merrors.New("lobby.Create", merrors.KindPersistence, err)
	}
	return l, nil
}

func (m *Manager) load(ctx context.Context, lobbyID ident.ID) (models.Lobby, error) {
	l, found, err := m.store.LoadLobby(ctx, lobbyID)
	if err != nil {
		return models.Lobby{}, merrors.New("lobby", merrors.KindPersistence, err)
	}
	if !found {
		return models.Lobby{}, merrors.New("lobby", merrors.KindNotFound,
			fmt.Errorf("lobby %s not found", lobbyID))
	}
	return l, nil
}

// Transition drives lobbyID from its current state to to, if that edge is
// legal per allowedTransitions.
func (m *Manager) Transition(ctx context.Context, lobbyID ident.ID, to models.LobbyState) (models.Lobby, error) {
	l, err := m.load(ctx, lobbyID)
	if err != nil {
		return models.Lobby{}, err
	}
	if allowedTransitions[l.State] != to {
		return models.Lobby{}, merrors.New("lobby.Transition", merrors.KindInvalidTransition,
			fmt.Errorf("cannot transition lobby %s from %s to %s", lobbyID, l.State, to))
	}
	l.State = to
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return models.Lobby{}, merrors.New("lobby.Transition", merrors.KindPersistence, err)
	}
	m.publishStateChange(l)
	return l, nil
}

// MarkReady adds player to the ready set. Idempotent when player is already
// ready. Auto-transitions WaitingForReady -> Ready once every participant
// is ready.
func (m *Manager) MarkReady(ctx context.Context, lobbyID ident.ID, player ident.ID) (models.Lobby, error) {
	l, err := m.load(ctx, lobbyID)
	if err != nil {
		return models.Lobby{}, err
	}
	found := false
	for _, p := range l.ParticipantIDs {
		if p == player {
			found = true
			break
		}
	}
	if !found {
		return models.Lobby{}, merrors.New("lobby.MarkReady", merrors.KindNotFound,
			fmt.Errorf("player %s not in lobby %s", player, lobbyID))
	}

	l.Ready[player] = true
	autoReady := l.State == models.LobbyWaitingForReady && l.AllReady()
	if autoReady {
		l.State = models.LobbyReady
	}
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return models.Lobby{}, merrors.New("lobby.MarkReady", merrors.KindPersistence, err)
	}
	if autoReady {
		m.publishStateChange(l)
	}
	return l, nil
}

// Dispatch sets the dispatched server id and transitions Ready -> Dispatched.
func (m *Manager) Dispatch(ctx context.Context, lobbyID ident.ID, serverID string) (models.Lobby, error) {
	l, err := m.load(ctx, lobbyID)
	if err != nil {
		return models.Lobby{}, err
	}
	if l.State != models.LobbyReady {
		return models.Lobby{}, merrors.New("lobby.Dispatch", merrors.KindInvalidTransition,
			fmt.Errorf("cannot dispatch lobby %s from state %s", lobbyID, l.State))
	}
	l.State = models.LobbyDispatched
	l.Metadata.DispatchedServerID = serverID
	if err := m.store.SaveLobby(ctx, l); err != nil {
		return models.Lobby{}, merrors.New("lobby.Dispatch", merrors.KindPersistence, err)
	}
	m.publishStateChange(l)
	return l, nil
}

// Close force-transitions lobbyID to Closed, appends it to match history,
// then deletes the live record. Closing an already-closed lobby is an
// error, not a silent no-op (§7's idempotence rule).
func (m *Manager) Close(ctx context.Context, lobbyID ident.ID) error {
	l, err := m.load(ctx, lobbyID)
	if err != nil {
		return err
	}
	if l.State == models.LobbyClosed {
		return merrors.New("lobby.Close", merrors.KindInvalidTransition,
			fmt.Errorf("lobby %s is already closed", lobbyID))
	}
	l.State = models.LobbyClosed
	if err := m.store.SaveMatchResult(ctx, l); err != nil {
		return merrors.New("lobby.Close", merrors.KindPersistence, err)
	}
	if err := m.store.DeleteLobby(ctx, lobbyID); err != nil {
		return merrors.New("lobby.Close", merrors.KindPersistence, err)
	}
	return nil
}

// ReportedOutcome pairs a participant with the outcome they reported.
type ReportedOutcome struct {
	Player  ident.ID
	Outcome rating.Outcome
}

// ApplyOutcomes groups reported players by lobby team, then for every
// cross-team pair computes and writes back updated ratings using the
// pre-match snapshot of every rating, per §4.I: all new ratings are
// computed before any write is issued, avoiding first-writer bias.
func (m *Manager) ApplyOutcomes(ctx context.Context, lobbyID ident.ID, outcomes []ReportedOutcome, updater rating.Updater) error {
	l, err := m.load(ctx, lobbyID)
	if err != nil {
		return err
	}

	teamOutcome := make(map[int]rating.Outcome)
	teamOf := make(map[ident.ID]int, len(outcomes))
	for _, o := range outcomes {
		t := l.TeamOf(o.Player)
		if t < 0 {
			return merrors.New("lobby.ApplyOutcomes", merrors.KindConstraintUnsatisfied,
				fmt.Errorf("player %s is not in lobby %s", o.Player, lobbyID))
		}
		teamOf[o.Player] = t
		if existing, seen := teamOutcome[t]; seen && existing != o.Outcome {
			return merrors.New("lobby.ApplyOutcomes", merrors.KindConstraintUnsatisfied,
				fmt.Errorf("team %d reported inconsistent outcomes", t))
		}
		teamOutcome[t] = o.Outcome
	}

	snapshot := make(map[ident.ID]rating.Rating, len(l.ParticipantIDs))
	for _, p := range l.ParticipantIDs {
		r, found, err := m.store.LoadRating(ctx, p)
		if err != nil {
			return merrors.New("lobby.ApplyOutcomes", merrors.KindPersistence, err)
		}
		if !found {
			r = rating.Default()
		}
		snapshot[p] = r
	}

	// A player may face more than one cross-team opponent (team sizes > 1);
	// the spec defines one update per pair but not how to combine several
	// pairwise results into the single rating that gets written back. This
	// averages the per-pair updated ratings component-wise, which reduces
	// to exactly the single pairwise result in the 1v1 case (§8 S4) and
	// extends it symmetrically to larger teams.
	type accum struct {
		sumPoint, sumDeviation, sumVolatility float64
		n                                     int
	}
	accums := make(map[ident.ID]*accum)
	for pA, tA := range teamOf {
		for pB, tB := range teamOf {
			if tA == tB {
				continue
			}
			updated := updater.Update(snapshot[pA], snapshot[pB], teamOutcome[tA])
			a := accums[pA]
			if a == nil {
				a = &accum{}
				accums[pA] = a
			}
			a.sumPoint += updated.Point
			a.sumDeviation += updated.Deviation
			a.sumVolatility += updated.Volatility
			a.n++
		}
	}

	for player, a := range accums {
		n := float64(a.n)
		r := rating.New(a.sumPoint/n, a.sumDeviation/n, a.sumVolatility/n)
		if err := m.store.SaveRating(ctx, player, r); err != nil {
			return merrors.New("lobby.ApplyOutcomes", merrors.KindPersistence, err)
		}
		m.publish(events.Event{
			Kind:      events.KindRatingUpdated,
			At:        m.clk.Now(),
			Payload:   struct {
				Player ident.ID
				Rating rating.Rating
			}{player, r},
			QueueName: l.Metadata.QueueName,
		})
	}
	return nil
}
