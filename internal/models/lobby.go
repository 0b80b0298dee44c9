package models

import (
	"time"

	"github.com/riftline/matchforge/internal/ident"
)

// LobbyState is one of the five states a lobby's state machine can occupy.
type LobbyState string

const (
	LobbyForming         LobbyState = "forming"
	LobbyWaitingForReady LobbyState = "waiting_for_ready"
	LobbyReady           LobbyState = "ready"
	LobbyDispatched      LobbyState = "dispatched"
	LobbyClosed          LobbyState = "closed"
)

// Team holds the ordered list of participants assigned to one team slot.
// Grounded on original_source/src/lobby/team.rs, which keeps a Team value
// object rather than a bare slice so team-size invariants have a natural
// home.
type Team struct {
	Index          int
	ParticipantIDs []ident.ID
}

func (t Team) Size() int { return len(t.ParticipantIDs) }

// LobbyMetadata carries the queue name, optional game mode, the dispatched
// server id (once dispatched), and an opaque custom map.
type LobbyMetadata struct {
	QueueName           string
	GameMode            string
	DispatchedServerID  string
	Custom              map[string]string
}

// Lobby is a match materialized into a mutable record driven through the
// state machine toward dispatch.
type Lobby struct {
	ID             ident.ID
	MatchID        ident.ID
	State          LobbyState
	Teams          []Team
	ParticipantIDs []ident.ID
	Ready          map[ident.ID]bool
	CreatedAt      time.Time
	Metadata       LobbyMetadata
}

// AllReady reports whether every participant in the lobby is marked ready.
func (l Lobby) AllReady() bool {
	if len(l.ParticipantIDs) == 0 {
		return false
	}
	for _, p := range l.ParticipantIDs {
		if !l.Ready[p] {
			return false
		}
	}
	return true
}

// TeamOf returns the team index participant id belongs to, or -1 if absent.
func (l Lobby) TeamOf(id ident.ID) int {
	for _, t := range l.Teams {
		for _, p := range t.ParticipantIDs {
			if p == id {
				return t.Index
			}
		}
	}
	return -1
}
