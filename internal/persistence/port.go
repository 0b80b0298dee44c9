// Package persistence defines the port the matchmaking core depends on (§6 of
// the spec) and ships a handful of concrete adapters: an in-memory reference
// implementation used by the core's own tests, and optional Redis/Postgres
// adapters a host may wire in instead. The core never inspects which adapter
// it is talking to.
package persistence

import (
	"context"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/rating"
)

// Store is the persistence port. Every operation may fail with an opaque
// storage error (wrapped as merrors.KindPersistence by adapters); the core
// surfaces these as-is. Implementations are expected to be atomic per call —
// bulk/transactional composition across calls is not required.
type Store interface {
	SaveRating(ctx context.Context, player ident.ID, r rating.Rating) error
	LoadRating(ctx context.Context, player ident.ID) (r rating.Rating, found bool, err error)

	SaveEntry(ctx context.Context, e models.Entry) error
	// LoadEntries returns every entry in queue, ordered by join time
	// ascending.
	LoadEntries(ctx context.Context, queue string) ([]models.Entry, error)
	// DeleteEntry removes every entry whose participant list contains
	// player. Returns merrors.KindNotFound if none existed.
	DeleteEntry(ctx context.Context, player ident.ID) error

	SaveParty(ctx context.Context, p models.Party) error
	LoadParty(ctx context.Context, partyID ident.ID) (p models.Party, found bool, err error)
	// DeleteParty returns merrors.KindNotFound if partyID did not exist.
	DeleteParty(ctx context.Context, partyID ident.ID) error

	SaveLobby(ctx context.Context, l models.Lobby) error
	LoadLobby(ctx context.Context, lobbyID ident.ID) (l models.Lobby, found bool, err error)
	// DeleteLobby returns merrors.KindNotFound if lobbyID did not exist.
	DeleteLobby(ctx context.Context, lobbyID ident.ID) error

	// SaveMatchResult appends lobby's final state to an immutable history.
	SaveMatchResult(ctx context.Context, l models.Lobby) error
}
