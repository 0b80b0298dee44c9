package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/rating"
)

// MemoryStore is the in-process reference Store implementation: mutex-guarded
// maps, one per record kind. Grounded on the teacher's
// internal/lobby.LobbyStore (one sync.Mutex-guarded map[uuid.UUID]*T, the
// same Add/Get/Delete shape). This is the only Store implementation the
// core's own test suite depends on.
type MemoryStore struct {
	mu sync.Mutex

	ratings map[ident.ID]rating.Rating
	entries map[string][]models.Entry // queue name -> entries
	parties map[ident.ID]models.Party
	lobbies map[ident.ID]models.Lobby
	history []models.Lobby
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ratings: make(map[ident.ID]rating.Rating),
		entries: make(map[string][]models.Entry),
		parties: make(map[ident.ID]models.Party),
		lobbies: make(map[ident.ID]models.Lobby),
	}
}

func (s *MemoryStore) SaveRating(ctx context.Context, player ident.ID, r rating.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[player] = r
	return nil
}

func (s *MemoryStore) LoadRating(ctx context.Context, player ident.ID) (rating.Rating, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratings[player]
	return r, ok, nil
}

func (s *MemoryStore) SaveEntry(ctx context.Context, e models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.entries[e.QueueName]
	for i, existing := range list {
		if existing.ID == e.ID {
			list[i] = e
			s.entries[e.QueueName] = list
			return nil
		}
	}
	s.entries[e.QueueName] = append(list, e)
	return nil
}

func (s *MemoryStore) LoadEntries(ctx context.Context, queue string) ([]models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append([]models.Entry(nil), s.entries[queue]...)
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID.String() < list[j].ID.String()
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list, nil
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, player ident.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := false
	for queue, list := range s.entries {
		kept := list[:0:0]
		for _, e := range list {
			if e.HasParticipant(player) {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		s.entries[queue] = kept
	}
	if !removed {
		return merrors.New("persistence.DeleteEntry", merrors.KindNotFound, nil)
	}
	return nil
}

func (s *MemoryStore) SaveParty(ctx context.Context, p models.Party) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[p.ID] = p
	return nil
}

func (s *MemoryStore) LoadParty(ctx context.Context, partyID ident.ID) (models.Party, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parties[partyID]
	return p, ok, nil
}

func (s *MemoryStore) DeleteParty(ctx context.Context, partyID ident.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parties[partyID]; !ok {
		return merrors.New("persistence.DeleteParty", merrors.KindNotFound, nil)
	}
	delete(s.parties, partyID)
	return nil
}

func (s *MemoryStore) SaveLobby(ctx context.Context, l models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[l.ID] = l
	return nil
}

func (s *MemoryStore) LoadLobby(ctx context.Context, lobbyID ident.ID) (models.Lobby, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	return l, ok, nil
}

func (s *MemoryStore) DeleteLobby(ctx context.Context, lobbyID ident.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[lobbyID]; !ok {
		return merrors.New("persistence.DeleteLobby", merrors.KindNotFound, nil)
	}
	delete(s.lobbies, lobbyID)
	return nil
}

func (s *MemoryStore) SaveMatchResult(ctx context.Context, l models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, l)
	return nil
}

// History returns a copy of the match-result history, oldest first. Exported
// for tests; not part of the Store port.
func (s *MemoryStore) History() []models.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Lobby(nil), s.history...)
}

// Lobbies returns every live (non-closed, non-deleted) lobby. Exported for
// tests; not part of the Store port.
func (s *MemoryStore) Lobbies() []models.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l)
	}
	return out
}
