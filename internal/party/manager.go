package party

import (
	"context"
	"fmt"
	"sync"

	"github.com/riftline/matchforge/internal/clock"
	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/persistence"
)

// Manager owns the party table and the participant->party reverse index
// (§4.H), lock-guarded the same way the teacher guards its lobby state:
// exported methods lock, mutate, unlock before any persistence call.
type Manager struct {
	store      persistence.Store
	aggregator Aggregator
	clk        clock.Clock

	mu        sync.Mutex
	parties   map[ident.ID]models.Party
	byPlayer  map[ident.ID]ident.ID // player -> party id
}

// NewManager constructs a Manager using aggregator to derive party ratings.
func NewManager(store persistence.Store, aggregator Aggregator, clk clock.Clock) *Manager {
	return &Manager{
		store:      store,
		aggregator: aggregator,
		clk:        clk,
		parties:    make(map[ident.ID]models.Party),
		byPlayer:   make(map[ident.ID]ident.ID),
	}
}

// Create forms a new party with leader as its sole initial member.
func (m *Manager) Create(ctx context.Context, leader ident.ID, maxSize int) (models.Party, error) {
	m.mu.Lock()
	if _, already := m.byPlayer[leader]; already {
		m.mu.Unlock()
		return models.Party{}, merrors.New("party.Create", merrors.KindDuplicateAdmission,
			fmt.Errorf("player %s already in a party", leader))
	}
	p := models.Party{
		ID:        ident.New(),
		LeaderID:  leader,
		MemberIDs: []ident.ID{leader},
		MaxSize:   maxSize,
		CreatedAt: m.clk.Now(),
	}
	m.parties[p.ID] = p
	m.byPlayer[leader] = p.ID
	m.mu.Unlock()

	if err := m.store.SaveParty(ctx, p); err != nil {
		m.removeUnsafe(p.ID)
		return models.Party{}, merrors.New("party.Create", merrors.KindPersistence, err)
	}
	return p, nil
}

// Add appends member to partyID. Fails with KindCapacity if the party is
// full, KindDuplicateAdmission if member is already a member of any party.
func (m *Manager) Add(ctx context.Context, partyID ident.ID, member ident.ID) (models.Party, error) {
	m.mu.Lock()
	p, ok := m.parties[partyID]
	if !ok {
		m.mu.Unlock()
		return models.Party{}, merrors.New("party.Add", merrors.KindNotFound,
			fmt.Errorf("party %s not found", partyID))
	}
	if p.IsFull() {
		m.mu.Unlock()
		return models.Party{}, merrors.New("party.Add", merrors.KindCapacity,
			fmt.Errorf("party %s is full", partyID))
	}
	if _, already := m.byPlayer[member]; already {
		m.mu.Unlock()
		return models.Party{}, merrors.New("party.Add", merrors.KindDuplicateAdmission,
			fmt.Errorf("player %s already in a party", member))
	}
	p.MemberIDs = append(p.MemberIDs, member)
	m.parties[partyID] = p
	m.byPlayer[member] = partyID
	m.mu.Unlock()

	if err := m.store.SaveParty(ctx, p); err != nil {
		return models.Party{}, merrors.New("party.Add", merrors.KindPersistence, err)
	}
	return p, nil
}

// Remove removes member from its party. If the party becomes empty, or the
// leader is the one removed, the party is disbanded: deleted from the table
// and from persistence.
func (m *Manager) Remove(ctx context.Context, partyID ident.ID, member ident.ID) error {
	m.mu.Lock()
	p, ok := m.parties[partyID]
	if !ok {
		m.mu.Unlock()
		return merrors.New("party.Remove", merrors.KindNotFound,
			fmt.Errorf("party %s not found", partyID))
	}
	if !p.HasMember(member) {
		m.mu.Unlock()
		return merrors.New("party.Remove", merrors.KindNotFound,
			fmt.Errorf("player %s not in party %s", member, partyID))
	}

	remaining := make([]ident.ID, 0, len(p.MemberIDs)-1)
	for _, id := range p.MemberIDs {
		if id != member {
			remaining = append(remaining, id)
		}
	}
	p.MemberIDs = remaining
	disband := len(remaining) == 0 || member == p.LeaderID

	delete(m.byPlayer, member)
	if disband {
		for _, id := range remaining {
			delete(m.byPlayer, id)
		}
		delete(m.parties, partyID)
	} else {
		m.parties[partyID] = p
	}
	m.mu.Unlock()

	if disband {
		if err := m.store.DeleteParty(ctx, partyID); err != nil {
			return merrors.New("party.Remove", merrors.KindPersistence, err)
		}
		return nil
	}
	if err := m.store.SaveParty(ctx, p); err != nil {
		return merrors.New("party.Remove", merrors.KindPersistence, err)
	}
	return nil
}

// DerivedRating fetches each member's current rating from persistence and
// folds them via the configured aggregator.
func (m *Manager) DerivedRating(ctx context.Context, partyID ident.ID) (models.Party, MemberRating, error) {
	m.mu.Lock()
	p, ok := m.parties[partyID]
	m.mu.Unlock()
	if !ok {
		return models.Party{}, MemberRating{}, merrors.New("party.DerivedRating", merrors.KindNotFound,
			fmt.Errorf("party %s not found", partyID))
	}

	members := make([]MemberRating, 0, len(p.MemberIDs))
	for _, id := range p.MemberIDs {
		r, found, err := m.store.LoadRating(ctx, id)
		if err != nil {
			return models.Party{}, MemberRating{}, merrors.New("party.DerivedRating", merrors.KindPersistence, err)
		}
		if !found {
			continue
		}
		members = append(members, MemberRating{Player: id, Rating: r})
	}
	derived := m.aggregator.Aggregate(members)
	return p, MemberRating{Player: p.LeaderID, Rating: derived}, nil
}

// LookupByPlayer returns the party player currently belongs to, if any.
func (m *Manager) LookupByPlayer(player ident.ID) (models.Party, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPlayer[player]
	if !ok {
		return models.Party{}, false
	}
	return m.parties[id], true
}

func (m *Manager) removeUnsafe(id ident.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.parties[id]; ok {
		for _, member := range p.MemberIDs {
			delete(m.byPlayer, member)
		}
	}
	delete(m.parties, id)
}
