package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/riftline/matchforge/internal/clock"
	"github.com/riftline/matchforge/internal/events"
	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/persistence"
	"github.com/riftline/matchforge/internal/rating"
)

// namedQueue is one registered queue's live state: its immutable config, a
// readers-writer lock guarding its entry list, and the entries themselves.
// Grounded on the teacher's per-lobby sync.Mutex pattern (internal/lobby),
// generalized to sync.RWMutex per §5 (admission/removal write-lock,
// find_matches/size read-lock).
type namedQueue struct {
	mu      sync.RWMutex
	config  models.QueueConfig
	entries []models.Entry
}

// Manager owns every registered queue. Persistence calls happen outside any
// queue's lock, per §5's suspension-point rule.
type Manager struct {
	store   persistence.Store
	matcher Matcher
	clk     clock.Clock

	mu     sync.RWMutex // guards the queues map itself, not its values
	queues map[string]*namedQueue

	// Events, if set, receives EntryJoined/EntryLeft notifications. Nil by
	// default: publishing is a no-op until a host wires a Bus in.
	Events *events.Bus
}

func (m *Manager) publish(evt events.Event) {
	if m.Events == nil {
		return
	}
	m.Events.Publish(evt)
}

// NewManager constructs a Manager using matcher for every registered queue
// and clk as the source of "now" for wait-time arithmetic.
func NewManager(store persistence.Store, matcher Matcher, clk clock.Clock) *Manager {
	return &Manager{
		store:   store,
		matcher: matcher,
		clk:     clk,
		queues:  make(map[string]*namedQueue),
	}
}

// Register adds a queue. Fails with KindDuplicateAdmission if the name is
// already registered.
func (m *Manager) Register(config models.QueueConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.queues[config.Name]; exists {
		return merrors.New("queue.Register", merrors.KindDuplicateAdmission,
			fmt.Errorf("queue %q already registered", config.Name))
	}
	m.queues[config.Name] = &namedQueue{config: config}
	return nil
}

func (m *Manager) lookup(name string) (*namedQueue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[name]
	if !ok {
		return nil, merrors.New("queue", merrors.KindNotFound, fmt.Errorf("queue %q not registered", name))
	}
	return q, nil
}

// anyParticipantQueuedUnsafe reports whether any of ids already appears in any
// entry of q, assuming the caller holds q's lock.
func anyParticipantQueuedUnsafe(q *namedQueue, ids []ident.ID) bool {
	for _, e := range q.entries {
		for _, id := range ids {
			if e.HasParticipant(id) {
				return true
			}
		}
	}
	return false
}

// JoinSolo admits a single player. Fails with KindDuplicateAdmission if the
// player is already queued in this queue.
func (m *Manager) JoinSolo(ctx context.Context, queueName string, player ident.ID, r rating.Rating, meta models.Metadata) (models.Entry, error) {
	q, err := m.lookup(queueName)
	if err != nil {
		return models.Entry{}, err
	}

	q.mu.Lock()
	if anyParticipantQueuedUnsafe(q, []ident.ID{player}) {
		q.mu.Unlock()
		return models.Entry{}, merrors.New("queue.JoinSolo", merrors.KindDuplicateAdmission,
			fmt.Errorf("player %s already queued in %q", player, queueName))
	}
	entry := models.NewSoloEntry(queueName, player, r, meta, m.clk.Now())
	q.entries = append(q.entries, entry)
	q.mu.Unlock()

	if err := m.store.SaveEntry(ctx, entry); err != nil {
		m.removeByID(q, entry.ID)
		return models.Entry{}, merrors.New("queue.JoinSolo", merrors.KindPersistence, err)
	}
	m.publish(events.Event{Kind: events.KindEntryJoined, At: m.clk.Now(), Payload: entry, QueueName: queueName})
	return entry, nil
}

// JoinParty admits a pre-formed party's members as one entry carrying a
// pre-derived aggregate rating. Fails with KindConstraintUnsatisfied if the
// party is larger than the queue format's largest team (it could never be
// placed without splitting), or KindDuplicateAdmission if any member is
// already queued here.
func (m *Manager) JoinParty(ctx context.Context, queueName string, partyID ident.ID, members []ident.ID, aggregate rating.Rating, meta models.Metadata) (models.Entry, error) {
	q, err := m.lookup(queueName)
	if err != nil {
		return models.Entry{}, err
	}

	if len(members) > q.config.Format.MaxTeamSize() {
		return models.Entry{}, merrors.New("queue.JoinParty", merrors.KindConstraintUnsatisfied,
			fmt.Errorf("party of %d exceeds max team size %d for queue %q", len(members), q.config.Format.MaxTeamSize(), queueName))
	}

	q.mu.Lock()
	if anyParticipantQueuedUnsafe(q, members) {
		q.mu.Unlock()
		return models.Entry{}, merrors.New("queue.JoinParty", merrors.KindDuplicateAdmission,
			fmt.Errorf("one or more members already queued in %q", queueName))
	}
	entry := models.NewPartyEntry(queueName, partyID, members, aggregate, meta, m.clk.Now())
	q.entries = append(q.entries, entry)
	q.mu.Unlock()

	if err := m.store.SaveEntry(ctx, entry); err != nil {
		m.removeByID(q, entry.ID)
		return models.Entry{}, merrors.New("queue.JoinParty", merrors.KindPersistence, err)
	}
	m.publish(events.Event{Kind: events.KindEntryJoined, At: m.clk.Now(), Payload: entry, QueueName: queueName})
	return entry, nil
}

// Leave removes any entry in queueName whose participant list contains
// player. Fails with KindNotFound if player is not present.
func (m *Manager) Leave(ctx context.Context, queueName string, player ident.ID) error {
	q, err := m.lookup(queueName)
	if err != nil {
		return err
	}

	q.mu.Lock()
	idx := -1
	for i, e := range q.entries {
		if e.HasParticipant(player) {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return merrors.New("queue.Leave", merrors.KindNotFound,
			fmt.Errorf("player %s not in queue %q", player, queueName))
	}
	removed := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	q.mu.Unlock()

	if err := m.store.DeleteEntry(ctx, player); err != nil {
		return merrors.New("queue.Leave", merrors.KindPersistence, err)
	}
	m.publish(events.Event{Kind: events.KindEntryLeft, At: m.clk.Now(), Payload: removed, QueueName: queueName})
	return nil
}

// FindMatches snapshots the queue's entries under the read lock and invokes
// the matcher outside the lock. It does not remove matched entries; the
// runner is responsible for calling RemoveMatched explicitly.
func (m *Manager) FindMatches(queueName string) ([]models.Match, error) {
	q, err := m.lookup(queueName)
	if err != nil {
		return nil, err
	}

	q.mu.RLock()
	snapshot := append([]models.Entry(nil), q.entries...)
	format, constraints := q.config.Format, q.config.Constraints
	q.mu.RUnlock()

	return m.matcher.FindMatches(snapshot, format, constraints, m.clk.Now()), nil
}

// RemoveMatched deletes the given entries from the queue and from
// persistence.
func (m *Manager) RemoveMatched(ctx context.Context, queueName string, entries []models.Entry) error {
	q, err := m.lookup(queueName)
	if err != nil {
		return err
	}

	ids := make(map[ident.ID]bool, len(entries))
	for _, e := range entries {
		ids[e.ID] = true
	}

	q.mu.Lock()
	kept := q.entries[:0:0]
	for _, e := range q.entries {
		if !ids[e.ID] {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	q.mu.Unlock()

	for _, e := range entries {
		for _, p := range e.ParticipantIDs {
			if err := m.store.DeleteEntry(ctx, p); err != nil {
				return merrors.New("queue.RemoveMatched", merrors.KindPersistence, err)
			}
			break // one DeleteEntry call removes the whole entry; one participant suffices
		}
	}
	return nil
}

// Size returns the number of entries currently queued in queueName.
func (m *Manager) Size(queueName string) (int, error) {
	q, err := m.lookup(queueName)
	if err != nil {
		return 0, err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries), nil
}

// Names returns every registered queue name, sorted, for deterministic
// iteration by callers such as the runner.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.queues))
	for n := range m.queues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Config returns the registered configuration for queueName.
func (m *Manager) Config(queueName string) (models.QueueConfig, error) {
	q, err := m.lookup(queueName)
	if err != nil {
		return models.QueueConfig{}, err
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.config, nil
}

// removeByID is a best-effort in-memory rollback used when a persistence
// write fails after the in-memory admission already happened, keeping the
// "both or neither" admission invariant from §5.
func (m *Manager) removeByID(q *namedQueue, id ident.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}
