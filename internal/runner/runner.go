// Package runner drives the periodic tick loop: snapshot enabled queues by
// priority, invoke the matcher, materialize lobbies, auto-dispatch, and
// keep going until stopped.
package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/riftline/matchforge/internal/events"
	"github.com/riftline/matchforge/internal/lobby"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/queue"
)

// QueueConfig is one queue's runner-facing sub-configuration (§4.J).
type QueueConfig struct {
	Enabled              bool
	Priority             int // lower number = higher priority
	MaxConcurrentMatches int
}

// Config is the runner's construction-time configuration.
type Config struct {
	TickInterval      time.Duration
	MaxMatchesPerTick int
	AutoDispatch      bool
	Queues            map[string]QueueConfig

	// ParallelQueues, when true, processes every queue's matches
	// concurrently via errgroup instead of strictly in priority order, with
	// the shared per-tick budget guarded by an atomic counter. Per §5, the
	// runner MAY parallelize across queues; priority order is then only a
	// best-effort bias (fast queues may still consume budget before slower
	// higher-priority ones finish), not a hard ordering guarantee.
	ParallelQueues bool
}

// DefaultConfig returns the spec's documented defaults: a 1000ms tick, a
// 1000-match-per-tick budget, auto-dispatch off.
func DefaultConfig() Config {
	return Config{
		TickInterval:      1000 * time.Millisecond,
		MaxMatchesPerTick: 1000,
		Queues:            make(map[string]QueueConfig),
	}
}

// Runner is the single long-lived tick-driving task. Grounded on the
// teacher's cmd/db/historian.go HistorianService: a ctx/cancel pair, a
// ticker-driven loop launched in a goroutine, an idempotent Stop via the
// cancel func.
type Runner struct {
	cfg     Config
	queues  *queue.Manager
	lobbies *lobby.Manager
	log     *logrus.Entry

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	// Events, if set, receives MatchFound notifications as matches are
	// materialized into lobbies.
	Events *events.Bus
}

// New constructs a Runner over queues and lobbies using cfg.
func New(cfg Config, queues *queue.Manager, lobbies *lobby.Manager, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{cfg: cfg, queues: queues, lobbies: lobbies, log: log}
}

// IsRunning reports whether the tick loop is currently active.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches the tick loop in a background goroutine. Starting an
// already-running Runner is an operational error, not a silent no-op.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return merrors.New("runner.Start", merrors.KindOperational, fmt.Errorf("runner already running"))
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.mu.Unlock()

	go r.loop(runCtx)
	return nil
}

// Stop signals the tick loop to exit after the current tick completes, then
// blocks until it has. Graceful: the loop never tears down mid-tick.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	cancel()
	<-done
}

func (r *Runner) loop(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.running = false
		close(r.done)
		r.mu.Unlock()
	}()

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(context.Background())
		}
	}
}

// orderedQueueNames returns the enabled queue names sorted by ascending
// priority, ties broken by name for deterministic ticks.
func (r *Runner) orderedQueueNames() []string {
	type entry struct {
		name     string
		priority int
	}
	var names []entry
	for name, qc := range r.cfg.Queues {
		if qc.Enabled {
			names = append(names, entry{name, qc.Priority})
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].priority == names[j].priority {
			return names[i].name < names[j].name
		}
		return names[i].priority < names[j].priority
	})
	out := make([]string, len(names))
	for i, e := range names {
		out[i] = e.name
	}
	return out
}

// Tick runs a single pass over every enabled queue, in priority order
// (best-effort only when ParallelQueues is set), respecting the per-tick
// match budget and each queue's max-concurrent cap.
// A failure processing one queue is logged and does not halt the tick.
func (r *Runner) Tick(ctx context.Context) {
	names := r.orderedQueueNames()

	// find_matches is read-only per queue and independent across queues, so
	// every queue's snapshot-and-match pass runs concurrently; the
	// budget-consuming commit phase below is strictly sequential in priority
	// order unless ParallelQueues is set, in which case commitParallel shares
	// the budget through an atomic counter.
	found := make([][]models.Match, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			matches, err := r.queues.FindMatches(name)
			if err != nil {
				r.log.WithError(err).WithField("queue", name).Warn("find_matches failed")
				return nil
			}
			found[i] = matches
			_ = gctx
			return nil
		})
	}
	_ = g.Wait() // per-queue errors are logged, never aborts the tick

	if r.cfg.ParallelQueues {
		r.commitParallel(ctx, names, found)
		return
	}
	r.commitSequential(ctx, names, found)
}

// commitSequential processes matches strictly in priority order, decrementing
// a single non-atomic budget. This is the default: deterministic, and exactly
// matches the spec's priority-ordered tick procedure.
func (r *Runner) commitSequential(ctx context.Context, names []string, found [][]models.Match) {
	budget := r.cfg.MaxMatchesPerTick
	for i, name := range names {
		if budget <= 0 {
			break
		}
		qc := r.cfg.Queues[name]
		toTake := budget
		if qc.MaxConcurrentMatches > 0 && qc.MaxConcurrentMatches < toTake {
			toTake = qc.MaxConcurrentMatches
		}
		matches := found[i]
		if len(matches) > toTake {
			matches = matches[:toTake]
		}

		for _, match := range matches {
			if err := r.processMatch(ctx, name, match); err != nil {
				r.log.WithError(err).WithField("queue", name).Warn("failed to process match")
				continue
			}
			budget--
			if budget <= 0 {
				break
			}
		}
	}
}

// commitParallel fans per-queue match processing out across goroutines,
// bounded by each queue's max-concurrent cap, sharing one per-tick budget via
// an atomic counter so concurrent queues never collectively overshoot it.
// Grounded structurally on the worker-pool's bounded-goroutines-plus-shared-
// counters shape, stripped of its batching/metrics machinery.
func (r *Runner) commitParallel(ctx context.Context, names []string, found [][]models.Match) {
	var budget atomic.Int64
	budget.Store(int64(r.cfg.MaxMatchesPerTick))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		name := name
		qc := r.cfg.Queues[name]
		matches := found[i]
		if qc.MaxConcurrentMatches > 0 && len(matches) > qc.MaxConcurrentMatches {
			matches = matches[:qc.MaxConcurrentMatches]
		}

		g.Go(func() error {
			for _, match := range matches {
				if budget.Add(-1) < 0 {
					budget.Add(1)
					return nil
				}
				if err := r.processMatch(gctx, name, match); err != nil {
					r.log.WithError(err).WithField("queue", name).Warn("failed to process match")
					budget.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) processMatch(ctx context.Context, queueName string, match models.Match) error {
	l := lobby.FromMatch(match, queueName)
	l, err := r.lobbies.Create(ctx, l)
	if err != nil {
		return err
	}
	if r.Events != nil {
		r.Events.Publish(events.Event{Kind: events.KindMatchFound, At: l.CreatedAt, Payload: match, QueueName: queueName})
	}
	if err := r.queues.RemoveMatched(ctx, queueName, match.Entries); err != nil {
		return err
	}
	if !r.cfg.AutoDispatch {
		return nil
	}

	for _, to := range []models.LobbyState{models.LobbyWaitingForReady, models.LobbyReady} {
		l, err = r.lobbies.Transition(ctx, l.ID, to)
		if err != nil {
			return err
		}
	}
	for _, p := range l.ParticipantIDs {
		if _, err := r.lobbies.MarkReady(ctx, l.ID, p); err != nil {
			return err
		}
	}
	_, err = r.lobbies.Dispatch(ctx, l.ID, "")
	return err
}
