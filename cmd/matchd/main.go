// cmd/matchd wires the matchmaking core into a runnable process: one queue
// manager, one lobby manager, one runner, registered queues read from a
// small built-in set, and a log line per lifecycle event. It exists to prove
// the core runs end to end; a real host embeds the packages directly
// instead of shelling out to this binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/riftline/matchforge/internal/clock"
	"github.com/riftline/matchforge/internal/events"
	"github.com/riftline/matchforge/internal/lobby"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/persistence"
	"github.com/riftline/matchforge/internal/queue"
	"github.com/riftline/matchforge/internal/runner"
)

func newStore(ctx context.Context, log *logrus.Entry) persistence.Store {
	switch os.Getenv("MATCHFORGE_STORE") {
	case "redis":
		store, err := persistence.NewRedisStore(ctx, persistence.RedisOptionsFromEnv())
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		log.Info("using redis persistence")
		return store
	case "postgres":
		store, err := persistence.NewPostgresStore(ctx, persistence.PostgresOptionsFromEnv())
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		log.Info("using postgres persistence")
		return store
	default:
		log.Info("using in-memory persistence")
		return persistence.NewMemoryStore()
	}
}

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore(ctx, log)
	clk := clock.Real{}

	bus := events.NewBus(log)
	logEvents(bus, log)

	qm := queue.NewManager(store, queue.GreedyMatcher{}, clk)
	qm.Events = bus

	lm := lobby.NewManager(store, clk)
	lm.Events = bus

	if err := qm.Register(models.QueueConfig{
		Name:   "ranked-1v1",
		Format: models.Format{Name: "1v1", TeamSizes: []int{1, 1}},
		Constraints: models.Constraints{
			BaseDelta:      100,
			ExpansionRate:  5,
			MaxWaitSeconds: 60,
		},
	}); err != nil {
		log.WithError(err).Fatal("failed to register ranked-1v1")
	}

	if err := qm.Register(models.QueueConfig{
		Name:   "casual-5v5",
		Format: models.Format{Name: "5v5", TeamSizes: []int{5, 5}},
		Constraints: models.Constraints{
			BaseDelta:          250,
			ExpansionRate:      10,
			SameRegionRequired: true,
			MaxWaitSeconds:     120,
		},
	}); err != nil {
		log.WithError(err).Fatal("failed to register casual-5v5")
	}

	cfg := runner.DefaultConfig()
	cfg.TickInterval = 1 * time.Second
	cfg.AutoDispatch = true
	cfg.Queues["ranked-1v1"] = runner.QueueConfig{Enabled: true, Priority: 0, MaxConcurrentMatches: 50}
	cfg.Queues["casual-5v5"] = runner.QueueConfig{Enabled: true, Priority: 1, MaxConcurrentMatches: 20}

	r := runner.New(cfg, qm, lm, log)
	r.Events = bus
	if err := r.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start runner")
	}

	log.Info("matchd running, press ctrl-c to stop")
	<-ctx.Done()

	log.Info("shutting down")
	r.Stop()

	switch s := store.(type) {
	case interface{ Close() }:
		s.Close()
	case interface{ Close() error }:
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("error closing store")
		}
	}
}

func logEvents(bus *events.Bus, log *logrus.Entry) {
	ch, _ := bus.Subscribe()
	go func() {
		for evt := range ch {
			log.WithFields(logrus.Fields{
				"kind":  evt.Kind,
				"queue": evt.QueueName,
			}).Debug("event")
		}
	}()
}
