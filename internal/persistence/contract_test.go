package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/rating"
)

// runContractSuite exercises the Store port's documented behavior against
// any implementation. Every adapter (Memory, Redis, Postgres) is expected to
// pass this unchanged. Grounded on the teacher's historian_test.go pattern
// of a single flow-level test rather than exhaustive per-field assertions.
func runContractSuite(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("rating round trip", func(t *testing.T) {
		player := ident.New()
		_, found, err := store.LoadRating(ctx, player)
		require.NoError(t, err)
		assert.False(t, found)

		r := rating.New(1600, 80, 0.05)
		require.NoError(t, store.SaveRating(ctx, player, r))

		got, found, err := store.LoadRating(ctx, player)
		require.NoError(t, err)
		require.True(t, found)
		assert.InDelta(t, r.Point, got.Point, 1e-9)
		assert.InDelta(t, r.Deviation, got.Deviation, 1e-9)
		assert.InDelta(t, r.Volatility, got.Volatility, 1e-9)
	})

	t.Run("entry save, load ordered, delete", func(t *testing.T) {
		queue := "contract-queue-" + ident.New().String()
		now := time.Now().UTC()
		p1, p2 := ident.New(), ident.New()
		e1 := models.NewSoloEntry(queue, p1, rating.Default(), models.Metadata{Region: "eu"}, now)
		e2 := models.NewSoloEntry(queue, p2, rating.Default(), models.Metadata{Region: "eu"}, now.Add(time.Second))

		require.NoError(t, store.SaveEntry(ctx, e2))
		require.NoError(t, store.SaveEntry(ctx, e1))

		loaded, err := store.LoadEntries(ctx, queue)
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, e1.ID, loaded[0].ID, "entries come back in join-time order")
		assert.Equal(t, e2.ID, loaded[1].ID)

		require.NoError(t, store.DeleteEntry(ctx, p1))
		loaded, err = store.LoadEntries(ctx, queue)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, e2.ID, loaded[0].ID)

		err = store.DeleteEntry(ctx, p1)
		assert.True(t, errors.Is(err, merrors.ErrNotFound), "deleting an absent entry is KindNotFound")
	})

	t.Run("party round trip and delete", func(t *testing.T) {
		leader := ident.New()
		party := models.Party{
			ID:        ident.New(),
			LeaderID:  leader,
			MemberIDs: []ident.ID{leader},
			MaxSize:   5,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.SaveParty(ctx, party))

		got, found, err := store.LoadParty(ctx, party.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, party.LeaderID, got.LeaderID)
		assert.Equal(t, party.MemberIDs, got.MemberIDs)

		require.NoError(t, store.DeleteParty(ctx, party.ID))
		_, found, err = store.LoadParty(ctx, party.ID)
		require.NoError(t, err)
		assert.False(t, found)

		err = store.DeleteParty(ctx, party.ID)
		assert.True(t, errors.Is(err, merrors.ErrNotFound))
	})

	t.Run("lobby round trip, delete, and match history", func(t *testing.T) {
		a, b := ident.New(), ident.New()
		lobby := models.Lobby{
			ID:             ident.New(),
			MatchID:        ident.New(),
			State:          models.LobbyReady,
			ParticipantIDs: []ident.ID{a, b},
			Teams: []models.Team{
				{Index: 0, ParticipantIDs: []ident.ID{a}},
				{Index: 1, ParticipantIDs: []ident.ID{b}},
			},
			Ready:     map[ident.ID]bool{a: true, b: true},
			CreatedAt: time.Now().UTC(),
			Metadata:  models.LobbyMetadata{QueueName: "contract-queue"},
		}
		require.NoError(t, store.SaveLobby(ctx, lobby))

		got, found, err := store.LoadLobby(ctx, lobby.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, lobby.State, got.State)
		assert.Equal(t, lobby.Teams, got.Teams)

		require.NoError(t, store.SaveMatchResult(ctx, lobby))

		require.NoError(t, store.DeleteLobby(ctx, lobby.ID))
		_, found, err = store.LoadLobby(ctx, lobby.ID)
		require.NoError(t, err)
		assert.False(t, found)

		err = store.DeleteLobby(ctx, lobby.ID)
		assert.True(t, errors.Is(err, merrors.ErrNotFound))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runContractSuite(t, NewMemoryStore())
}

func TestRedisStore_Contract(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := NewRedisStore(ctx, RedisOptionsFromEnv())
	if err != nil {
		t.Skip("no reachable redis instance; set REDIS_ADDR to run this suite")
	}
	runContractSuite(t, store)
}

func TestPostgresStore_Contract(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := NewPostgresStore(ctx, PostgresOptionsFromEnv())
	if err != nil {
		t.Skip("no reachable postgres instance; set PG_HOST/POSTGRES_USER/... to run this suite")
	}
	defer store.Close()
	runContractSuite(t, store)
}
