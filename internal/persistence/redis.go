package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/rating"
)

// RedisStore is an optional Store adapter backed by Redis. Ratings and
// parties/lobbies are stored as JSON blobs under simple key prefixes; queue
// membership is tracked with a per-queue sorted set keyed by join time so
// LoadEntries can return join-order without a separate index structure.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

const (
	redisKeyRating = "matchforge:rating:"
	redisKeyEntry  = "matchforge:entry:"
	redisKeyQueue  = "matchforge:queue:"
	redisKeyParty  = "matchforge:party:"
	redisKeyLobby  = "matchforge:lobby:"
	redisKeyHist   = "matchforge:history"
)

// RedisOptions mirrors the environment-variable convention the teacher's
// cache package reads at startup: REDIS_ADDR (default "localhost:6379") and
// REDIS_DB (default 0).
type RedisOptions struct {
	Addr string
	DB   int
}

// RedisOptionsFromEnv reads REDIS_ADDR/REDIS_DB the way the teacher's
// cache.ConnectRedis does.
func RedisOptionsFromEnv() RedisOptions {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if s := os.Getenv("REDIS_DB"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			db = v
		}
	}
	return RedisOptions{Addr: addr, DB: db}
}

// NewRedisStore dials Redis and pings it with a short timeout before
// returning, so callers fail fast on misconfiguration instead of on the
// first matchmaking operation.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, merrors.New("persistence.NewRedisStore", merrors.KindPersistence,
			fmt.Errorf("connect to redis at %s: %w", opts.Addr, err))
	}
	return &RedisStore{rdb: rdb}, nil
}

// Close releases the underlying Redis client's connections.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) SaveRating(ctx context.Context, player ident.ID, r rating.Rating) error {
	data, err := json.Marshal(r)
	if err != nil {
		return merrors.New("persistence.SaveRating", merrors.KindPersistence, err)
	}
	if err := s.rdb.Set(ctx, redisKeyRating+player.String(), data, 0).Err(); err != nil {
		return merrors.New("persistence.SaveRating", merrors.KindPersistence, err)
	}
	return nil
}

func (s *RedisStore) LoadRating(ctx context.Context, player ident.ID) (rating.Rating, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKeyRating+player.String()).Bytes()
	if err == redis.Nil {
		return rating.Rating{}, false, nil
	}
	if err != nil {
		return rating.Rating{}, false, merrors.New("persistence.LoadRating", merrors.KindPersistence, err)
	}
	var r rating.Rating
	if err := json.Unmarshal(raw, &r); err != nil {
		return rating.Rating{}, false, merrors.New("persistence.LoadRating", merrors.KindPersistence, err)
	}
	return r, true, nil
}

func (s *RedisStore) SaveEntry(ctx context.Context, e models.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return merrors.New("persistence.SaveEntry", merrors.KindPersistence, err)
	}
	key := redisKeyEntry + e.ID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.ZAdd(ctx, redisKeyQueue+e.QueueName, redis.Z{
		Score:  float64(e.JoinedAt.UnixNano()),
		Member: e.ID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return merrors.New("persistence.SaveEntry", merrors.KindPersistence, err)
	}
	return nil
}

func (s *RedisStore) LoadEntries(ctx context.Context, queue string) ([]models.Entry, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, redisKeyQueue+queue, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKeyEntry + id
	}
	raws, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
	}
	entries := make([]models.Entry, 0, len(raws))
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue // entry key expired/removed out from under the index; skip it
		}
		var e models.Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].JoinedAt.Before(entries[j].JoinedAt) })
	return entries, nil
}

func (s *RedisStore) DeleteEntry(ctx context.Context, player ident.ID) error {
	queues, err := s.rdb.Keys(ctx, redisKeyQueue+"*").Result()
	if err != nil {
		return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
	}
	removed := false
	for _, qkey := range queues {
		ids, err := s.rdb.ZRange(ctx, qkey, 0, -1).Result()
		if err != nil {
			return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
		}
		for _, id := range ids {
			raw, err := s.rdb.Get(ctx, redisKeyEntry+id).Bytes()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
			}
			var e models.Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
			}
			if !e.HasParticipant(player) {
				continue
			}
			pipe := s.rdb.TxPipeline()
			pipe.Del(ctx, redisKeyEntry+id)
			pipe.ZRem(ctx, qkey, id)
			if _, err := pipe.Exec(ctx); err != nil {
				return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
			}
			removed = true
		}
	}
	if !removed {
		return merrors.New("persistence.DeleteEntry", merrors.KindNotFound, nil)
	}
	return nil
}

func (s *RedisStore) SaveParty(ctx context.Context, p models.Party) error {
	data, err := json.Marshal(p)
	if err != nil {
		return merrors.New("persistence.SaveParty", merrors.KindPersistence, err)
	}
	if err := s.rdb.Set(ctx, redisKeyParty+p.ID.String(), data, 0).Err(); err != nil {
		return merrors.New("persistence.SaveParty", merrors.KindPersistence, err)
	}
	return nil
}

func (s *RedisStore) LoadParty(ctx context.Context, partyID ident.ID) (models.Party, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKeyParty+partyID.String()).Bytes()
	if err == redis.Nil {
		return models.Party{}, false, nil
	}
	if err != nil {
		return models.Party{}, false, merrors.New("persistence.LoadParty", merrors.KindPersistence, err)
	}
	var p models.Party
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Party{}, false, merrors.New("persistence.LoadParty", merrors.KindPersistence, err)
	}
	return p, true, nil
}

func (s *RedisStore) DeleteParty(ctx context.Context, partyID ident.ID) error {
	n, err := s.rdb.Del(ctx, redisKeyParty+partyID.String()).Result()
	if err != nil {
		return merrors.New("persistence.DeleteParty", merrors.KindPersistence, err)
	}
	if n == 0 {
		return merrors.New("persistence.DeleteParty", merrors.KindNotFound, nil)
	}
	return nil
}

func (s *RedisStore) SaveLobby(ctx context.Context, l models.Lobby) error {
	data, err := json.Marshal(l)
	if err != nil {
		return merrors.New("persistence.SaveLobby", merrors.KindPersistence, err)
	}
	if err := s.rdb.Set(ctx, redisKeyLobby+l.ID.String(), data, 0).Err(); err != nil {
		return merrors.New("persistence.SaveLobby", merrors.KindPersistence, err)
	}
	return nil
}

func (s *RedisStore) LoadLobby(ctx context.Context, lobbyID ident.ID) (models.Lobby, bool, error) {
	raw, err := s.rdb.Get(ctx, redisKeyLobby+lobbyID.String()).Bytes()
	if err == redis.Nil {
		return models.Lobby{}, false, nil
	}
	if err != nil {
		return models.Lobby{}, false, merrors.New("persistence.LoadLobby", merrors.KindPersistence, err)
	}
	var l models.Lobby
	if err := json.Unmarshal(raw, &l); err != nil {
		return models.Lobby{}, false, merrors.New("persistence.LoadLobby", merrors.KindPersistence, err)
	}
	return l, true, nil
}

func (s *RedisStore) DeleteLobby(ctx context.Context, lobbyID ident.ID) error {
	n, err := s.rdb.Del(ctx, redisKeyLobby+lobbyID.String()).Result()
	if err != nil {
		return merrors.New("persistence.DeleteLobby", merrors.KindPersistence, err)
	}
	if n == 0 {
		return merrors.New("persistence.DeleteLobby", merrors.KindNotFound, nil)
	}
	return nil
}

// SaveMatchResult pushes lobby's final JSON onto an append-only Redis list,
// the same RPush-a-JSON-blob shape the teacher uses to hand game actions off
// to its historian microservice.
func (s *RedisStore) SaveMatchResult(ctx context.Context, l models.Lobby) error {
	data, err := json.Marshal(l)
	if err != nil {
		return merrors.New("persistence.SaveMatchResult", merrors.KindPersistence, err)
	}
	if err := s.rdb.RPush(ctx, redisKeyHist, data).Err(); err != nil {
		return merrors.New("persistence.SaveMatchResult", merrors.KindPersistence, err)
	}
	return nil
}
