package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riftline/matchforge/internal/ident"
	"github.com/riftline/matchforge/internal/merrors"
	"github.com/riftline/matchforge/internal/models"
	"github.com/riftline/matchforge/internal/rating"
)

// PostgresStore is a durable Store adapter over pgxpool. Ratings get their
// own relational columns (point/deviation/volatility), mirroring the
// teacher's elo_1v1-as-a-column convention; entries/parties/lobbies, which
// carry nested slices and maps with no fixed schema, are stored as JSONB
// blobs the way the teacher's historian records game actions as an opaque
// payload column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresOptions mirrors the teacher's ConnectDB environment variables.
type PostgresOptions struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// PostgresOptionsFromEnv reads POSTGRES_USER/POSTGRES_PASSWORD/PG_HOST/
// PG_PORT/PG_DATABASE the way the teacher's database.ConnectDB does.
func PostgresOptionsFromEnv() PostgresOptions {
	return PostgresOptions{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Host:     os.Getenv("PG_HOST"),
		Port:     os.Getenv("PG_PORT"),
		Database: os.Getenv("PG_DATABASE"),
	}
}

// NewPostgresStore dials Postgres, pings it, and ensures the schema this
// adapter needs exists.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		opts.User, opts.Password, opts.Host, opts.Port, opts.Database,
	)

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, merrors.New("persistence.NewPostgresStore", merrors.KindPersistence, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, merrors.New("persistence.NewPostgresStore", merrors.KindPersistence, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, merrors.New("persistence.NewPostgresStore", merrors.KindPersistence, err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS matchforge_ratings (
			player_id UUID PRIMARY KEY,
			point DOUBLE PRECISION NOT NULL,
			deviation DOUBLE PRECISION NOT NULL,
			volatility DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matchforge_entries (
			id UUID PRIMARY KEY,
			queue_name TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL,
			payload JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS matchforge_entries_queue_idx
			ON matchforge_entries (queue_name, joined_at)`,
		`CREATE TABLE IF NOT EXISTS matchforge_parties (
			id UUID PRIMARY KEY,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matchforge_lobbies (
			id UUID PRIMARY KEY,
			payload JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS matchforge_match_history (
			id BIGSERIAL PRIMARY KEY,
			lobby_id UUID NOT NULL,
			closed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			payload JSONB NOT NULL
		)`,
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) SaveRating(ctx context.Context, player ident.ID, r rating.Rating) error {
	q := `
		INSERT INTO matchforge_ratings (player_id, point, deviation, volatility)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE
			SET point = $2, deviation = $3, volatility = $4
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, player, r.Point, r.Deviation, r.Volatility)
		return err
	})
	if err != nil {
		return merrors.New("persistence.SaveRating", merrors.KindPersistence, err)
	}
	return nil
}

func (s *PostgresStore) LoadRating(ctx context.Context, player ident.ID) (rating.Rating, bool, error) {
	var r rating.Rating
	err := s.pool.QueryRow(ctx,
		`SELECT point, deviation, volatility FROM matchforge_ratings WHERE player_id = $1`,
		player,
	).Scan(&r.Point, &r.Deviation, &r.Volatility)
	if errors.Is(err, pgx.ErrNoRows) {
		return rating.Rating{}, false, nil
	}
	if err != nil {
		return rating.Rating{}, false, merrors.New("persistence.LoadRating", merrors.KindPersistence, err)
	}
	return r, true, nil
}

func (s *PostgresStore) SaveEntry(ctx context.Context, e models.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return merrors.New("persistence.SaveEntry", merrors.KindPersistence, err)
	}
	q := `
		INSERT INTO matchforge_entries (id, queue_name, joined_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
			SET queue_name = $2, joined_at = $3, payload = $4
	`
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, e.ID, e.QueueName, e.JoinedAt, payload)
		return err
	})
	if err != nil {
		return merrors.New("persistence.SaveEntry", merrors.KindPersistence, err)
	}
	return nil
}

func (s *PostgresStore) LoadEntries(ctx context.Context, queue string) ([]models.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM matchforge_entries WHERE queue_name = $1 ORDER BY joined_at ASC`,
		queue,
	)
	if err != nil {
		return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
		}
		var e models.Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, merrors.New("persistence.LoadEntries", merrors.KindPersistence, err)
	}
	return entries, nil
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, player ident.ID) error {
	rows, err := s.pool.Query(ctx, `SELECT id, payload FROM matchforge_entries`)
	if err != nil {
		return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
	}
	var toDelete []ident.ID
	for rows.Next() {
		var id ident.ID
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			rows.Close()
			return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
		}
		var e models.Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			rows.Close()
			return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
		}
		if e.HasParticipant(player) {
			toDelete = append(toDelete, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
	}
	if len(toDelete) == 0 {
		return merrors.New("persistence.DeleteEntry", merrors.KindNotFound, nil)
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, id := range toDelete {
			if _, err := tx.Exec(ctx, `DELETE FROM matchforge_entries WHERE id = $1`, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return merrors.New("persistence.DeleteEntry", merrors.KindPersistence, err)
	}
	return nil
}

func (s *PostgresStore) SaveParty(ctx context.Context, p models.Party) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return merrors.New("persistence.SaveParty", merrors.KindPersistence, err)
	}
	q := `
		INSERT INTO matchforge_parties (id, payload) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = $2
	`
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, p.ID, payload)
		return err
	})
	if err != nil {
		return merrors.New("persistence.SaveParty", merrors.KindPersistence, err)
	}
	return nil
}

func (s *PostgresStore) LoadParty(ctx context.Context, partyID ident.ID) (models.Party, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM matchforge_parties WHERE id = $1`, partyID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Party{}, false, nil
	}
	if err != nil {
		return models.Party{}, false, merrors.New("persistence.LoadParty", merrors.KindPersistence, err)
	}
	var p models.Party
	if err := json.Unmarshal(payload, &p); err != nil {
		return models.Party{}, false, merrors.New("persistence.LoadParty", merrors.KindPersistence, err)
	}
	return p, true, nil
}

func (s *PostgresStore) DeleteParty(ctx context.Context, partyID ident.ID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matchforge_parties WHERE id = $1`, partyID)
	if err != nil {
		return merrors.New("persistence.DeleteParty", merrors.KindPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return merrors.New("persistence.DeleteParty", merrors.KindNotFound, nil)
	}
	return nil
}

func (s *PostgresStore) SaveLobby(ctx context.Context, l models.Lobby) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return merrors.New("persistence.SaveLobby", merrors.KindPersistence, err)
	}
	q := `
		INSERT INTO matchforge_lobbies (id, payload) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = $2
	`
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, l.ID, payload)
		return err
	})
	if err != nil {
		return merrors.New("persistence.SaveLobby", merrors.KindPersistence, err)
	}
	return nil
}

func (s *PostgresStore) LoadLobby(ctx context.Context, lobbyID ident.ID) (models.Lobby, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM matchforge_lobbies WHERE id = $1`, lobbyID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Lobby{}, false, nil
	}
	if err != nil {
		return models.Lobby{}, false, merrors.New("persistence.LoadLobby", merrors.KindPersistence, err)
	}
	var l models.Lobby
	if err := json.Unmarshal(payload, &l); err != nil {
		return models.Lobby{}, false, merrors.New("persistence.LoadLobby", merrors.KindPersistence, err)
	}
	return l, true, nil
}

func (s *PostgresStore) DeleteLobby(ctx context.Context, lobbyID ident.ID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matchforge_lobbies WHERE id = $1`, lobbyID)
	if err != nil {
		return merrors.New("persistence.DeleteLobby", merrors.KindPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return merrors.New("persistence.DeleteLobby", merrors.KindNotFound, nil)
	}
	return nil
}

// SaveMatchResult commits the lobby's final state into an append-only
// history table, the same Commit-then-insert-a-record transaction shape the
// teacher uses for 1v1 match settlement.
func (s *PostgresStore) SaveMatchResult(ctx context.Context, l models.Lobby) error {
	payload, err := json.Marshal(l)
	if err != nil {
		return merrors.New("persistence.SaveMatchResult", merrors.KindPersistence, err)
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO matchforge_match_history (lobby_id, payload) VALUES ($1, $2)`,
			l.ID, payload,
		)
		return err
	})
	if err != nil {
		return merrors.New("persistence.SaveMatchResult", merrors.KindPersistence, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
