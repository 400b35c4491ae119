// internal/database/db.go
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnString builds a postgres URL from discrete settings, for deployments
// that configure POSTGRES_USER, POSTGRES_PASSWORD, PG_HOST, PG_PORT and
// PG_DATABASE instead of a single DATABASE_URL.
func ConnString(user, password, host, port, dbName string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   host + ":" + port,
		Path:   "/" + dbName,
	}
	return u.String()
}

// Connect opens a pool for connStr and checks it with a ping.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Store runs the queries of the game server and the historian.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
	id          UUID PRIMARY KEY,
	game_id     TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL,
	user_agent  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rooms (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_activity  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	closed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS room_events (
	id            UUID PRIMARY KEY,
	room_id       TEXT NOT NULL,
	action_index  INT NOT NULL,
	actor_id      TEXT NOT NULL DEFAULT '',
	action_type   TEXT NOT NULL,
	payload       JSONB,
	occurred_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room_id, occurred_at);
`
