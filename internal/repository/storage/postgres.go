package storage

import (
	"context"
	"database/sql"
	"fmt"

	// import the Postgres driver to register it with the database/sql package.
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id            TEXT PRIMARY KEY,
	username      TEXT        NOT NULL,
	display_name  TEXT        NOT NULL DEFAULT '',
	password_hash TEXT        NOT NULL,
	rating        INTEGER     NOT NULL,
	games_played  INTEGER     NOT NULL DEFAULT 0 CHECK (games_played >= 0),
	wins          INTEGER     NOT NULL DEFAULT 0 CHECK (wins >= 0),
	losses        INTEGER     NOT NULL DEFAULT 0 CHECK (losses >= 0),
	draws         INTEGER     NOT NULL DEFAULT 0 CHECK (draws >= 0),
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	CHECK (games_played = wins + losses + draws)
);

CREATE UNIQUE INDEX IF NOT EXISTS members_username_key ON members (LOWER(username));

CREATE TABLE IF NOT EXISTS games (
	id               TEXT PRIMARY KEY,
	status           TEXT        NOT NULL,
	board            JSONB       NOT NULL,
	next_turn        TEXT        NOT NULL DEFAULT '',
	result           TEXT        NOT NULL DEFAULT '',
	prior_result     TEXT        NOT NULL DEFAULT '',
	moves            JSONB       NOT NULL DEFAULT '[]',
	creator_id       TEXT        NOT NULL,
	opponent_id      TEXT        NOT NULL DEFAULT '',
	x_player_id      TEXT        NOT NULL DEFAULT '',
	o_player_id      TEXT        NOT NULL DEFAULT '',
	rating_processed BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	started_at       TIMESTAMPTZ,
	finished_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS games_status_created_idx ON games (status, created_at DESC);
CREATE INDEX IF NOT EXISTS games_creator_idx ON games (creator_id, created_at DESC);
CREATE INDEX IF NOT EXISTS games_opponent_idx ON games (opponent_id, created_at DESC);

CREATE TABLE IF NOT EXISTS revoked_tokens (
	id         TEXT PRIMARY KEY,
	expires_at TIMESTAMPTZ NOT NULL
);
`

type PostgresStorage struct {
	Connection *sql.DB
}

func NewPostgresStorage(ctx context.Context, dsn string, maxOpenConns int) (*PostgresStorage, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}

	if maxOpenConns > 0 {
		conn.SetMaxOpenConns(maxOpenConns)
	}

	if err = conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("can't connect to database: %w", err)
	}

	return &PostgresStorage{Connection: conn}, nil
}

func (that *PostgresStorage) Init(ctx context.Context) error {
	_, err := that.Connection.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("can't create tables: %w", err)
	}

	return nil
}
