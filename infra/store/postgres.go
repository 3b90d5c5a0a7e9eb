package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltswap/voltswap/core/model"
	"github.com/voltswap/voltswap/core/reservation"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

const schema = `
CREATE TABLE IF NOT EXISTS reservations (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    station_id    TEXT NOT NULL,
    vehicle_id    TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL,
    hold_minutes  INT  NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    expires_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS reservations_user_idx ON reservations (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS reservations_station_idx ON reservations (station_id, created_at DESC);
CREATE INDEX IF NOT EXISTS reservations_status_idx ON reservations (status);
`

// PostgresStore is a pgx-backed reservation store. Rows are only ever
// inserted and updated; reservations are kept for audit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Put inserts a new reservation.
func (s *PostgresStore) Put(ctx context.Context, r model.Reservation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reservations (id, user_id, station_id, vehicle_id, status, hold_minutes, created_at, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.UserID, r.StationID, r.VehicleID, string(r.Status), r.HoldMinutes, r.CreatedAt, r.ExpiresAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// Get returns a reservation by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.scanOne(s.pool.QueryRow(ctx,
		`SELECT id, user_id, station_id, vehicle_id, status, hold_minutes, created_at, expires_at, updated_at
		 FROM reservations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reservation{}, fmt.Errorf("%s: %w", id, reservation.ErrNotFound)
		}
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return r, nil
}

// Update overwrites an existing reservation.
func (s *PostgresStore) Update(ctx context.Context, r model.Reservation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reservations
		 SET status = $2, hold_minutes = $3, expires_at = $4, updated_at = $5
		 WHERE id = $1`,
		r.ID, string(r.Status), r.HoldMinutes, r.ExpiresAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", r.ID, reservation.ErrNotFound)
	}
	return nil
}

// ListByUser returns the user's reservations, most recent first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	return s.list(ctx,
		`SELECT id, user_id, station_id, vehicle_id, status, hold_minutes, created_at, expires_at, updated_at
		 FROM reservations WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListByStation returns the station's reservations, most recent first.
func (s *PostgresStore) ListByStation(ctx context.Context, stationID string) ([]model.Reservation, error) {
	return s.list(ctx,
		`SELECT id, user_id, station_id, vehicle_id, status, hold_minutes, created_at, expires_at, updated_at
		 FROM reservations WHERE station_id = $1 ORDER BY created_at DESC`, stationID)
}

// ListPending returns every pending reservation, oldest first, so that
// restored expiry timers fire in hold order.
func (s *PostgresStore) ListPending(ctx context.Context) ([]model.Reservation, error) {
	return s.list(ctx,
		`SELECT id, user_id, station_id, vehicle_id, status, hold_minutes, created_at, expires_at, updated_at
		 FROM reservations WHERE status = $1 ORDER BY created_at ASC`, string(model.StatusPending))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (model.Reservation, error) {
	var r model.Reservation
	var status string
	err := row.Scan(&r.ID, &r.UserID, &r.StationID, &r.VehicleID, &status, &r.HoldMinutes, &r.CreatedAt, &r.ExpiresAt, &r.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Status = model.Status(status)
	return r, nil
}
