package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flatwatch/models"
)

// PostgresStore is the persistence collaborator for deployments that share a
// database across instances. Same contract as SQLiteStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the underlying pool for ad-hoc queries.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		language TEXT DEFAULT 'it',
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		city TEXT,
		min_rooms REAL,
		max_rooms REAL,
		max_price INTEGER,
		min_surface INTEGER,
		offer_type TEXT,
		object_category TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS notified_properties (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		listing_pk BIGINT NOT NULL,
		notified_at TIMESTAMPTZ DEFAULT NOW(),
		UNIQUE(user_id, listing_pk)
	);

	CREATE TABLE IF NOT EXISTS cycle_runs (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		matched INTEGER DEFAULT 0,
		sent INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(is_active);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, first_name, language, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			language = EXCLUDED.language,
			is_active = TRUE`,
		u.ID, u.Username, u.FirstName, u.Language, time.Now())
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(username, ''), COALESCE(first_name, ''), language, is_active, created_at
		FROM users WHERE id = $1`, id)

	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.Language, &u.IsActive, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alerts (user_id, city, min_rooms, max_rooms, max_price, min_surface, offer_type, object_category, is_active, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), TRUE, $9)
		RETURNING id`,
		a.UserID, a.Criteria.City, a.Criteria.MinRooms, a.Criteria.MaxRooms,
		a.Criteria.MaxPrice, a.Criteria.MinSurface, a.Criteria.OfferType,
		a.Criteria.Category, time.Now()).Scan(&a.ID)
	if err != nil {
		return err
	}
	a.IsActive = true
	return nil
}

func (s *PostgresStore) GetActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, COALESCE(city, ''), min_rooms, max_rooms, max_price, min_surface,
			COALESCE(offer_type, ''), COALESCE(object_category, ''), is_active, created_at
		FROM alerts WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgAlerts(rows)
}

func (s *PostgresStore) GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, COALESCE(city, ''), min_rooms, max_rooms, max_price, min_surface,
			COALESCE(offer_type, ''), COALESCE(object_category, ''), is_active, created_at
		FROM alerts WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgAlerts(rows)
}

func (s *PostgresStore) SetAlertActive(ctx context.Context, alertID, userID int64, active bool) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE alerts SET is_active = $1 WHERE id = $2 AND user_id = $3`,
		active, alertID, userID)
	return err
}

func (s *PostgresStore) DeleteAlert(ctx context.Context, alertID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM alerts WHERE id = $1 AND user_id = $2`, alertID, userID)
	return err
}

func (s *PostgresStore) IsNotified(ctx context.Context, userID, listingPK int64) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM notified_properties WHERE user_id = $1 AND listing_pk = $2`,
		userID, listingPK).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) MarkNotified(ctx context.Context, userID, listingPK int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notified_properties (user_id, listing_pk, notified_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, listing_pk) DO NOTHING`,
		userID, listingPK, time.Now())
	return err
}

func (s *PostgresStore) CountNotified(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notified_properties WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (s *PostgresStore) RecordCycle(ctx context.Context, run *models.CycleRun) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO cycle_runs (run_id, started_at, finished_at, matched, sent, failed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		run.RunID, run.StartedAt, run.FinishedAt, run.Matched, run.Sent, run.Failed).Scan(&run.ID)
}

func (s *PostgresStore) GetRecentCycles(ctx context.Context, limit int) ([]models.CycleRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, started_at, finished_at, matched, sent, failed
		FROM cycle_runs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CycleRun
	for rows.Next() {
		var r models.CycleRun
		if err := rows.Scan(&r.ID, &r.RunID, &r.StartedAt, &r.FinishedAt,
			&r.Matched, &r.Sent, &r.Failed); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanPgAlerts(rows pgx.Rows) ([]models.Alert, error) {
	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Criteria.City, &a.Criteria.MinRooms,
			&a.Criteria.MaxRooms, &a.Criteria.MaxPrice, &a.Criteria.MinSurface,
			&a.Criteria.OfferType, &a.Criteria.Category, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
