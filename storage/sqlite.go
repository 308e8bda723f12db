package storage

import (
	"context"
	"database/sql"
	"time"

	"flatwatch/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the default single-file persistence collaborator.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		language TEXT DEFAULT 'it',
		is_active BOOLEAN DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		city TEXT,
		min_rooms REAL,
		max_rooms REAL,
		max_price INTEGER,
		min_surface INTEGER,
		offer_type TEXT,
		object_category TEXT,
		is_active BOOLEAN DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS notified_properties (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		listing_pk INTEGER NOT NULL,
		notified_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_id, listing_pk)
	);

	CREATE TABLE IF NOT EXISTS cycle_runs (
		id INTEGER PRIMARY KEY,
		run_id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		matched INTEGER DEFAULT 0,
		sent INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(is_active);
	CREATE INDEX IF NOT EXISTS idx_notified_pair ON notified_properties(user_id, listing_pk);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, language, is_active, created_at)
		VALUES (?, ?, ?, ?, TRUE, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			language = excluded.language,
			is_active = TRUE`,
		u.ID, u.Username, u.FirstName, u.Language, time.Now())
	return err
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, language, is_active, created_at
		FROM users WHERE id = ?`, id)

	var u models.User
	var username, firstName sql.NullString
	err := row.Scan(&u.ID, &username, &firstName, &u.Language, &u.IsActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FirstName = firstName.String
	return &u, nil
}

func (s *SQLiteStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (user_id, city, min_rooms, max_rooms, max_price, min_surface, offer_type, object_category, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?)`,
		a.UserID, nullStr(a.Criteria.City), a.Criteria.MinRooms, a.Criteria.MaxRooms,
		a.Criteria.MaxPrice, a.Criteria.MinSurface, nullStr(a.Criteria.OfferType),
		nullStr(a.Criteria.Category), time.Now())
	if err != nil {
		return err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	a.IsActive = true
	return nil
}

func (s *SQLiteStore) GetActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, city, min_rooms, max_rooms, max_price, min_surface, offer_type, object_category, is_active, created_at
		FROM alerts WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *SQLiteStore) GetUserAlerts(ctx context.Context, userID int64, activeOnly bool) ([]models.Alert, error) {
	query := `
		SELECT id, user_id, city, min_rooms, max_rooms, max_price, min_surface, offer_type, object_category, is_active, created_at
		FROM alerts WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func (s *SQLiteStore) SetAlertActive(ctx context.Context, alertID, userID int64, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET is_active = ? WHERE id = ? AND user_id = ?`,
		active, alertID, userID)
	return err
}

func (s *SQLiteStore) DeleteAlert(ctx context.Context, alertID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE id = ? AND user_id = ?`, alertID, userID)
	return err
}

func (s *SQLiteStore) IsNotified(ctx context.Context, userID, listingPK int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM notified_properties WHERE user_id = ? AND listing_pk = ?`,
		userID, listingPK).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) MarkNotified(ctx context.Context, userID, listingPK int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notified_properties (user_id, listing_pk, notified_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, listing_pk) DO NOTHING`,
		userID, listingPK, time.Now())
	return err
}

func (s *SQLiteStore) CountNotified(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notified_properties WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) RecordCycle(ctx context.Context, run *models.CycleRun) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_runs (run_id, started_at, finished_at, matched, sent, failed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.FinishedAt, run.Matched, run.Sent, run.Failed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (s *SQLiteStore) GetRecentCycles(ctx context.Context, limit int) ([]models.CycleRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, started_at, finished_at, matched, sent, failed
		FROM cycle_runs ORDER BY id DESC LIMIT ?`, limit)
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

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAlerts(rows rowScanner) ([]models.Alert, error) {
	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		var city, offerType, category sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &city, &a.Criteria.MinRooms, &a.Criteria.MaxRooms,
			&a.Criteria.MaxPrice, &a.Criteria.MinSurface, &offerType, &category,
			&a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Criteria.City = city.String
		a.Criteria.OfferType = offerType.String
		a.Criteria.Category = category.String
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
