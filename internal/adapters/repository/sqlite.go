package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/okian/nakshatra/internal/domain/chart"
	"github.com/okian/nakshatra/internal/domain/model"
	"github.com/okian/nakshatra/pkg/metrics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id       TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	place         TEXT NOT NULL DEFAULT '',
	birth_instant TEXT NOT NULL,
	latitude      REAL NOT NULL,
	longitude     REAL NOT NULL,
	registered_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS natal_charts (
	user_id    TEXT PRIMARY KEY REFERENCES profiles(user_id),
	chart      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// SQLiteStore keeps profiles and natal charts in a SQLite database file.
// Charts are stored as JSON documents.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ProfileStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path in WAL mode.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	o := newOptions(opts)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	s := &SQLiteStore{db: db, now: o.now}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateTotalProfiles(n)
	}
	return s, nil
}

// CreateProfile implements ProfileStore.
func (s *SQLiteStore) CreateProfile(ctx context.Context, p model.BirthProfile) (err error) {
	defer func(start time.Time) { observe("create_profile", start, err) }(time.Now())

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (user_id, name, place, birth_instant, latitude, longitude, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Name, p.Place,
		p.BirthInstant.UTC().Format(time.RFC3339Nano),
		p.Latitude, p.Longitude,
		p.RegisteredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	if total, cerr := s.Count(ctx); cerr == nil {
		metrics.UpdateTotalProfiles(total)
	}
	return nil
}

// GetProfile implements ProfileStore.
func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (p model.BirthProfile, err error) {
	defer func(start time.Time) { observe("get_profile", start, err) }(time.Now())

	var birth, registered string
	err = s.db.QueryRowContext(ctx,
		`SELECT user_id, name, place, birth_instant, latitude, longitude, registered_at
		 FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.Name, &p.Place, &birth, &p.Latitude, &p.Longitude, &registered)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BirthProfile{}, ErrNotFound
	}
	if err != nil {
		return model.BirthProfile{}, fmt.Errorf("select profile: %w", err)
	}
	if p.BirthInstant, err = time.Parse(time.RFC3339Nano, birth); err != nil {
		return model.BirthProfile{}, fmt.Errorf("decode birth instant: %w", err)
	}
	if p.RegisteredAt, err = time.Parse(time.RFC3339Nano, registered); err != nil {
		return model.BirthProfile{}, fmt.Errorf("decode registration time: %w", err)
	}
	return p, nil
}

// SaveNatalChart implements ProfileStore.
func (s *SQLiteStore) SaveNatalChart(ctx context.Context, userID string, c chart.Chart) (err error) {
	defer func(start time.Time) { observe("save_natal_chart", start, err) }(time.Now())

	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles WHERE user_id = ?`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("lookup profile: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO natal_charts (user_id, chart, created_at) VALUES (?, ?, ?)`,
		userID, string(doc), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert chart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert chart: %w", err)
	}
	if n == 0 {
		return ErrChartExists
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetNatalChart implements ProfileStore.
func (s *SQLiteStore) GetNatalChart(ctx context.Context, userID string) (c chart.Chart, err error) {
	defer func(start time.Time) { observe("get_natal_chart", start, err) }(time.Now())

	var doc string
	err = s.db.QueryRowContext(ctx, `SELECT chart FROM natal_charts WHERE user_id = ?`, userID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return chart.Chart{}, ErrNotFound
	}
	if err != nil {
		return chart.Chart{}, fmt.Errorf("select chart: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return chart.Chart{}, fmt.Errorf("decode chart: %w", err)
	}
	return c, nil
}

// Count implements ProfileStore.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// Ping implements ProfileStore.
func (s *SQLiteStore) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { observe("ping", start, err) }(time.Now())
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: sqlite: %w", ErrUnavailable, err)
	}
	return nil
}

// Close implements ProfileStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
