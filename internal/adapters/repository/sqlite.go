package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// goose keeps its settings in package globals.
var migrateMu sync.Mutex

const (
	defaultMaxOpenConns = 4
	timeLayout          = time.RFC3339Nano
)

// SQLiteStore is the leaderboard table backed by a SQLite file.
type SQLiteStore struct {
	db           *sql.DB
	log          logger.Logger
	maxOpenConns int
}

// NewSQLiteStore opens (creating if needed) the database at path and
// applies pending migrations.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{
		log:          logger.Nop(),
		maxOpenConns: defaultMaxOpenConns,
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory: %w", ErrOpen, err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=10000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetConnMaxIdleTime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrOpen, err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	s.db = db

	s.log.Info(ctx, "leaderboard database ready", logger.String("path", path))
	return s, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Save implements Store. The first row whose profile_id matches is updated.
func (s *SQLiteStore) Save(ctx context.Context, p model.Profile, at time.Time) (SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := at.UTC().Format(timeLayout)
	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM leaderboard WHERE profile_id = ? ORDER BY id LIMIT 1`, p.ID).Scan(&rowID)

	result := Updated
	switch {
	case errors.Is(err, sql.ErrNoRows):
		result = Inserted
		_, err = tx.ExecContext(ctx,
			`INSERT INTO leaderboard (profile_id, display_name, weblink, points, updated_at) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.DisplayName, p.Weblink, p.TotalPoints, stamp)
	case err == nil:
		_, err = tx.ExecContext(ctx,
			`UPDATE leaderboard SET display_name = ?, weblink = ?, points = ?, updated_at = ? WHERE id = ?`,
			p.DisplayName, p.Weblink, p.TotalPoints, stamp, rowID)
	}
	if err != nil {
		return 0, fmt.Errorf("save profile %s: %w", p.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}
	return result, nil
}

const rankedColumns = `RANK() OVER (ORDER BY points DESC) AS rank, id, profile_id, display_name, weblink, points, updated_at`

// Rank implements Store.
func (s *SQLiteStore) Rank(ctx context.Context, profileID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT rank, profile_id, display_name, weblink, points, updated_at
		 FROM (SELECT `+rankedColumns+` FROM leaderboard)
		 WHERE profile_id = ? ORDER BY id LIMIT 1`, profileID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("rank %s: %w", profileID, err)
	}
	return e, nil
}

// TopN implements Store.
func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, profile_id, display_name, weblink, points, updated_at
		 FROM (SELECT `+rankedColumns+` FROM leaderboard)
		 ORDER BY points DESC, id ASC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("top %d: %w", n, err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	out := make([]Entry, 0, n)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("top %d: %w", n, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top %d: %w", n, err)
	}
	return out, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e     Entry
		stamp string
	)
	if err := row.Scan(&e.Rank, &e.ProfileID, &e.DisplayName, &e.Weblink, &e.Points, &stamp); err != nil {
		return Entry{}, err
	}
	at, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return Entry{}, fmt.Errorf("parse updated_at %q: %w", stamp, err)
	}
	e.UpdatedAt = at
	return e, nil
}
