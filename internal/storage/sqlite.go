package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "zodbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Options configures OpenSQLite.
type Options struct {
	Path        string
	BusyTimeout time.Duration // 0 means 5s
	DefaultHour int           // notify_hour for rows created by EnsureUser
}

type sqliteStore struct {
	db          *sql.DB
	log         logx.Logger
	defaultHour int
}

// OpenSQLite opens (or creates) the database, applies pragmas and runs the
// embedded migrations.
func OpenSQLite(ctx context.Context, opt Options, log logx.Logger) (Store, error) {
	if strings.TrimSpace(opt.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(opt.Path), 0o755); err != nil {
		return nil, err
	}

	// _txlock=immediate makes BeginTx take the write lock up front, so two
	// concurrent registry switches serialize instead of both reading a
	// stale "no active row" state.
	db, err := sql.Open("sqlite", "file:"+opt.Path+"?_txlock=immediate")
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := opt.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	hour := opt.DefaultHour
	if hour < 0 {
		hour = 0
	}
	if hour > 23 {
		hour = 23
	}
	st := &sqliteStore{db: db, log: log, defaultHour: hour}

	if err := st.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	log.Info("sqlite ready", logx.String("path", opt.Path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(b)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func clampHour(h int) int {
	if h < 0 {
		return 0
	}
	if h > 23 {
		return 23
	}
	return h
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
