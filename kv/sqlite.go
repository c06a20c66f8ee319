package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// sqliteSchema stores one row per key. Deletes leave a tombstone so that
// pollers in other processes can observe them; version is a global write
// counter used to find rows changed since the last poll.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL DEFAULT '',
    deleted INTEGER NOT NULL DEFAULT 0,
    version INTEGER NOT NULL,
    origin TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kv_version ON kv(version);
`

const upsertSQL = `
INSERT INTO kv (key, value, deleted, version, origin, updated_at)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(version), 0) + 1 FROM kv), ?, ?)
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    deleted = excluded.deleted,
    version = excluded.version,
    origin = excluded.origin,
    updated_at = excluded.updated_at`

// DefaultPollInterval is how often an SQLiteMedium checks for foreign writes.
const DefaultPollInterval = time.Second

// SQLiteMedium stores the key space in an SQLite database. Every handle has
// its own origin id; Start polls for rows written by other origins.
type SQLiteMedium struct {
	mu       sync.Mutex
	db       *sql.DB
	origin   string
	seen     int64
	interval time.Duration
	log      *zap.Logger

	watchers watcherSet

	runMu   sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, interval time.Duration, log *zap.Logger) (*SQLiteMedium, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("kv: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: create schema: %w", err)
	}

	s := &SQLiteMedium{
		db:       db,
		origin:   uuid.New().String(),
		interval: interval,
		log:      log,
	}
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM kv`).Scan(&s.seen); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: read version: %w", err)
	}
	return s, nil
}

// Close stops polling and closes the database.
func (s *SQLiteMedium) Close() error {
	s.Stop()
	return s.db.Close()
}

func (s *SQLiteMedium) Get(key string) (string, bool, error) {
	var (
		value   string
		deleted bool
	)
	err := s.db.QueryRow(`SELECT value, deleted FROM kv WHERE key = ?`, key).Scan(&value, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if deleted {
		return "", false, nil
	}
	return value, true, nil
}

func (s *SQLiteMedium) Set(key, value string) error {
	return s.put(key, value, false)
}

func (s *SQLiteMedium) Delete(key string) error {
	return s.put(key, "", true)
}

func (s *SQLiteMedium) put(key, value string, deleted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(upsertSQL, key, value, deleted, s.origin, time.Now().UnixMilli())
	return err
}

func (s *SQLiteMedium) Watch(fn func(Change)) func() {
	return s.watchers.add(fn)
}

// Start launches the poll loop. It is non-blocking and idempotent.
func (s *SQLiteMedium) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	go s.run(ctx)
	return nil
}

// Stop ends the poll loop and waits for it to exit.
func (s *SQLiteMedium) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.runMu.Unlock()
	<-done
}

func (s *SQLiteMedium) run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Poll(); err != nil {
				s.log.Warn("polling storage", zap.Error(err))
			}
		}
	}
}

// Poll reports rows written by other origins since the previous poll.
func (s *SQLiteMedium) Poll() error {
	s.mu.Lock()
	rows, err := s.db.Query(
		`SELECT key, value, deleted, version, origin FROM kv WHERE version > ? ORDER BY version`, s.seen)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	var changes []Change
	for rows.Next() {
		var (
			c       Change
			version int64
			origin  string
		)
		if err := rows.Scan(&c.Key, &c.Value, &c.Deleted, &version, &origin); err != nil {
			rows.Close()
			s.mu.Unlock()
			return err
		}
		if version > s.seen {
			s.seen = version
		}
		if origin == s.origin {
			continue
		}
		if c.Deleted {
			c.Value = ""
		}
		changes = append(changes, c)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.watchers.emit(changes)
	return nil
}
