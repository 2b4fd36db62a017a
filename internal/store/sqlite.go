// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	// SQLite driver for the local backing store.
	_ "github.com/mattn/go-sqlite3"

	"github.com/MKhiriev/go-sync-store/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DB wraps the SQLite connection backing the local store and owns the
// change-notification fan-out.
//
// The pool is capped at one open connection: every read and write of the
// backing store happens on one serialized execution context, so a mutation is
// never interleaved with a concurrent read of the same store.
type DB struct {
	*sql.DB
	notifier *changeNotifier
}

// Open opens (or creates) the SQLite database at path and applies all
// embedded migrations. An empty path opens an in-memory database, which is
// what tests use.
func Open(path string) (*DB, error) {
	if path == "" {
		path = ":memory:"
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpeningDB, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err = migrate(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &DB{DB: sqlDB, notifier: newChangeNotifier()}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("migration error setting dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

// Subscribe returns a channel receiving one event per committed consumer-side
// mutation. Slow subscribers drop events rather than blocking commits; the
// events are triggers, not a replayable log.
func (d *DB) Subscribe() <-chan models.LocalChangeEvent {
	return d.notifier.subscribe()
}

// Close tears down the notification channels and the underlying connection.
func (d *DB) Close() error {
	d.notifier.close()
	return d.DB.Close()
}

// changeNotifier fans out local change events to all subscribers.
type changeNotifier struct {
	mu     sync.Mutex
	subs   []chan models.LocalChangeEvent
	closed bool
}

func newChangeNotifier() *changeNotifier {
	return &changeNotifier{}
}

func (n *changeNotifier) subscribe() <-chan models.LocalChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan models.LocalChangeEvent, 64)
	if n.closed {
		close(ch)
		return ch
	}
	n.subs = append(n.subs, ch)
	return ch
}

func (n *changeNotifier) publish(event models.LocalChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (n *changeNotifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
