// Package sqlite implements store.Store on modernc.org/sqlite. It is the
// default driver for local and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/rosterkeep/rosterkeep/internal/store"
)

// New opens the database at path, applies migrations, and returns the store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing connection. The caller is responsible for
// schema setup; used by tests and the factory.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Stints() store.Stints     { return &stints{db: s.db} }
func (s *sqliteStore) Search() store.Search     { return &search{db: s.db} }
func (s *sqliteStore) Settings() store.Settings { return &settings{db: s.db} }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *sqliteStore) Close() error                   { return s.db.Close() }

// Timestamps persist as RFC 3339 text, always UTC.
func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func nullStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
