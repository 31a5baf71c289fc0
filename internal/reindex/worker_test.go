package reindex

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterkeep/rosterkeep/internal/store"
	"github.com/rosterkeep/rosterkeep/internal/store/sqlite"
)

func newWorker(t *testing.T) (*Worker, store.Store, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sqlite.Open(path)
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	st := sqlite.NewWithDB(db)
	t.Cleanup(func() { _ = st.Close() })

	w := NewWorker(st, Config{Interval: 10 * time.Millisecond, BatchSize: 10}, zerolog.Nop())
	return w, st, db
}

func TestRunOnce_NothingStale(t *testing.T) {
	w, st, _ := newWorker(t)
	ctx := context.Background()

	name := "erin"
	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", time.Now().UTC(), &name, nil)
	require.NoError(t, err)

	repaired, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestRunOnce_RepairsInjectedStaleness(t *testing.T) {
	w, st, db := newWorker(t)
	ctx := context.Background()

	// A ledger row the index never saw, as after a crash mid-migration.
	_, err := db.ExecContext(ctx, `
		INSERT INTO memberships (guild_id, member_id, joined_at, banned, account_name)
		VALUES ('g1', 'm9', '2024-03-01T00:00:00Z', 0, 'frank')`)
	require.NoError(t, err)

	repaired, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	rec, err := st.Search().Get(ctx, "g1", "m9")
	require.NoError(t, err)
	assert.Equal(t, "frank", rec.AccountNorm)

	// Second scan finds nothing left to do.
	repaired, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestRun_StopsOnCancel(t *testing.T) {
	w, _, _ := newWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
