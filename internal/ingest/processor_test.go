package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterkeep/rosterkeep/internal/ledger"
	"github.com/rosterkeep/rosterkeep/internal/search"
	"github.com/rosterkeep/rosterkeep/internal/store"
	"github.com/rosterkeep/rosterkeep/internal/store/sqlite"
)

func newProcessor(t *testing.T) (*Processor, store.Store) {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := zerolog.Nop()
	return NewProcessor(ledger.New(st, log), search.NewEngine(st), log), st
}

func strp(s string) *string { return &s }

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestProcessor_AppliesLifecycle(t *testing.T) {
	p, st := newProcessor(t)
	ctx := context.Background()

	events := []Event{
		{Kind: KindJoin, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-01T00:00:00Z"), AccountName: strp("alice")},
		{Kind: KindRename, GuildID: "g1", MemberID: "m1", AccountName: strp("alice2")},
		{Kind: KindBan, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-02T00:00:00Z")},
		{Kind: KindLeave, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-03T00:00:00Z")},
	}
	for _, ev := range events {
		require.NoError(t, p.Handle(ctx, ev))
	}

	hist, err := st.Stints().History(ctx, "g1", "m1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Banned)
	assert.False(t, hist[0].Open())
	require.NotNil(t, hist[0].AccountName)
	assert.Equal(t, "alice2", *hist[0].AccountName)
}

func TestProcessor_DropsOutOfOrderEvents(t *testing.T) {
	p, st := newProcessor(t)
	ctx := context.Background()

	// A leave with no open stint is dropped, not surfaced as a failure.
	require.NoError(t, p.Handle(ctx, Event{
		Kind: KindLeave, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-01T00:00:00Z"),
	}))

	// A duplicate join is likewise dropped and the open stint survives.
	join := Event{Kind: KindJoin, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-02T00:00:00Z")}
	require.NoError(t, p.Handle(ctx, join))
	join.Timestamp = at("2024-03-03T00:00:00Z")
	require.NoError(t, p.Handle(ctx, join))

	hist, err := st.Stints().History(ctx, "g1", "m1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].JoinedAt.Equal(at("2024-03-02T00:00:00Z")))
}

func TestProcessor_DropsInvalidEvents(t *testing.T) {
	p, _ := newProcessor(t)

	// Leave timestamp before the join is a validation drop.
	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, Event{
		Kind: KindJoin, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-10T00:00:00Z"),
	}))
	require.NoError(t, p.Handle(ctx, Event{
		Kind: KindLeave, GuildID: "g1", MemberID: "m1", Timestamp: at("2024-03-01T00:00:00Z"),
	}))
}
