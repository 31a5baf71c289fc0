package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterkeep/rosterkeep/internal/model"
)

func TestRecordJoinLeave_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	joined := ts("2024-03-01T10:00:00Z")
	s, err := st.Stints().RecordJoin(ctx, "g1", "m1", joined, strp("alice"), strp("Alice W"))
	require.NoError(t, err)
	require.True(t, s.Open())
	assert.Equal(t, "g1", s.GuildID)
	assert.True(t, s.JoinedAt.Equal(joined))

	cur, err := st.Stints().CurrentStint(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, cur.ID)

	left := ts("2024-03-05T18:30:00Z")
	closed, err := st.Stints().RecordLeave(ctx, "g1", "m1", left)
	require.NoError(t, err)
	require.NotNil(t, closed.LeftAt)
	assert.True(t, closed.LeftAt.Equal(left))

	_, err = st.Stints().CurrentStint(ctx, "g1", "m1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	hist, err := st.Stints().History(ctx, "g1", "m1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

func TestRecordJoin_DuplicateOpenStint(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-01T10:00:00Z"), nil, nil)
	require.NoError(t, err)

	_, err = st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-02T10:00:00Z"), nil, nil)
	assert.ErrorIs(t, err, model.ErrConsistency)

	// The open stint survives untouched.
	hist, err := st.Stints().History(ctx, "g1", "m1")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Open())
}

func TestRecordLeave_NoOpenStint(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordLeave(ctx, "g1", "ghost", ts("2024-03-01T10:00:00Z"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecordLeave_BeforeJoinRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-10T00:00:00Z"), nil, nil)
	require.NoError(t, err)

	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-03-09T00:00:00Z"))
	assert.ErrorIs(t, err, model.ErrValidation)

	// Stint stays open.
	cur, err := st.Stints().CurrentStint(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.True(t, cur.Open())
}

func TestRejoin_OpensSecondStint(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-01-01T00:00:00Z"), strp("bob"), nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-02-01T00:00:00Z"))
	require.NoError(t, err)
	_, err = st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), strp("bob2"), nil)
	require.NoError(t, err)

	hist, err := st.Stints().History(ctx, "g1", "m1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.False(t, hist[0].Open())
	assert.True(t, hist[1].Open())
	assert.Greater(t, hist[1].ID, hist[0].ID)
}

func TestRecordBan_NeverClosesStint(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)

	banned, err := st.Stints().RecordBan(ctx, "g1", "m1", ts("2024-03-02T00:00:00Z"))
	require.NoError(t, err)
	assert.True(t, banned.Banned)
	assert.True(t, banned.Open())

	// Ban on a fully closed history marks the latest stint.
	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-03-03T00:00:00Z"))
	require.NoError(t, err)
	again, err := st.Stints().RecordBan(ctx, "g1", "m1", ts("2024-03-04T00:00:00Z"))
	require.NoError(t, err)
	assert.True(t, again.Banned)
	assert.False(t, again.Open())
}

func TestRecordBan_NoHistory(t *testing.T) {
	st := newTestStore(t)
	_, err := st.Stints().RecordBan(context.Background(), "g1", "ghost", ts("2024-03-01T00:00:00Z"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecordNameChange_PartialUpdate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), strp("old-acct"), strp("old-nick"))
	require.NoError(t, err)

	// Only the guild name changes; the account name keeps its value.
	s, err := st.Stints().RecordNameChange(ctx, "g1", "m1", nil, strp("new-nick"))
	require.NoError(t, err)
	require.NotNil(t, s.AccountName)
	require.NotNil(t, s.GuildName)
	assert.Equal(t, "old-acct", *s.AccountName)
	assert.Equal(t, "new-nick", *s.GuildName)
}

func TestRecentMembers_OrderAndCursor(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, m := range []string{"m1", "m2", "m3"} {
		_, err := st.Stints().RecordJoin(ctx, "g1", m, ts("2024-03-01T00:00:00Z"), strp("acct-"+m), nil)
		require.NoError(t, err)
	}

	all, err := st.Stints().RecentMembers(ctx, "g1", 10, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest stint first.
	assert.Equal(t, "m3", all[0].MemberID)
	assert.Equal(t, "m1", all[2].MemberID)

	// Cursor pages strictly past the newest row.
	page, err := st.Stints().RecentMembers(ctx, "g1", 10, &all[0].LastRowID)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].MemberID)
}

func TestRejoiners(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// m1: two stints, one exit. m2: single stint.
	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-01-01T00:00:00Z"), strp("alice"), nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-01-10T00:00:00Z"))
	require.NoError(t, err)
	_, err = st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-02-01T00:00:00Z"), strp("alice"), nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordJoin(ctx, "g1", "m2", ts("2024-02-01T00:00:00Z"), strp("bob"), nil)
	require.NoError(t, err)

	rows, err := st.Stints().Rejoiners(ctx, "g1", 2, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0].MemberID)
	assert.EqualValues(t, 2, rows[0].StintCount)
	assert.EqualValues(t, 1, rows[0].TimesLeft)
}

func TestGuildStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	empty, err := st.Stints().GuildStats(ctx, "nowhere")
	require.NoError(t, err)
	assert.EqualValues(t, 0, empty.UniqueMembers)
	assert.EqualValues(t, 0, empty.TotalStints)

	_, err = st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-01-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-01-10T00:00:00Z"))
	require.NoError(t, err)
	_, err = st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-02-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordJoin(ctx, "g1", "m2", ts("2024-02-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordBan(ctx, "g1", "m2", ts("2024-02-02T00:00:00Z"))
	require.NoError(t, err)

	stats, err := st.Stints().GuildStats(ctx, "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.CurrentMembers)
	assert.EqualValues(t, 2, stats.UniqueMembers)
	assert.EqualValues(t, 3, stats.TotalStints)
	assert.EqualValues(t, 1, stats.TotalExits)
	assert.EqualValues(t, 1, stats.TotalBans)
}

func TestExits_NewestFirstWithLatestNames(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// m1 leaves twice across two stints and renames after the first exit.
	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-01-01T00:00:00Z"), strp("alice"), nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-01-10T00:00:00Z"))
	require.NoError(t, err)
	_, err = st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-02-01T00:00:00Z"), strp("alicia"), nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordLeave(ctx, "g1", "m1", ts("2024-02-10T00:00:00Z"))
	require.NoError(t, err)

	// m2 is banned and then leaves.
	_, err = st.Stints().RecordJoin(ctx, "g1", "m2", ts("2024-01-05T00:00:00Z"), strp("bob"), nil)
	require.NoError(t, err)
	_, err = st.Stints().RecordBan(ctx, "g1", "m2", ts("2024-02-15T00:00:00Z"))
	require.NoError(t, err)
	_, err = st.Stints().RecordLeave(ctx, "g1", "m2", ts("2024-03-01T00:00:00Z"))
	require.NoError(t, err)

	// m3 is still present and must not appear.
	_, err = st.Stints().RecordJoin(ctx, "g1", "m3", ts("2024-03-05T00:00:00Z"), strp("carol"), nil)
	require.NoError(t, err)

	exits, err := st.Stints().Exits(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, exits, 3)

	assert.Equal(t, "m2", exits[0].MemberID)
	assert.True(t, exits[0].Banned)
	assert.True(t, exits[0].LeftAt.Equal(ts("2024-03-01T00:00:00Z")))

	// Both m1 exits carry the name from the latest stint.
	assert.Equal(t, "m1", exits[1].MemberID)
	assert.False(t, exits[1].Banned)
	assert.True(t, exits[1].LeftAt.Equal(ts("2024-02-10T00:00:00Z")))
	require.NotNil(t, exits[1].AccountName)
	assert.Equal(t, "alicia", *exits[1].AccountName)

	assert.Equal(t, "m1", exits[2].MemberID)
	assert.True(t, exits[2].LeftAt.Equal(ts("2024-01-10T00:00:00Z")))
	require.NotNil(t, exits[2].AccountName)
	assert.Equal(t, "alicia", *exits[2].AccountName)

	// Limit truncates from the newest end.
	one, err := st.Stints().Exits(ctx, "g1", 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "m2", one[0].MemberID)
}

func TestPurgeMember_RemovesLedgerAndIndex(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Stints().RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), strp("carol"), nil)
	require.NoError(t, err)

	_, err = st.Search().Get(ctx, "g1", "m1")
	require.NoError(t, err)

	require.NoError(t, st.Stints().PurgeMember(ctx, "g1", "m1"))

	_, err = st.Stints().History(ctx, "g1", "m1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = st.Search().Get(ctx, "g1", "m1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
