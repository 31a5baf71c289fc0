package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterkeep/rosterkeep/internal/model"
	"github.com/rosterkeep/rosterkeep/internal/store/sqlite"
)

func newService(t *testing.T) *Service {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st, zerolog.Nop())
}

func strp(s string) *string { return &s }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestService_ValidatesPair(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	at := ts("2024-03-01T00:00:00Z")

	_, err := svc.RecordJoin(ctx, "", "m1", at, nil, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.RecordLeave(ctx, "g1", "", at)
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.History(ctx, "", "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestService_ValidatesTimestamp(t *testing.T) {
	svc := newService(t)
	_, err := svc.RecordJoin(context.Background(), "g1", "m1", time.Time{}, nil, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestService_RenameNeedsAName(t *testing.T) {
	svc := newService(t)
	_, err := svc.RecordNameChange(context.Background(), "g1", "m1", nil, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestService_JoinLeaveLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	st, err := svc.RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), strp("alice"), nil)
	require.NoError(t, err)
	assert.True(t, st.Open())

	_, err = svc.RecordJoin(ctx, "g1", "m1", ts("2024-03-02T00:00:00Z"), nil, nil)
	assert.ErrorIs(t, err, model.ErrConsistency)

	closed, err := svc.RecordLeave(ctx, "g1", "m1", ts("2024-03-03T00:00:00Z"))
	require.NoError(t, err)
	assert.False(t, closed.Open())

	_, err = svc.RecordLeave(ctx, "g1", "m1", ts("2024-03-04T00:00:00Z"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestService_BanLeavesStintOpen(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)

	st, err := svc.RecordBan(ctx, "g1", "m1", ts("2024-03-02T00:00:00Z"))
	require.NoError(t, err)
	assert.True(t, st.Banned)
	assert.True(t, st.Open())

	cur, err := svc.CurrentStint(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.True(t, cur.Banned)
}

func TestService_RecentMembersClampsLimit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)

	// Out-of-range limits fall back to the default rather than erroring.
	for _, limit := range []int{0, -5, 1000} {
		out, err := svc.RecentMembers(ctx, "g1", limit, nil)
		require.NoError(t, err)
		assert.Len(t, out, 1)
	}
}

func TestService_ExitsValidatesAndDefaults(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Exits(ctx, "", 10)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), strp("alice"), nil)
	require.NoError(t, err)
	_, err = svc.RecordLeave(ctx, "g1", "m1", ts("2024-03-02T00:00:00Z"))
	require.NoError(t, err)

	// Out-of-range limits fall back to the default.
	exits, err := svc.Exits(ctx, "g1", -1)
	require.NoError(t, err)
	require.Len(t, exits, 1)
	assert.Equal(t, "m1", exits[0].MemberID)
}

func TestService_RejoinersFloor(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.RecordJoin(ctx, "g1", "m1", ts("2024-03-01T00:00:00Z"), nil, nil)
	require.NoError(t, err)

	// minStints below 2 is raised to 2, so a single-stint member never
	// shows up.
	out, err := svc.Rejoiners(ctx, "g1", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}
