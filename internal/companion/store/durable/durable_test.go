package durable

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutMessageEnforcesUniqueSessionOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	m1 := &domain.Message{MessageID: "m1", SessionID: "s1", Order: 1, SenderType: domain.SenderUser}
	m2 := &domain.Message{MessageID: "m2", SessionID: "s1", Order: 1, SenderType: domain.SenderAgent}
	require.NoError(t, db.PutMessage(ctx, m1))
	require.Error(t, db.PutMessage(ctx, m2), "duplicate (session_id, order) must be rejected")

	// Same order in a different session is fine.
	m3 := &domain.Message{MessageID: "m3", SessionID: "s2", Order: 1, SenderType: domain.SenderUser}
	require.NoError(t, db.PutMessage(ctx, m3))
}

func TestHasMessageTracksPersistedIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	found, err := db.HasMessage(ctx, "m1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, db.PutMessage(ctx, &domain.Message{MessageID: "m1", SessionID: "s1", Order: 1}))
	found, err = db.HasMessage(ctx, "m1")
	require.NoError(t, err)
	require.True(t, found)
}

func TestMaxOrderAndListOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		require.NoError(t, db.PutMessage(ctx, &domain.Message{
			MessageID: "m" + string(rune('a'+i)), SessionID: "s1", Order: i,
		}))
	}
	max, err := db.MaxOrder(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 12, max)

	msgs, err := db.ListMessagesBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 12)
	for i, m := range msgs {
		require.Equalf(t, i+1, m.Order, "zero-padded keys must keep numeric order at %d", i)
	}
}

func TestTouchSessionBumpsCountersAndLastMessageAt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

	s := &domain.Session{SessionID: "s1", UserName: "alice", LastMessageAt: base}
	require.NoError(t, db.PutSession(ctx, s))

	require.NoError(t, db.TouchSession(ctx, "s1", base.Add(time.Minute), 2, 2, 4))
	got, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 2, got.UserCount)
	require.Equal(t, 2, got.AgentCount)
	require.Equal(t, 4, got.TotalCount)
	require.True(t, got.LastMessageAt.Equal(base.Add(time.Minute)))

	// An older timestamp never moves LastMessageAt backwards.
	require.NoError(t, db.TouchSession(ctx, "s1", base.Add(-time.Hour), 0, 1, 1))
	got, err = db.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.True(t, got.LastMessageAt.Equal(base.Add(time.Minute)))

	// Unknown sessions are skipped silently.
	require.NoError(t, db.TouchSession(ctx, "nope", base, 1, 1, 2))
}

func TestLatestOutlineIsHighestVersion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.PutOutline(ctx, &domain.Outline{OutlineID: "o1", RoleID: "r1", Version: 1}))
	require.NoError(t, db.PutOutline(ctx, &domain.Outline{OutlineID: "o2", RoleID: "r1", Version: 3}))
	require.NoError(t, db.PutOutline(ctx, &domain.Outline{OutlineID: "o3", RoleID: "r1", Version: 2}))

	best, err := db.LatestOutline(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "o2", best.OutlineID)

	_, err = db.LatestOutline(ctx, "unknown")
	require.Error(t, err)
}

func TestStageUniqueOrderPerOutline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s1 := &domain.Stage{StageID: "st1", OutlineID: "o1", Order: 1, Status: domain.StageActive}
	require.NoError(t, db.PutStage(ctx, s1))
	dup := &domain.Stage{StageID: "st2", OutlineID: "o1", Order: 1, Status: domain.StageLocked}
	require.Error(t, db.PutStage(ctx, dup))

	// Overwriting the same stage row is allowed.
	s1.Status = domain.StageCompleted
	require.NoError(t, db.PutStage(ctx, s1))
}

func TestDeleteSegmentsByStageCascades(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, db.PutSegment(ctx, &domain.Segment{
			SegmentID: "sg" + string(rune('0'+i)), StageID: "st1", OrderInStage: i,
		}))
	}
	require.NoError(t, db.PutSegment(ctx, &domain.Segment{SegmentID: "other", StageID: "st2", OrderInStage: 1}))

	require.NoError(t, db.DeleteSegmentsByStage(ctx, "st1"))
	left, err := db.ListSegmentsByStage(ctx, "st1")
	require.NoError(t, err)
	require.Empty(t, left)
	kept, err := db.ListSegmentsByStage(ctx, "st2")
	require.NoError(t, err)
	require.Len(t, kept, 1)
}

func TestMaxPlotDateAndPurge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, found, err := db.MaxPlotDate(ctx)
	require.NoError(t, err)
	require.False(t, found)

	d1 := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 5, 22, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.PutDailyPlot(ctx, &domain.DailyPlot{PlotID: "p1", SegmentID: "sg1", Order: 1, PlotDate: d1}))
	require.NoError(t, db.PutDailyPlot(ctx, &domain.DailyPlot{PlotID: "p2", SegmentID: "sg1", Order: 2, PlotDate: d2}))

	best, found, err := db.MaxPlotDate(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, best.PlotDate.Equal(d2))

	require.NoError(t, db.PurgeAllPlots(ctx))
	_, found, err = db.MaxPlotDate(ctx)
	require.NoError(t, err)
	require.False(t, found, "purge must empty the daily-plot table")

	// The purged table accepts fresh rows.
	require.NoError(t, db.PutDailyPlot(ctx, &domain.DailyPlot{PlotID: "p3", SegmentID: "sg1", Order: 1, PlotDate: d1}))
}
