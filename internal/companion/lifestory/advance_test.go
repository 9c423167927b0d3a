package lifestory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
)

// Full unlock sequence: with a two-day-old max plot date, Advance must purge
// every daily-plot blob and row, complete the active segment, activate its
// locked sibling, and author duration_days fresh plots for it.
func TestAdvanceRunsFullUnlockSequence(t *testing.T) {
	dailyPlotJSON := `{"content":"A slow day of unpacking.","mood":{"valence":0.2,"arousal":0.3,"intensity":4,"tags":["settled"],"description":"quietly content"}}`
	m, db := newTestMachine(t, func(sys, user string) (string, error) {
		return dailyPlotJSON, nil
	})
	ctx := context.Background()

	require.NoError(t, db.PutOutline(ctx, &domain.Outline{OutlineID: "o1", RoleID: "role-1", Version: 1, Life: 80}))
	require.NoError(t, db.PutStage(ctx, &domain.Stage{StageID: "stage-1", OutlineID: "o1", Order: 1, Status: domain.StageActive}))
	require.NoError(t, db.PutSegment(ctx, &domain.Segment{
		SegmentID: "seg-1", StageID: "stage-1", OrderInStage: 1,
		Status: domain.SegmentActive, DurationDays: 2, Title: "Old flat",
	}))
	require.NoError(t, db.PutSegment(ctx, &domain.Segment{
		SegmentID: "seg-2", StageID: "stage-1", OrderInStage: 2,
		Status: domain.SegmentLocked, DurationDays: 2, LifeAge: 25, Title: "Move-in week",
	}))

	lastDay := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.PutDailyPlot(ctx, &domain.DailyPlot{
		PlotID: "p1", SegmentID: "seg-1", Order: 1, PlotDate: lastDay.AddDate(0, 0, -1), Status: domain.PlotCompleted,
	}))
	require.NoError(t, db.PutDailyPlot(ctx, &domain.DailyPlot{
		PlotID: "p2", SegmentID: "seg-1", Order: 2, PlotDate: lastDay, Status: domain.PlotActive,
	}))

	p, err := m.personas.Get("role-1")
	require.NoError(t, err)
	staleBlobDir := filepath.Join(p.PlotRoot, "role-1_plot")
	staleBlob := filepath.Join(staleBlobDir, "2025-05-19_Old flat.txt")
	writeFile(t, staleBlob, "yesterday's narrative")

	now := time.Date(2025, 5, 22, 9, 0, 0, 0, time.UTC)
	fired, err := m.Advance(ctx, now)
	require.NoError(t, err)
	require.True(t, fired)

	_, err = os.Stat(staleBlob)
	require.True(t, os.IsNotExist(err), "stale plot blob must be purged")

	seg1, err := db.GetSegment(ctx, "seg-1")
	require.NoError(t, err)
	require.Equal(t, domain.SegmentCompleted, seg1.Status)
	seg2, err := db.GetSegment(ctx, "seg-2")
	require.NoError(t, err)
	require.Equal(t, domain.SegmentActive, seg2.Status)

	oldPlots, err := db.ListPlotsBySegment(ctx, "seg-1")
	require.NoError(t, err)
	require.Empty(t, oldPlots, "the purged segment's rows must stay gone")

	newPlots, err := db.ListPlotsBySegment(ctx, "seg-2")
	require.NoError(t, err)
	require.Len(t, newPlots, 2, "duration_days fresh plots for the new active segment")
	require.Equal(t, domain.PlotActive, newPlots[0].Status)
	require.True(t, newPlots[0].PlotDate.Equal(now))
	require.True(t, newPlots[1].PlotDate.Equal(now.AddDate(0, 0, 1)))

	for _, np := range newPlots {
		data, rerr := os.ReadFile(np.ContentPath)
		require.NoError(t, rerr)
		require.Equal(t, "A slow day of unpacking.", string(data))
	}

	// Re-running with the same civil day as the new max must be a no-op.
	fired, err = m.Advance(ctx, now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.False(t, fired, "now.date == max(plot_date) is a no-op")
}

// A terminal generation failure during a stage transition must leave the
// outline exactly as it was before the trigger: the stage still Active and
// its segment rows untouched, so the next trigger can retry cleanly.
func TestAdvanceTerminalFailureLeavesPreTriggerState(t *testing.T) {
	m, db := newTestMachine(t, func(sys, user string) (string, error) {
		// Plain text: summary calls succeed, but every structured-output call
		// fails extraction, so authoring replacement stages fails terminally.
		return "no structured output here", nil
	})
	ctx := context.Background()

	require.NoError(t, db.PutOutline(ctx, &domain.Outline{OutlineID: "o1", RoleID: "role-1", Version: 1}))
	require.NoError(t, db.PutStage(ctx, &domain.Stage{StageID: "stage-1", OutlineID: "o1", Order: 1, Status: domain.StageActive}))
	require.NoError(t, db.PutSegment(ctx, &domain.Segment{
		SegmentID: "seg-1", StageID: "stage-1", OrderInStage: 1,
		Status: domain.SegmentActive, DurationDays: 1, Title: "Last week",
	}))
	require.NoError(t, db.PutDailyPlot(ctx, &domain.DailyPlot{
		PlotID: "p1", SegmentID: "seg-1", Order: 1,
		PlotDate: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), Status: domain.PlotActive,
	}))

	now := time.Date(2025, 5, 22, 9, 0, 0, 0, time.UTC)
	fired, err := m.Advance(ctx, now)
	require.NoError(t, err)
	require.True(t, fired)

	stage, err := db.GetStage(ctx, "stage-1")
	require.NoError(t, err)
	require.Equal(t, domain.StageActive, stage.Status, "stage must keep its pre-trigger status")

	seg, err := db.GetSegment(ctx, "seg-1")
	require.NoError(t, err)
	require.Equal(t, domain.SegmentActive, seg.Status, "segment rows must be unchanged")

	segs, err := db.ListSegmentsByStage(ctx, "stage-1")
	require.NoError(t, err)
	require.Len(t, segs, 1, "no segment may have been deleted")
}
