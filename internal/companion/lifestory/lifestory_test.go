package lifestory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
	"github.com/kiosk404/soulgraph/internal/companion/persona"
	"github.com/kiosk404/soulgraph/internal/companion/plotgen"
	"github.com/kiosk404/soulgraph/internal/companion/store/durable"
)

func newTestMachine(t *testing.T, fn func(sys, user string) (string, error)) (*Machine, *durable.DB) {
	t.Helper()
	db, err := durable.Open(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	paths := config.PathsConfig{
		PlotRoot:    filepath.Join(t.TempDir(), "plots"),
		SummaryRoot: filepath.Join(t.TempDir(), "summaries"),
		PersonaRoot: t.TempDir(),
	}

	personas := persona.New(paths)
	personaPath := filepath.Join(paths.PersonaRoot, "role-1_L0_prompt.txt")
	writeFile(t, personaPath, "A calm librarian.")
	_, err = personas.Load(persona.Descriptor{RoleID: "role-1", RoleName: "Chen Xiaozhi", Age: 25})
	require.NoError(t, err)

	provider := llm.FuncProvider{Fn: fn}
	gen := plotgen.New(provider, paths)

	return New(db, personas, gen, paths), db
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func noopProvider(sys, user string) (string, error) { return "", nil }

func TestShouldTriggerNoOpWhenNoPlotsRecorded(t *testing.T) {
	m, _ := newTestMachine(t, noopProvider)
	fire, err := m.ShouldTrigger(context.Background(), time.Now())
	require.NoError(t, err)
	require.False(t, fire, "with no recorded plots, trigger must be false")
}

func TestShouldTriggerNoOpWhenSameDay(t *testing.T) {
	m, db := newTestMachine(t, noopProvider)
	ctx := context.Background()

	today := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	plot := &domain.DailyPlot{PlotID: uuid.NewString(), SegmentID: "seg-1", Order: 1, PlotDate: today, Status: domain.PlotActive}
	require.NoError(t, db.PutDailyPlot(ctx, plot))

	fire, err := m.ShouldTrigger(ctx, today)
	require.NoError(t, err)
	require.False(t, fire, "now.date == max(plot_date) must be a no-op per spec §8")
}

func TestShouldTriggerFiresOnAdvancement(t *testing.T) {
	m, db := newTestMachine(t, noopProvider)
	ctx := context.Background()

	day := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)
	plot := &domain.DailyPlot{PlotID: uuid.NewString(), SegmentID: "seg-1", Order: 1, PlotDate: day, Status: domain.PlotActive}
	require.NoError(t, db.PutDailyPlot(ctx, plot))

	fire, err := m.ShouldTrigger(ctx, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.True(t, fire, "now.date > max(plot_date) must fire")
}

func TestAdvanceSegmentsMovesToNextLockedSibling(t *testing.T) {
	m, db := newTestMachine(t, noopProvider)
	ctx := context.Background()

	stage := &domain.Stage{StageID: "stage-1", OutlineID: "outline-1", Order: 1, Status: domain.StageActive}
	active := &domain.Segment{SegmentID: "seg-1", StageID: "stage-1", OrderInStage: 1, Status: domain.SegmentActive, DurationDays: 1}
	next := &domain.Segment{SegmentID: "seg-2", StageID: "stage-1", OrderInStage: 2, Status: domain.SegmentLocked, DurationDays: 1}
	require.NoError(t, db.PutSegment(ctx, active))
	require.NoError(t, db.PutSegment(ctx, next))

	exhausted, err := m.advanceSegments(ctx, stage)
	require.NoError(t, err)
	require.False(t, exhausted, "a locked sibling exists; stage must not be reported exhausted")

	got, err := db.GetSegment(ctx, "seg-1")
	require.NoError(t, err)
	require.Equal(t, domain.SegmentCompleted, got.Status)

	got2, err := db.GetSegment(ctx, "seg-2")
	require.NoError(t, err)
	require.Equal(t, domain.SegmentActive, got2.Status)
}

func TestAdvanceSegmentsReportsExhaustedWhenNoSiblingLeft(t *testing.T) {
	m, db := newTestMachine(t, noopProvider)
	ctx := context.Background()

	stage := &domain.Stage{StageID: "stage-1", OutlineID: "outline-1", Order: 1, Status: domain.StageActive}
	active := &domain.Segment{SegmentID: "seg-1", StageID: "stage-1", OrderInStage: 1, Status: domain.SegmentActive, DurationDays: 1}
	require.NoError(t, db.PutSegment(ctx, active))

	exhausted, err := m.advanceSegments(ctx, stage)
	require.NoError(t, err)
	require.True(t, exhausted, "no locked sibling remains; stage must be reported exhausted")
}

func TestReconcileStageStatusesAssignsSingleActive(t *testing.T) {
	m, db := newTestMachine(t, noopProvider)
	ctx := context.Background()

	ages := map[string]int{"s1": 20, "s2": 25, "s3": 25, "s4": 30}
	stages := []*domain.Stage{
		{StageID: "s1", OutlineID: "o1", Order: 1},
		{StageID: "s2", OutlineID: "o1", Order: 2},
		{StageID: "s3", OutlineID: "o1", Order: 3},
		{StageID: "s4", OutlineID: "o1", Order: 4},
	}
	for _, s := range stages {
		require.NoError(t, db.PutStage(ctx, s))
	}

	err := m.ReconcileStageStatuses(ctx, "o1", 25, func(s *domain.Stage) int { return ages[s.StageID] })
	require.NoError(t, err)

	got, err := db.ListStagesByOutline(ctx, "o1")
	require.NoError(t, err)

	byID := map[string]*domain.Stage{}
	for _, s := range got {
		byID[s.StageID] = s
	}
	require.Equal(t, domain.StageCompleted, byID["s1"].Status, "age 20 < 25 must be Completed")
	require.Equal(t, domain.StageLocked, byID["s4"].Status, "age 30 > 25 must be Locked")

	activeCount := 0
	for _, id := range []string{"s2", "s3"} {
		if byID[id].Status == domain.StageActive {
			activeCount++
		}
	}
	require.Equal(t, 1, activeCount, "exactly one Active stage among same-age siblings")
}
