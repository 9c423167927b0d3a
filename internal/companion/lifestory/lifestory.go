// Package lifestory implements Component K: the Life-Story State Machine.
// Grounded on original_source/life_stage_updater.py for the per-day status
// reconciliation rules, and on the teacher's per-resource advisory-lock style
// (internal/hivemind's single-writer queue patterns) for serializing
// transitions per outline_id (spec §5).
package lifestory

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/coderr"
	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/persona"
	"github.com/kiosk404/soulgraph/internal/companion/plotgen"
	"github.com/kiosk404/soulgraph/internal/companion/store/durable"
)

var logger = log.For("lifestory")

// Machine runs the status-progression rules and triggers the Plot Generator
// when new content is needed (spec §4.K).
type Machine struct {
	db       *durable.DB
	personas *persona.Store
	gen      *plotgen.Generator
	paths    config.PathsConfig

	mu          sync.Mutex
	outlineMus  map[string]*sync.Mutex
}

// New builds a Life-Story State Machine.
func New(db *durable.DB, personas *persona.Store, gen *plotgen.Generator, paths config.PathsConfig) *Machine {
	return &Machine{db: db, personas: personas, gen: gen, paths: paths, outlineMus: make(map[string]*sync.Mutex)}
}

func (m *Machine) lockFor(outlineID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.outlineMus[outlineID]
	if !ok {
		mu = &sync.Mutex{}
		m.outlineMus[outlineID] = mu
	}
	return mu
}

// ShouldTrigger reports spec §4.K's trigger condition: now.date is strictly
// after the max plot_date recorded across durable daily plots. Re-running
// with now.date == max(plot_date) is a no-op (spec §8).
func (m *Machine) ShouldTrigger(ctx context.Context, now time.Time) (bool, error) {
	best, found, err := m.db.MaxPlotDate(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	y, mo, d := now.Date()
	py, pm, pd := best.PlotDate.In(now.Location()).Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	return today.After(time.Date(py, pm, pd, 0, 0, 0, 0, time.UTC)), nil
}

// Advance runs the full unlock sequence for every known role if and only if
// ShouldTrigger reports true; otherwise it is a no-op (spec §8 round-trip
// property). Returns whether it fired.
func (m *Machine) Advance(ctx context.Context, now time.Time) (bool, error) {
	fire, err := m.ShouldTrigger(ctx, now)
	if err != nil || !fire {
		return false, err
	}

	// Step 1: purge. Intentional — daily plots are derived and regenerable.
	roleIDs := m.personas.RoleIDs()
	for _, roleID := range roleIDs {
		if p, err := m.personas.Get(roleID); err == nil {
			purgePlotBlobs(p.PlotRoot, roleID)
		}
	}
	if err := m.db.PurgeAllPlots(ctx); err != nil {
		return false, fmt.Errorf("lifestory: purge daily plots: %w", err)
	}

	for _, roleID := range roleIDs {
		if err := m.advanceRole(ctx, roleID, now); err != nil {
			logger.WithError(err).WithField("role_id", roleID).Error("failed to advance life story; leaving pre-trigger state for this role")
		}
	}
	return true, nil
}

func (m *Machine) advanceRole(ctx context.Context, roleID string, now time.Time) error {
	p, err := m.personas.Get(roleID)
	if err != nil {
		return err
	}
	outline, err := m.db.LatestOutline(ctx, roleID)
	if err != nil {
		return nil // no outline for this role yet; nothing to advance
	}

	lock := m.lockFor(outline.OutlineID)
	lock.Lock()
	defer lock.Unlock()

	activeStage, err := m.db.ActiveStage(ctx, outline.OutlineID)
	if err != nil {
		return err
	}
	if activeStage == nil {
		return nil
	}

	exhausted, err := m.advanceSegments(ctx, activeStage)
	if err != nil {
		return err
	}

	if exhausted {
		var advErr error
		activeStage, advErr = m.advanceStage(ctx, p, outline, activeStage)
		if advErr != nil {
			return advErr
		}
	}
	if activeStage == nil {
		return nil
	}

	return m.regeneratePlotContent(ctx, p, activeStage, now)
}

// advanceSegments implements spec §4.K step 2. Returns whether the parent
// stage is now exhausted (no Locked sibling to advance to). In the exhausted
// case nothing is committed: the caller owns the whole stage transition, so
// that a terminal generation failure there leaves every row in its
// pre-trigger state.
func (m *Machine) advanceSegments(ctx context.Context, stage *domain.Stage) (bool, error) {
	active, err := m.db.ActiveSegment(ctx, stage.StageID)
	if err != nil {
		return false, err
	}
	if active == nil {
		return true, nil
	}

	segments, err := m.db.ListSegmentsByStage(ctx, stage.StageID)
	if err != nil {
		return false, err
	}
	var next *domain.Segment
	for _, s := range segments {
		if s.OrderInStage == active.OrderInStage+1 && s.Status == domain.SegmentLocked {
			next = s
			break
		}
	}
	if next == nil {
		return true, nil
	}

	active.Status = domain.SegmentCompleted
	active.UpdatedAt = time.Now()
	if err := m.db.PutSegment(ctx, active); err != nil {
		return false, err
	}
	next.Status = domain.SegmentActive
	next.UpdatedAt = time.Now()
	if err := m.db.PutSegment(ctx, next); err != nil {
		return false, err
	}
	return false, nil
}

// advanceStage implements spec §4.K step 3. Every model call runs before the
// first row is written: a terminal generation failure returns with the stage
// and its segments still in their pre-trigger state (spec §4.K "Failure
// semantics": no partial transitions committed; the next trigger retries).
func (m *Machine) advanceStage(ctx context.Context, p *domain.Persona, outline *domain.Outline, stage *domain.Stage) (*domain.Stage, error) {
	if segments, err := m.db.ListSegmentsByStage(ctx, stage.StageID); err == nil {
		var played []*domain.Segment
		for _, s := range segments {
			if s.Status == domain.SegmentCompleted || s.Status == domain.SegmentActive {
				played = append(played, s)
			}
		}
		if summary, err := m.gen.GenerateStageSummary(ctx, p, stage, played); err == nil {
			stage.Summary = summary
		}
	}

	stages, err := m.db.ListStagesByOutline(ctx, outline.OutlineID)
	if err != nil {
		return nil, err
	}
	var next *domain.Stage
	for _, s := range stages {
		if s.Order == stage.Order+1 && s.Status == domain.StageLocked {
			next = s
			break
		}
	}

	// No further stage exists: have the Plot Generator author new ones,
	// appended after the last — before committing anything, so a terminal
	// failure here is side-effect free. GenerateStages prompts for a full
	// outline of at least six stages; every stage it returns is appended, and
	// the number is not limited.
	var newStages []*domain.Stage
	if next == nil {
		lastOrder := 0
		for _, s := range stages {
			if s.Order > lastOrder {
				lastOrder = s.Order
			}
		}
		newStages, err = m.gen.GenerateStages(ctx, p, outline, lastOrder)
		if err != nil {
			return nil, coderr.New(coderr.ErrGenerationFailed, err.Error())
		}
		if len(newStages) == 0 {
			return nil, coderr.New(coderr.ErrGenerationFailed, "no stages authored")
		}
	}

	stage.Status = domain.StageCompleted
	stage.UpdatedAt = time.Now()
	if err := m.db.PutStage(ctx, stage); err != nil {
		return nil, err
	}
	if err := m.db.DeleteSegmentsByStage(ctx, stage.StageID); err != nil {
		return nil, err
	}

	m.refreshPastExperienceSummary(ctx, p, outline)

	if next != nil {
		next.Status = domain.StageActive
		next.UpdatedAt = time.Now()
		if err := m.db.PutStage(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	}

	var first *domain.Stage
	for _, s := range newStages {
		if err := m.db.PutStage(ctx, s); err != nil {
			return nil, err
		}
		if first == nil {
			first = s
		}
	}
	return first, nil
}

// regeneratePlotContent implements spec §4.K step 4.
func (m *Machine) regeneratePlotContent(ctx context.Context, p *domain.Persona, stage *domain.Stage, now time.Time) error {
	existing, err := m.db.ListSegmentsByStage(ctx, stage.StageID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		pastLife := readPastLifeSummary(p.SummaryPath)
		segments, err := m.gen.GenerateSegments(ctx, p, stage, pastLife, p.Age)
		if err != nil {
			return coderr.New(coderr.ErrGenerationFailed, err.Error())
		}
		for _, s := range segments {
			if err := m.db.PutSegment(ctx, s); err != nil {
				return err
			}
		}
		existing = segments
	}

	var active *domain.Segment
	for _, s := range existing {
		if s.Status == domain.SegmentActive {
			active = s
			break
		}
	}
	if active == nil {
		return nil
	}

	plots, err := m.db.ListPlotsBySegment(ctx, active.SegmentID)
	if err != nil {
		return err
	}
	if len(plots) > 0 {
		return nil // already generated for this segment
	}

	historicalEvents := renderHistoricalEvents(existing, active)
	pastLife := readPastLifeSummary(p.SummaryPath)
	previousSummary := ""
	previousMood := p.InitialMood
	for day := 1; day <= active.DurationDays; day++ {
		plotDate := now.AddDate(0, 0, day-1)
		dp, err := m.gen.GenerateDailyPlot(ctx, p, active, historicalEvents, pastLife, day, plotDate, previousSummary, previousMood)
		if err != nil {
			return coderr.New(coderr.ErrGenerationFailed, err.Error())
		}
		if day == 1 {
			dp.Status = domain.PlotActive
		}
		if err := m.db.PutDailyPlot(ctx, dp); err != nil {
			return err
		}
		previousSummary = ""
		if data, err := os.ReadFile(dp.ContentPath); err == nil {
			previousSummary = string(data)
		}
		previousMood = dp.Mood
	}
	return nil
}

func renderHistoricalEvents(segments []*domain.Segment, active *domain.Segment) string {
	out := ""
	for _, s := range segments {
		if s.Status == domain.SegmentCompleted {
			out += fmt.Sprintf("%s: %s\n", s.Title, s.EmotionalArc)
		}
	}
	return out
}

// ReconcileStageStatuses applies the age-driven per-day status reconciliation
// SPEC_FULL §D.3 adds, one level up from the segment-level rule spec §4.K
// already states: mark stages whose life_period has fully passed for the
// character's current age as Completed, the earliest still-current one
// Active, the rest Locked. Run at session warm-up alongside the trigger
// check. Grounded on original_source's _determine_stage_status.
func (m *Machine) ReconcileStageStatuses(ctx context.Context, outlineID string, currentAge int, ageOf func(*domain.Stage) int) error {
	lock := m.lockFor(outlineID)
	lock.Lock()
	defer lock.Unlock()

	stages, err := m.db.ListStagesByOutline(ctx, outlineID)
	if err != nil {
		return err
	}
	activeAssigned := false
	for _, s := range stages {
		age := ageOf(s)
		switch {
		case age < currentAge:
			s.Status = domain.StageCompleted
		case age == currentAge && !activeAssigned:
			s.Status = domain.StageActive
			activeAssigned = true
		case age == currentAge:
			s.Status = domain.StageLocked
		default:
			s.Status = domain.StageLocked
		}
		s.UpdatedAt = time.Now()
		if err := m.db.PutStage(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) refreshPastExperienceSummary(ctx context.Context, p *domain.Persona, outline *domain.Outline) {
	stages, err := m.db.ListStagesByOutline(ctx, outline.OutlineID)
	if err != nil {
		return
	}
	var completed []*domain.Stage
	for _, s := range stages {
		if s.Status == domain.StageCompleted {
			completed = append(completed, s)
		}
	}
	if err := m.gen.WritePastExperienceSummary(ctx, p, completed); err != nil {
		logger.WithError(err).Warn("failed to refresh past-experience summary")
	}
}
