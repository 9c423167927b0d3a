// Package plotgen implements Component L: model-driven authoring of stages,
// segments, and daily plots. Grounded on the teacher's structured-generation
// call style (provider.Complete + JSON extraction, same shape as analyzer/
// thought) and on original_source/life_stage_updater.py for the stage-summary
// and past-experience-summary supplements (SPEC_FULL §D.1-2).
package plotgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
	"github.com/kiosk404/soulgraph/internal/companion/log"
)

var logger = log.For("plotgen")

const (
	maxRetryAttempts = 3
	retryBaseDelay   = 2 * time.Second
	minStages        = 6
	minSegments      = 4
	maxSegments      = 6
)

// Generator authors new life-story content via model calls.
type Generator struct {
	provider llm.Provider
	paths    config.PathsConfig
}

// New builds a Plot Generator.
func New(provider llm.Provider, paths config.PathsConfig) *Generator {
	return &Generator{provider: provider, paths: paths}
}

type stageDraft struct {
	LifePeriod  string `json:"life_period"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Goals       string `json:"goals"`
}

type stagesDraft struct {
	Stages []stageDraft `json:"stages"`
}

// GenerateStages authors an ordered array of stage objects covering from
// birth to the current age or expected lifespan (spec §4.L). The prompt asks
// for at least minStages stages; the number the model returns is not checked,
// and every returned stage is kept. appendAfterOrder is the highest existing
// order to append after (0 for a brand-new outline).
func (g *Generator) GenerateStages(ctx context.Context, persona *domain.Persona, outline *domain.Outline, appendAfterOrder int) ([]*domain.Stage, error) {
	sys := fmt.Sprintf(`You are authoring the life-stage outline for a character.
Persona: %s
Outline: title=%q life=%d years wealth=%q theme=%q

Produce at least %d sequential life stages, each covering a distinct age
range from birth to the character's expected lifespan. Respond with ONLY:
{"stages":[{"life_period":"23-26","title":"...","description":"...","goals":"..."}]}`,
		persona.PersonaText, outline.Title, outline.Life, outline.Wealth, outline.OverallTheme, minStages)

	var draft stagesDraft
	err := g.generateJSON(ctx, sys, "(author stages)", &draft)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]*domain.Stage, 0, len(draft.Stages))
	for i, d := range draft.Stages {
		status := domain.StageLocked
		if i == 0 && appendAfterOrder == 0 {
			status = domain.StageActive
		}
		out = append(out, &domain.Stage{
			StageID: uuid.NewString(), OutlineID: outline.OutlineID,
			Order: appendAfterOrder + i + 1, LifePeriod: d.LifePeriod,
			Title: d.Title, Description: d.Description, Goals: d.Goals,
			Status: status, CreatedAt: now, UpdatedAt: now,
		})
	}
	if len(out) > 0 && appendAfterOrder > 0 {
		out[0].Status = domain.StageActive
	}
	return out, nil
}

type segmentDraft struct {
	Title            string `json:"title"`
	LifeAge          int    `json:"life_age"`
	PromptForPlotLLM string `json:"prompt_for_plot_llm"`
	DurationDays     int    `json:"duration_days"`
	EmotionalArc     string `json:"emotional_arc"`
	KeyNPCs          string `json:"key_npcs"`
	IsMilestone      bool   `json:"is_milestone"`
}

type segmentsDraft struct {
	Segments []segmentDraft `json:"segments"`
}

// GenerateSegments authors segment objects for an active stage (spec §4.L).
// The prompt asks for 4-6; the number the model returns is not checked, and
// every returned segment is kept. pastLifeSummary is the external text blob's
// contents, if present.
func (g *Generator) GenerateSegments(ctx context.Context, persona *domain.Persona, stage *domain.Stage, pastLifeSummary string, currentAge int) ([]*domain.Segment, error) {
	sys := fmt.Sprintf(`You are authoring plot segments for one life stage of a character.
Persona: %s
Stage: life_period=%q title=%q goals=%q
Past-life summary: %s

Produce between %d and %d segment objects that play out this stage. Respond
with ONLY:
{"segments":[{"title":"...","life_age":24,"prompt_for_plot_llm":"...","duration_days":5,"emotional_arc":"...","key_npcs":"...","is_milestone":false}]}`,
		persona.PersonaText, stage.LifePeriod, stage.Title, stage.Goals, pastLifeSummary, minSegments, maxSegments)

	var draft segmentsDraft
	if err := g.generateJSON(ctx, sys, "(author segments)", &draft); err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]*domain.Segment, 0, len(draft.Segments))
	for i, d := range draft.Segments {
		duration := d.DurationDays
		if duration < 1 {
			duration = 1
		}
		status := domain.SegmentLocked
		switch {
		case d.LifeAge < currentAge:
			status = domain.SegmentCompleted
		case d.LifeAge == currentAge && firstAtAge(draft.Segments, i, d.LifeAge):
			status = domain.SegmentActive
		}
		out = append(out, &domain.Segment{
			SegmentID: uuid.NewString(), StageID: stage.StageID, OrderInStage: i + 1,
			Title: d.Title, LifeAge: d.LifeAge, PromptForPlotLLM: d.PromptForPlotLLM,
			DurationDays: duration, EmotionalArc: d.EmotionalArc, KeyNPCs: d.KeyNPCs,
			IsMilestone: d.IsMilestone, Status: status, CreatedAt: now, UpdatedAt: now,
		})
	}
	return out, nil
}

func firstAtAge(segments []segmentDraft, idx, age int) bool {
	for i := 0; i < idx; i++ {
		if segments[i].LifeAge == age {
			return false
		}
	}
	return true
}

type dailyPlotDraft struct {
	Content string      `json:"content"`
	Mood    domain.Mood `json:"mood"`
}

// GenerateDailyPlot authors one day's plot content and structured record,
// seeded by the previous day's summary and mood (spec §4.L). It writes the
// narrative text to the external content_path blob and returns the record.
func (g *Generator) GenerateDailyPlot(ctx context.Context, persona *domain.Persona, segment *domain.Segment, historicalEvents, pastLifeSummary string, day int, plotDate time.Time, previousDaySummary string, previousMood domain.Mood) (*domain.DailyPlot, error) {
	sys := fmt.Sprintf(`You are authoring day %d of %d in a character's life segment.
Persona: %s
Segment: title=%q prompt=%q emotional_arc=%q key_npcs=%q
Historical events so far in this stage: %s
Past-life summary: %s
Previous day's summary: %s
Mood entering today: %s

Write the day's narrative plot and the mood it leaves the character in.
Respond with ONLY:
{"content":"...","mood":{"valence":0.0,"arousal":0.0,"intensity":5,"tags":["..."],"description":"..."}}`,
		day, segment.DurationDays, persona.PersonaText, segment.Title, segment.PromptForPlotLLM,
		segment.EmotionalArc, segment.KeyNPCs, historicalEvents, pastLifeSummary, previousDaySummary, previousMood.String())

	var draft dailyPlotDraft
	if err := g.generateJSON(ctx, sys, "(author daily plot)", &draft); err != nil {
		return nil, err
	}
	draft.Mood.Clamp()

	path := g.contentPath(persona.RoleID, plotDate, segment.Title)
	if err := writeBlob(path, draft.Content); err != nil {
		return nil, err
	}

	return &domain.DailyPlot{
		PlotID: uuid.NewString(), SegmentID: segment.SegmentID, Order: day,
		PlotDate: plotDate, ContentPath: path, Mood: draft.Mood,
		Status: domain.PlotLocked, CreatedAt: time.Now(),
	}, nil
}

// contentPath mirrors spec §6: "<plot_root>/<role_id>_plot/<YYYY-MM-DD>_<title>.txt".
func (g *Generator) contentPath(roleID string, day time.Time, title string) string {
	return filepath.Join(g.paths.PlotRoot, roleID+"_plot", fmt.Sprintf("%s_%s.txt", day.Format("2006-01-02"), title))
}

// GenerateStageSummary authors Stage.Summary once a stage completes,
// supplementing spec §3's "optional summary" field per SPEC_FULL §D.1.
func (g *Generator) GenerateStageSummary(ctx context.Context, persona *domain.Persona, stage *domain.Stage, segments []*domain.Segment) (string, error) {
	sys := fmt.Sprintf(`Summarize, in third person past tense, how this completed life stage played
out for the character, in 3-5 sentences.
Persona: %s
Stage: title=%q goals=%q, %d segments played out.`,
		persona.PersonaText, stage.Title, stage.Goals, len(segments))

	text, err := retryComplete(ctx, g.provider, sys, "(summarize stage)")
	if err != nil {
		return "", err
	}
	return text, nil
}

// WritePastExperienceSummary maintains the role-level rolling summary of all
// Completed stages at <summary_root>/<role_id>/<role_name>_summary.txt
// (SPEC_FULL §D.2, grounded on original_source's generate_past_experience_summaries).
func (g *Generator) WritePastExperienceSummary(ctx context.Context, persona *domain.Persona, completedStages []*domain.Stage) error {
	sys := fmt.Sprintf(`Write a rolling first-person-adjacent past-life summary for this character,
covering every completed life stage below in chronological order. Keep it
under 400 words.
Persona: %s`, persona.PersonaText)

	var b []byte
	for _, s := range completedStages {
		b = append(b, fmt.Sprintf("- %s (%s): %s\n", s.Title, s.LifePeriod, s.Summary)...)
	}

	text, err := retryComplete(ctx, g.provider, sys, string(b))
	if err != nil {
		return err
	}
	return writeBlob(persona.SummaryPath, text)
}

func (g *Generator) generateJSON(ctx context.Context, sys, user string, out any) error {
	raw, err := retryComplete(ctx, g.provider, sys, user)
	if err != nil {
		return err
	}
	body, ok := llm.ExtractJSON(raw)
	if !ok {
		return fmt.Errorf("plotgen: no JSON body in model response")
	}
	return jsonutil.Unmarshal([]byte(body), out)
}

// retryComplete wraps one model call in the K/L retry policy (spec §4.K
// "Failure semantics": 3 attempts, exponential backoff, base 2s, doubling).
func retryComplete(ctx context.Context, provider llm.Provider, sys, user string) (string, error) {
	var result string
	err := llm.RetryWithBackoff(ctx, maxRetryAttempts, retryBaseDelay, func() error {
		out, err := provider.Complete(ctx, sys, user, llm.CompletionOptions{JSONMode: true})
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		logger.WithError(err).Warn("plot generator call failed after retries")
	}
	return result, err
}

func writeBlob(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("plotgen: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("plotgen: write %s: %w", path, err)
	}
	return nil
}
