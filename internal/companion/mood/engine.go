package mood

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
)

// Impact is the user-impact sub-analysis output (spec §4.G): a dedicated model
// call that reasons in the character's own first-person voice about whether
// and how strongly the user's utterance affected them.
type Impact struct {
	ImpactValence     float64  `json:"impact_valence"`
	ImpactArousal     float64  `json:"impact_arousal"`
	ImpactTags        []string `json:"impact_tags"`
	ImpactIntensity   int      `json:"impact_intensity"`
	ImpactDescription string   `json:"impact_description"`
}

const (
	weightPlot = 0.7
	weightUser = 0.3

	// impactTimeout bounds the user-impact sub-analysis call, the same
	// analysis-class default the intent/emotion calls use.
	impactTimeout = 30 * time.Second
)

var noImpactMarkers = map[string]bool{
	"no impact":       true,
	"analysis failed": true,
	"":                true,
}

// Engine composes a new mood from the current mood, the plot-driven mood, and
// the just-analyzed user-impact mood (spec §4.G).
type Engine struct {
	provider llm.Provider
}

// NewEngine builds a Composition Engine against the given model provider,
// used only for the user-impact sub-analysis call.
func NewEngine(provider llm.Provider) *Engine {
	return &Engine{provider: provider}
}

// AnalyzeImpact issues the dedicated first-person "did that affect me" call
// and parses its structured output. On unparseable output it returns
// (Impact{}, false) — callers must leave the current mood unchanged rather
// than fabricate a zero-impact default that silently biases drift (spec
// §4.G: "it must not fabricate a zero-impact default").
func (e *Engine) AnalyzeImpact(ctx context.Context, personaText string, currentMood domain.Mood, utterance string) (Impact, bool) {
	sys := fmt.Sprintf(`You are this character, reasoning privately in first person:
%s

Your current mood: %s

Did what the other party just said affect you? How, and how strongly on a
1..10 scale? Respond with ONLY a JSON object:
{"impact_valence":0.0,"impact_arousal":0.0,"impact_tags":["..."],"impact_intensity":0,"impact_description":"..."}`, personaText, currentMood.String())

	raw, err := e.provider.Complete(ctx, sys, utterance, llm.CompletionOptions{JSONMode: true, Timeout: impactTimeout})
	if err != nil {
		return Impact{}, false
	}
	body, ok := llm.ExtractJSON(raw)
	if !ok {
		return Impact{}, false
	}
	var out Impact
	if err := jsonutil.Unmarshal([]byte(body), &out); err != nil {
		return Impact{}, false
	}
	return out, true
}

// Compose combines current mood M, plot-derived mood P, and user impact U into
// a new clamped mood, per spec §4.G's weighted composition and intensity
// amplification rule.
func (e *Engine) Compose(m, p domain.Mood, u Impact) domain.Mood {
	ampPlot, ampUser := amplification(m.Intensity)

	deltaPlotValence := p.Valence - m.Valence
	deltaUserValence := u.ImpactValence
	newValence := m.Valence + weightPlot*ampPlot*deltaPlotValence + weightUser*ampUser*deltaUserValence

	deltaPlotArousal := p.Arousal - m.Arousal
	deltaUserArousal := u.ImpactArousal
	newArousal := m.Arousal + weightPlot*ampPlot*deltaPlotArousal + weightUser*ampUser*deltaUserArousal

	deltaPlotIntensity := float64(p.Intensity - m.Intensity)
	newIntensityF := float64(m.Intensity) + weightPlot*ampPlot*deltaPlotIntensity + weightUser*ampUser*float64(u.ImpactIntensity)

	out := domain.Mood{
		Valence:   newValence,
		Arousal:   newArousal,
		Intensity: int(math.Round(newIntensityF)),
		Tags:      composeTags(p.Tags, u.ImpactTags, newValence, newArousal),
	}
	out.Clamp()
	out.Description = composeDescription(p, u, out)
	return out
}

// amplification implements spec §4.G's "agitated characters are more
// reactive" rule: intensity >= 7 multiplies both deltas by 1.2, intensity <= 3
// by 0.7, otherwise 1.0 (verified at the boundary by spec §8's intensity=5
// case).
func amplification(currentIntensity int) (plotFactor, userFactor float64) {
	switch {
	case currentIntensity >= 7:
		return 1.2, 1.2
	case currentIntensity <= 3:
		return 0.7, 0.7
	default:
		return 1.0, 1.0
	}
}

// composeTags unions plot tags (first) and user tags, excluding "no impact"
// style markers, falling back to the deterministic (valence, arousal) rule
// when nothing survives, capped at 3 (spec §4.G).
func composeTags(plotTags, userTags []string, valence, arousal float64) []string {
	out := make([]string, 0, 3)
	seen := map[string]bool{}
	add := func(tags []string) {
		for _, t := range tags {
			norm := strings.ToLower(strings.TrimSpace(t))
			if norm == "" || noImpactMarkers[norm] || seen[norm] {
				continue
			}
			seen[norm] = true
			out = append(out, t)
		}
	}
	add(plotTags)
	add(userTags)
	if len(out) == 0 {
		out = append(out, domain.DeriveTag(valence, arousal))
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// composeDescription renders the fixed merge template spec §4.G calls for.
func composeDescription(p domain.Mood, u Impact, out domain.Mood) string {
	plotPart := p.Description
	if plotPart == "" {
		plotPart = "the day's events"
	}
	userPart := u.ImpactDescription
	if userPart == "" {
		userPart = "the conversation so far"
	}
	return fmt.Sprintf("Shaped by %s, and by %s; now feeling %s.", plotPart, userPart, strings.Join(out.Tags, "/"))
}
