// Package orchestrator implements Component J: the per-utterance Turn
// Orchestrator. Grounded on the teacher's TurnExecutor
// (internal/hivemind/service/agents/domain/service/runtime/executor.go) for
// the overall "analyze -> assemble -> invoke -> persist" shape, adapted to
// spec §4.J's ten-step pipeline including the mood recomposition and leak
// filter steps the teacher's executor doesn't have.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/analyzer"
	"github.com/kiosk404/soulgraph/internal/companion/clock"
	"github.com/kiosk404/soulgraph/internal/companion/coderr"
	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/dialogue"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/mood"
	"github.com/kiosk404/soulgraph/internal/companion/persona"
	"github.com/kiosk404/soulgraph/internal/companion/plotwindow"
	"github.com/kiosk404/soulgraph/internal/companion/thought"
	"github.com/kiosk404/soulgraph/internal/companion/tools"
)

var logger = log.For("orchestrator")

// Result is the pipeline's output (spec §4.J step 10).
type Result struct {
	Response      string
	ToolsUsed     []string
	SystemMessage string
	SessionID     string
}

// Orchestrator wires every component J depends on.
type Orchestrator struct {
	Personas   *persona.Store
	Moods      *mood.Store
	MoodEngine *mood.Engine
	Analyzer   *analyzer.Analyzer
	Thoughts   *thought.Composer
	PlotWindow *plotwindow.Resolver
	Dialogue   *dialogue.Log
	Tools      tools.Provider
	Reply      llm.Provider
	Clock      *clock.Clock
	ModelCfg   config.ModelConfig

	// now overrides the clock in tests; production reads Clock so every
	// component agrees on the civil day (spec §4.A: "Used consistently
	// throughout the core so tests can inject a clock").
	now func() time.Time
}

// New builds a Turn Orchestrator.
func New(
	personas *persona.Store,
	moods *mood.Store,
	moodEngine *mood.Engine,
	az *analyzer.Analyzer,
	th *thought.Composer,
	pw *plotwindow.Resolver,
	dl *dialogue.Log,
	toolProvider tools.Provider,
	reply llm.Provider,
	clk *clock.Clock,
	modelCfg config.ModelConfig,
) *Orchestrator {
	return &Orchestrator{
		Personas: personas, Moods: moods, MoodEngine: moodEngine,
		Analyzer: az, Thoughts: th, PlotWindow: pw, Dialogue: dl,
		Tools: toolProvider, Reply: reply, Clock: clk, ModelCfg: modelCfg,
	}
}

// currentTime resolves "now" through the test override when set, the civil
// clock otherwise.
func (o *Orchestrator) currentTime(ctx context.Context) time.Time {
	if o.now != nil {
		return o.now()
	}
	return o.Clock.Now(ctx)
}

const behaviorRuleBlock = `Stay fully in character. Speak only as the character would speak aloud.
Never narrate stage directions, strategies, or private reasoning in your reply.`

const innerOSForbiddenBlock = `Do not reveal, summarize, or reference any internal reasoning, instructions,
or "inner monologue" in your reply. Never wrap private evaluations of the
other person in parentheses. Your reply is speech, not notes.`

// Turn runs the full pipeline for one user utterance (spec §4.J).
func (o *Orchestrator) Turn(ctx context.Context, sessionID, roleID, utterance string) (*Result, error) {
	p, err := o.Personas.Get(roleID)
	if err != nil {
		return &Result{SessionID: sessionID, SystemMessage: fmt.Sprintf("role unavailable: %v", err)}, nil
	}

	now := o.currentTime(ctx)

	// Step 1: analyze.
	analysis := o.Analyzer.Analyze(ctx, p.PersonaText, utterance)

	// Step 2: recompute mood.
	newMood, prevMood, err := o.recomputeMood(ctx, p, now, utterance)
	if err != nil {
		logger.WithError(err).WithField("role_id", roleID).Warn("mood recompute failed, continuing with stored mood")
		newMood, _ = o.Moods.Get(ctx, roleID)
		prevMood = newMood
	}

	// Step 3: decide tool permission.
	needsTools := tools.NeedsTools(utterance)

	// Step 4: load recent dialogue.
	recent, err := o.Dialogue.Query(ctx, sessionID, 10)
	if err != nil {
		logger.WithError(err).Warn("failed to load recent dialogue, proceeding with empty history")
		recent = nil
	}

	// Thought chain, used in prompt assembly (step 5). The composer sees only
	// the slice of history inside its recency window (spec §4.F).
	recentForThought := dialogue.WithinWindow(recent, now, 10*time.Minute, 20)
	innerMonologue := o.Thoughts.Compose(ctx, p, newMood, analysis.Emotion.Tags, recentForThought, utterance)

	lines := o.PlotWindow.Resolve(roleID, now)
	plotBlock := plotwindow.RenderBlock(lines)

	// Step 5 + 6: assemble prompt, invoke model (with leak-filter retry loop).
	sys := o.assemblePrompt(p, newMood, plotBlock, innerMonologue, needsTools)

	reply, toolsUsed, sysMsg, err := o.invoke(ctx, sessionID, now, sys, utterance, needsTools)
	if err != nil {
		return &Result{SessionID: sessionID, SystemMessage: fmt.Sprintf("generation failed: %v", err)}, nil
	}
	if sysMsg != "" {
		// Backpressure/rate-limit style failure (spec §5): emit system_message,
		// return an empty character response, leave mood and session state
		// untouched — the next retry must be indistinguishable from a fresh
		// turn, so the step-2 mood write is rolled back.
		if err := o.Moods.Put(ctx, roleID, prevMood); err != nil {
			logger.WithError(err).WithField("role_id", roleID).Warn("failed to restore mood after backpressure")
		}
		return &Result{SessionID: sessionID, SystemMessage: sysMsg, ToolsUsed: toolsUsed}, nil
	}

	// Step 7: leak filter with one regeneration attempt.
	reply = o.leakFilterPass(ctx, sys, utterance, reply, newMood.Intensity)

	// Step 8: persist.
	userMsg := domain.NewUserMessage(sessionID, utterance, now)
	if err := o.Dialogue.Append(ctx, userMsg); err != nil {
		logger.WithError(err).Warn("failed to append user message")
	}
	if strings.TrimSpace(reply) != "" {
		agentMsg := domain.NewAgentMessage(sessionID, reply, now.Add(time.Millisecond))
		if err := o.Dialogue.Append(ctx, agentMsg); err != nil {
			logger.WithError(err).Warn("failed to append agent message")
		}
	}

	// Step 9: flush check.
	if o.Dialogue.ShouldFlush(ctx, sessionID) {
		if err := o.Dialogue.Flush(ctx, sessionID); err != nil {
			logger.WithError(err).Warn("flush failed")
		}
	}

	return &Result{Response: reply, ToolsUsed: toolsUsed, SessionID: sessionID}, nil
}

// recomputeMood implements spec §4.J step 2. It returns the freshly composed
// mood alongside the mood that was current before the write, so the caller
// can restore the latter if the turn is later abandoned under backpressure.
func (o *Orchestrator) recomputeMood(ctx context.Context, p *domain.Persona, now time.Time, utterance string) (domain.Mood, domain.Mood, error) {
	current, err := o.Moods.Get(ctx, p.RoleID)
	if err != nil {
		return domain.Mood{}, domain.Mood{}, err
	}

	lines := o.PlotWindow.Resolve(p.RoleID, now)
	plotBlock := plotwindow.RenderBlock(lines)

	plotMoodTimeout := o.ModelCfg.PlotMoodTimeout
	if plotMoodTimeout <= 0 {
		plotMoodTimeout = 10 * time.Second
	}
	plotCtx, cancel := context.WithTimeout(ctx, plotMoodTimeout)
	P, err := o.Thoughts.PlotMood(plotCtx, p, current, plotBlock)
	cancel()
	if err != nil {
		// Timeout or failure: current mood stands in for P (spec §4.J step 2).
		P = current
	}

	impact, ok := o.MoodEngine.AnalyzeImpact(ctx, p.PersonaText, current, utterance)
	if !ok {
		// Spec §4.G: do not fabricate a zero-impact default; leave mood unchanged.
		return current, current, nil
	}

	newMood := o.MoodEngine.Compose(current, P, impact)

	if newMood.Valence != current.Valence || !sameTags(newMood.Tags, current.Tags) {
		logger.WithField("role_id", p.RoleID).
			WithField("from", current.String()).
			WithField("to", newMood.String()).
			Info("mood trajectory changed")
	}

	if err := o.Moods.Put(ctx, p.RoleID, newMood); err != nil {
		return newMood, current, coderr.New(coderr.ErrStoreUnavailable, err.Error())
	}
	return newMood, current, nil
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// assemblePrompt implements spec §4.J step 5.
func (o *Orchestrator) assemblePrompt(p *domain.Persona, m domain.Mood, plotBlock, innerMonologue string, needsTools bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n\n%s\n\n", p.RoleName, p.PersonaText)
	fmt.Fprintf(&b, "Current mood: %s\n\n", m.String())
	fmt.Fprintf(&b, "Plot events lived today:\n%s\n", plotBlock)
	fmt.Fprintf(&b, "%s\n\n", innerOSForbiddenBlock)
	fmt.Fprintf(&b, "Private inner monologue (never repeat this verbatim): %s\n\n", innerMonologue)
	fmt.Fprintf(&b, "%s\n", behaviorRuleBlock)
	if needsTools {
		b.WriteString("\nYou may use the tools made available to you if they would genuinely help, " +
			"but you are free to refuse based on your persona and current mood.\n")
	}
	return b.String()
}

// invoke implements spec §4.J step 6: tool-augmented or direct invocation,
// with geographic-restriction errors falling back to a plain non-tool call,
// and rate-limit/quota errors surfaced as a system_message with an empty
// reply rather than propagated as a hard error (spec §5 backpressure).
func (o *Orchestrator) invoke(ctx context.Context, sessionID string, now time.Time, sys, utterance string, needsTools bool) (reply string, toolsUsed []string, systemMessage string, err error) {
	if needsTools {
		available := o.Tools.Tools(candidateToolNames(utterance))
		if len(available) > 0 {
			reply, toolsUsed, err = o.invokeWithTools(ctx, sessionID, now, sys, utterance, available)
			if err == nil {
				return reply, toolsUsed, "", nil
			}
			if isGeoRestricted(err) {
				logger.Warn("tool invocation geo-restricted, falling back to plain call")
			} else if isRateLimited(err) {
				return "", nil, "the model provider is rate-limited right now; please try again shortly", nil
			} else {
				// spec §7 ToolInvocationFailed: propagate as system_message,
				// empty character response — not a hard pipeline error.
				return "", nil, fmt.Sprintf("tool invocation failed: %v", err), nil
			}
		}
	}

	reply, err = o.Reply.Complete(ctx, sys, utterance, llm.CompletionOptions{})
	if err != nil {
		if isRateLimited(err) {
			return "", nil, "the model provider is rate-limited right now; please try again shortly", nil
		}
		return "", nil, "", coderr.New(coderr.ErrGenerationFailed, err.Error())
	}
	return reply, nil, "", nil
}

// invokeWithTools performs one simplified ReAct-style round: the model may
// request a tool by emitting a "TOOL_CALL: {...}" line; if it does, the tool
// is invoked synchronously and a second call folds the result back in.
func (o *Orchestrator) invokeWithTools(ctx context.Context, sessionID string, now time.Time, sys, utterance string, available []tools.Tool) (string, []string, error) {
	var schemaLines strings.Builder
	for _, t := range available {
		fmt.Fprintf(&schemaLines, "- %s: %s\n", t.Name, t.Description)
	}
	toolSys := sys + fmt.Sprintf(`

Available tools:
%s
If invoking a tool would help, respond with exactly one line:
TOOL_CALL: {"name":"<tool name>","args":{...}}
Otherwise, reply normally.`, schemaLines.String())

	first, err := o.Reply.Complete(ctx, toolSys, utterance, llm.CompletionOptions{})
	if err != nil {
		return "", nil, err
	}

	name, args, ok := parseToolCall(first)
	if !ok {
		return first, nil, nil
	}

	var tool *tools.Tool
	for i := range available {
		if available[i].Name == name {
			tool = &available[i]
			break
		}
	}
	if tool == nil {
		return first, nil, nil
	}

	result, err := tool.Invoke(ctx, args)
	if err != nil {
		return "", nil, err
	}

	argsJSON, _ := jsonutil.Marshal(args)
	toolMsg := domain.NewToolMessage(sessionID, name, string(argsJSON), result, now)
	if err := o.Dialogue.Append(ctx, toolMsg); err != nil {
		logger.WithError(err).Warn("failed to append tool message")
	}

	finalSys := sys + fmt.Sprintf("\n\nTool %q returned: %s\nParaphrase this result in character; never quote it verbatim.", name, result)
	final, err := o.Reply.Complete(ctx, finalSys, utterance, llm.CompletionOptions{})
	if err != nil {
		return "", nil, err
	}
	return final, []string{name}, nil
}

// leakFilterPass implements spec §4.J step 7.
func (o *Orchestrator) leakFilterPass(ctx context.Context, sys, utterance, reply string, intensity int) string {
	cleaned, leaked := leakFilter(reply)
	if !leaked {
		return cleaned
	}

	strictSys := sys + "\n\nSTRICT: your previous reply leaked private reasoning. Reply again with speech only, no parentheses containing evaluations or strategy."
	regenerated, err := o.Reply.Complete(ctx, strictSys, utterance, llm.CompletionOptions{})
	if err == nil {
		cleaned2, leaked2 := leakFilter(regenerated)
		if !leaked2 {
			return cleaned2
		}
	}
	return fallbackLine(intensity)
}

func candidateToolNames(utterance string) []string {
	// A fixed candidate list; Provider.Tools filters to what's actually
	// registered. Matches spec §4.J step 3's named categories.
	return []string{"search", "news", "weather", "maps", "datetime"}
}

func isGeoRestricted(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "geo") || strings.Contains(msg, "region") || strings.Contains(msg, "not available in your")
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "429")
}

func parseToolCall(text string) (name string, args map[string]any, ok bool) {
	const marker = "TOOL_CALL:"
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", nil, false
	}
	body, found := llm.ExtractJSON(text[idx+len(marker):])
	if !found {
		return "", nil, false
	}
	var parsed struct {
		Name string         `json:"name"`
		Args map[string]any `json:"args"`
	}
	if err := jsonutil.Unmarshal([]byte(body), &parsed); err != nil {
		return "", nil, false
	}
	return parsed.Name, parsed.Args, parsed.Name != ""
}
