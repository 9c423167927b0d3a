// Package thought implements Component F: the Thought-Chain Composer. Given
// persona, mood, recent dialogue, and the analyzer's outputs, produces a
// first-person inner monologue via a model call, falling back to a template on
// failure. Grounded on the teacher's prompt-assembly helpers in
// internal/hivemind/service/agents/domain/service/runtime (building a system
// prompt from several context fragments) applied to the narrower "inner
// monologue" shape spec §4.F names.
package thought

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
	"github.com/kiosk404/soulgraph/internal/companion/log"
)

var logger = log.For("thought")

// composeTimeout bounds the inner-monologue call (spec §5: 30 s default).
// PlotMood carries no bound of its own — its caller applies the tighter 10 s
// plot-mood deadline to ctx.
const composeTimeout = 30 * time.Second

// Composer produces the inner monologue string consumed by the Turn
// Orchestrator's prompt assembly (spec §4.J step 5).
type Composer struct {
	provider llm.Provider
}

// New builds a Composer against the given model provider.
func New(provider llm.Provider) *Composer {
	return &Composer{provider: provider}
}

// Compose generates the first-person inner monologue. recentDialogue is
// oldest-to-newest, already capped per spec §4.F ("last 10 messages within a
// 10-minute window... capped at 20"). Failure falls back to a deterministic
// template — the composer never instructs the downstream model to reveal the
// monologue; that is enforced by the orchestrator treating this as scaffolding
// only, never as literal reply text.
func (c *Composer) Compose(ctx context.Context, persona *domain.Persona, currentMood domain.Mood, analyzerTags []string, recentDialogue []*domain.Message, utterance string) string {
	sys := fmt.Sprintf(`You are %s, thinking privately to yourself in first person about what the
other person just said. This inner monologue will NEVER be shown to them —
do not write anything that instructs a later step to reveal it.

Persona: %s
Current mood: %s
Analysis tags: %s

Recent exchange, oldest first:
%s
Write 2-4 sentences of first-person inner monologue reacting to the message below.`,
		persona.RoleName, persona.PersonaText, currentMood.String(),
		strings.Join(analyzerTags, ", "), renderDialogue(recentDialogue))

	text, err := c.provider.Complete(ctx, sys, utterance, llm.CompletionOptions{Timeout: composeTimeout})
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			logger.WithError(err).Warn("thought-chain composition failed, using template fallback")
		}
		return fallbackTemplate(persona, currentMood, analyzerTags, recentDialogue)
	}
	return text
}

// PlotMood computes the plot-driven mood delta P from the currently "lived"
// plot window (spec §4.J step 2: "compute P from plot events via F's
// mood-update prompt, timeout-bounded at 10s; on timeout use current mood as
// P"). The caller is responsible for applying that timeout bound to ctx.
func (c *Composer) PlotMood(ctx context.Context, persona *domain.Persona, currentMood domain.Mood, plotWindowBlock string) (domain.Mood, error) {
	sys := fmt.Sprintf(`You are narrating %s's emotional state given what they have lived through
today. Persona: %s
Current mood: %s

Plot events lived so far today:
%s

Respond with ONLY a JSON object describing the mood these events would now
produce: {"valence":0.0,"arousal":0.0,"intensity":0,"tags":["..."],"description":"..."}`,
		persona.RoleName, persona.PersonaText, currentMood.String(), plotWindowBlock)

	raw, err := c.provider.Complete(ctx, sys, "(derive plot mood)", llm.CompletionOptions{JSONMode: true})
	if err != nil {
		return domain.Mood{}, err
	}
	body, ok := llm.ExtractJSON(raw)
	if !ok {
		return domain.Mood{}, fmt.Errorf("thought: plot mood response had no JSON body")
	}
	var m domain.Mood
	if err := jsonutil.Unmarshal([]byte(body), &m); err != nil {
		return domain.Mood{}, fmt.Errorf("thought: plot mood unmarshal: %w", err)
	}
	m.Clamp()
	return m, nil
}

func renderDialogue(msgs []*domain.Message) string {
	if len(msgs) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.SenderType, m.Content)
	}
	return b.String()
}

// fallbackTemplate interpolates a persona excerpt, analyzer tags, mood tags,
// and up to 3 recent dialogue lines (spec §4.F's failure contract).
func fallbackTemplate(persona *domain.Persona, currentMood domain.Mood, analyzerTags []string, recentDialogue []*domain.Message) string {
	excerpt := persona.PersonaText
	if len(excerpt) > 120 {
		excerpt = excerpt[:120]
	}

	var recentLines []string
	start := 0
	if len(recentDialogue) > 3 {
		start = len(recentDialogue) - 3
	}
	for _, m := range recentDialogue[start:] {
		recentLines = append(recentLines, fmt.Sprintf("%s: %s", m.SenderType, m.Content))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "(%s) ", excerpt)
	fmt.Fprintf(&b, "I feel %s right now. ", strings.Join(currentMood.Tags, "/"))
	if len(analyzerTags) > 0 {
		fmt.Fprintf(&b, "This seems to carry %s. ", strings.Join(analyzerTags, ", "))
	}
	if len(recentLines) > 0 {
		fmt.Fprintf(&b, "Recalling: %s.", strings.Join(recentLines, " | "))
	}
	return b.String()
}
