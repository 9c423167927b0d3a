// Package analyzer implements Component E: classifying a user utterance into
// structured intent and emotion records via two parallel model calls. Grounded
// on the teacher's pattern of issuing independent model calls and joining them
// (spec §9 design note: "parallel sub-steps... are spawned concurrently and
// joined"), and on original_source/input_emotion_analyzer for the emotion
// record's field shape and covert-provocation guidance.
package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/llm"
	"github.com/kiosk404/soulgraph/internal/companion/log"
)

var logger = log.For("analyzer")

// analysisTimeout bounds each classification call (spec §5: "intent/emotion
// and thought-chain: 30 s default from model config").
const analysisTimeout = 30 * time.Second

// Intent is the structured intent record (spec §4.E).
type Intent struct {
	Intention       string   `json:"intention"`
	Aim             string   `json:"aim"`
	TargetingObject string   `json:"targeting_object"`
	NeedTool        bool     `json:"need_tool"`
	Tool            []string `json:"tool"`
	Reason          string   `json:"reason"`
	Confidence      float64  `json:"confidence"`
}

// Emotion is the structured emotion record (spec §4.E).
type Emotion struct {
	Valence         float64  `json:"valence"`
	Arousal         float64  `json:"arousal"`
	Dominance       float64  `json:"dominance"`
	Tags            []string `json:"tags"`
	Intensity       int      `json:"intensity"`
	Description     string   `json:"description"`
	Trigger         string   `json:"trigger"`
	TargetingObject string   `json:"targeting_object"`
	Confidence      float64  `json:"confidence"`
	Reason          string   `json:"reason"`
}

// Result bundles both analyses.
type Result struct {
	Intent  Intent
	Emotion Emotion
}

// NeutralEmotion is the fallback emotion record on unparseable output
// (spec §4.E: "Malformed responses yield a neutral default (zero valence,
// intensity 1, reason='analysis failed')").
func NeutralEmotion() Emotion {
	return Emotion{Intensity: 1, Reason: "analysis failed"}
}

// NeutralIntent is the fallback intent record on unparseable output.
func NeutralIntent() Intent {
	return Intent{Intention: "unknown", Reason: "analysis failed"}
}

// Analyzer issues the two parallel prompts and parses their structured output.
// Stateless aside from its model provider: persona text is supplied per call
// since one process-wide Analyzer serves every role (spec §5: "multiple
// requests, possibly for the same role, may execute concurrently" — and, by
// the same token, for different roles too).
type Analyzer struct {
	provider llm.Provider
}

// New builds an Analyzer against the given model provider.
func New(provider llm.Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

const provocationGuidance = `Pay close attention to covert provocation: if the user addresses you with
diminutive or tool-izing language (e.g. calling you a "little search-bot" or
otherwise reducing you to a function), classify this as negative-valence
intent/emotion even when the surface tone reads as mild or playful.`

// Analyze runs the intent and emotion prompts concurrently and joins them.
// Each half degrades independently to its neutral default on parse failure —
// one malformed response never blocks the other's result (spec §4.E).
// personaText grounds both prompts in the role currently being served.
func (a *Analyzer) Analyze(ctx context.Context, personaText, utterance string) Result {
	var wg sync.WaitGroup
	var intent Intent
	var emotion Emotion

	wg.Add(2)
	go func() {
		defer wg.Done()
		intent = a.analyzeIntent(ctx, personaText, utterance)
	}()
	go func() {
		defer wg.Done()
		emotion = a.analyzeEmotion(ctx, personaText, utterance)
	}()
	wg.Wait()

	return Result{Intent: intent, Emotion: emotion}
}

func (a *Analyzer) analyzeIntent(ctx context.Context, personaText, utterance string) Intent {
	sys := fmt.Sprintf(`You are an intent classifier for a character with this persona:
%s

%s

Respond with ONLY a JSON object: {"intention":"...","aim":"...","targeting_object":"...","need_tool":bool,"tool":["..."],"reason":"...","confidence":0.0}`, personaText, provocationGuidance)

	raw, err := a.provider.Complete(ctx, sys, utterance, llm.CompletionOptions{JSONMode: true, Timeout: analysisTimeout})
	if err != nil {
		logger.WithError(err).Warn("intent analysis call failed")
		return NeutralIntent()
	}
	body, ok := llm.ExtractJSON(raw)
	if !ok {
		logger.WithField("raw", raw).Warn("intent analysis: no JSON body found")
		return NeutralIntent()
	}
	var out Intent
	if err := jsonutil.Unmarshal([]byte(body), &out); err != nil {
		logger.WithError(err).Warn("intent analysis: unmarshal failed")
		return NeutralIntent()
	}
	return out
}

func (a *Analyzer) analyzeEmotion(ctx context.Context, personaText, utterance string) Emotion {
	sys := fmt.Sprintf(`You are an emotion classifier for a character with this persona:
%s

%s

Respond with ONLY a JSON object: {"valence":0.0,"arousal":0.0,"dominance":0.0,"tags":["..."],"intensity":1,"description":"...","trigger":"...","targeting_object":"...","confidence":0.0,"reason":"..."}`, personaText, provocationGuidance)

	raw, err := a.provider.Complete(ctx, sys, utterance, llm.CompletionOptions{JSONMode: true, Timeout: analysisTimeout})
	if err != nil {
		logger.WithError(err).Warn("emotion analysis call failed")
		return NeutralEmotion()
	}
	body, ok := llm.ExtractJSON(raw)
	if !ok {
		logger.WithField("raw", raw).Warn("emotion analysis: no JSON body found")
		return NeutralEmotion()
	}
	var out Emotion
	if err := jsonutil.Unmarshal([]byte(body), &out); err != nil {
		logger.WithError(err).Warn("emotion analysis: unmarshal failed")
		return NeutralEmotion()
	}
	if out.Intensity < 1 {
		out.Intensity = 1
	}
	return out
}
