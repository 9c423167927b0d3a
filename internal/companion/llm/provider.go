// Package llm is the model provider SPI (spec §6): a black-box text generator
// contract "(system_text, user_text) -> text" with configurable temperature and
// timeout, selected by a ModelConfig vector rather than mutated process globals
// (spec §9 design note). Grounded on the teacher's provider plugin system
// (internal/hivemind/service/llm/provider/{spi,helper,openai,gemini,claude}) but
// narrowed to the single contract this spec actually needs — the model itself
// is explicitly out of core scope (spec §1).
package llm

import (
	"context"
	"time"
)

// CompletionOptions carries the per-call knobs the spec's model contract
// exposes: temperature and a timeout. Zero values mean "provider default".
type CompletionOptions struct {
	Temperature float32
	Timeout     time.Duration
	// JSONMode requests a structured-JSON response when the provider supports
	// it; the Analyzer/Thought-Chain/Plot Generator all set this since they
	// parse structured output (spec §4.E/F/L).
	JSONMode bool
}

// Provider is the model contract every component E/F/G/L/J calls through.
// Implementations are swappable with no change to core logic (spec §6:
// "Providers and model identifiers are selected by a configuration vector").
type Provider interface {
	// Complete issues one system+user prompt pair and returns the generated
	// text. ctx carries the caller's deadline; implementations must respect
	// opts.Timeout as an additional, tighter bound when set.
	Complete(ctx context.Context, systemText, userText string, opts CompletionOptions) (string, error)
}
