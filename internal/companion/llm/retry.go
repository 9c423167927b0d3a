package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryWithBackoff runs fn up to maxAttempts times with exponential backoff
// starting at base and doubling each attempt — the policy spec §4.K's
// "Failure semantics" names verbatim ("retried up to 3 times with exponential
// backoff (base 2s, doubling)"). Grounded cross-pack on cenkalti/backoff/v4
// (see DESIGN.md) rather than a hand-rolled sleep loop.
func RetryWithBackoff(ctx context.Context, maxAttempts int, base time.Duration, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.MaxElapsedTime = 0 // bounded by maxAttempts, not wall-clock
	bctx := backoff.WithContext(b, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, bctx)
}
