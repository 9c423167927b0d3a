// Package clock implements Component A: the authoritative wall-clock time in
// the configured civil zone, cached with a TTL in the hot store. Grounded on
// the teacher's hot/durable split pattern (store/hot, store/boltdb) applied to
// spec §4.A's single well-known key "beijing_time".
package clock

import (
	"context"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/store/hot"
)

var logger = log.For("clock")

// Source abstracts the hot-store read/write so tests can inject a fake clock
// per spec §4.A ("Used consistently throughout the core so tests can inject a
// clock").
type Source interface {
	GetString(ctx context.Context, key string) (string, bool)
	SetString(ctx context.Context, key, val string, ttl time.Duration) error
}

var _ Source = (*hot.Store)(nil)

// Clock provides "now" in the configured civil zone, caching it for a TTL.
type Clock struct {
	hot  Source
	zone config.ZoneConfig
	ttl  time.Duration

	// osNow is swappable in tests; defaults to time.Now.
	osNow func() time.Time
}

// New builds a Clock backed by the given hot store.
func New(h Source, cfg config.ClockConfig) *Clock {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Clock{hot: h, zone: cfg.Zone, ttl: ttl, osNow: time.Now}
}

// Now returns the current time in the configured civil zone. It reads the hot
// cache first; on miss it falls back to the OS clock and writes the cache
// (spec §4.A).
func (c *Clock) Now(ctx context.Context) time.Time {
	key := hot.KeyBeijingTime()
	if raw, ok := c.hot.GetString(ctx, key); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.In(c.zone.Location())
		}
		logger.WithField("raw", raw).Warn("cached clock value unparsable, falling back")
	}

	now := c.osNow().In(c.zone.Location())
	if err := c.hot.SetString(ctx, key, now.Format(time.RFC3339), c.ttl); err != nil {
		logger.WithError(err).Warn("failed to cache clock value")
	}
	return now
}

// Location returns the configured civil zone.
func (c *Clock) Location() *time.Location {
	return c.zone.Location()
}
