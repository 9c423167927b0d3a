// Package mood implements Components D (Mood Store) and G (Mood Composition
// Engine). Grounded on the teacher's hot/durable split (store/hot + store/boltdb)
// and on internal/hivemind/service/agents' pattern of a small write-through
// cache fronting a durable row — applied here to spec §4.D's "role_mood:<id>"
// hash plus the role_details durable row.
package mood

import (
	"context"
	"time"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/store/durable"
	"github.com/kiosk404/soulgraph/internal/companion/store/hot"
)

var logger = log.For("mood")

// hotKV is the narrow scalar-cache seam the Mood Store needs, satisfied by
// both *hot.Store (Redis) and *hot.Memory (tests) — mirrors the clock
// package's Source interface so tests never need a live Redis.
type hotKV interface {
	GetString(ctx context.Context, key string) (string, bool)
	SetString(ctx context.Context, key, val string, ttl time.Duration) error
}

var _ hotKV = (*hot.Store)(nil)
var _ hotKV = (*hot.Memory)(nil)

// Store is the two-tier Mood Store (spec §4.D): hot cache keyed
// "role_mood:<role_id>" with TTL, durable row in role_details. Reads prefer
// hot; on miss, load durable and warm hot. Writes are write-through: durable
// first, then hot.
type Store struct {
	hot     hotKV
	db      *durable.DB
	ttl     time.Duration
	initial func(roleID string) domain.Mood
}

// New builds a Mood Store. initial supplies the persona's initial_mood when no
// row exists yet for a role (first-ever turn, spec S1).
func New(h hotKV, db *durable.DB, cfg config.MoodConfig, initial func(roleID string) domain.Mood) *Store {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{hot: h, db: db, ttl: ttl, initial: initial}
}

// Get returns the current mood for a role, per spec §4.D's read path: hot
// first, durable on miss (warming hot), and the persona's initial mood if no
// row exists anywhere yet.
func (s *Store) Get(ctx context.Context, roleID string) (domain.Mood, error) {
	key := hot.KeyRoleMood(roleID)
	if raw, ok := s.hot.GetString(ctx, key); ok {
		var m domain.Mood
		if err := jsonutil.Unmarshal([]byte(raw), &m); err == nil {
			return m, nil
		}
		logger.WithField("role_id", roleID).Warn("hot mood value unparsable, falling through to durable")
	}

	rd, err := s.db.GetRoleDetails(ctx, roleID)
	if err != nil {
		return domain.Mood{}, err
	}
	if rd == nil {
		m := s.initial(roleID)
		m.Clamp()
		return m, nil
	}

	m := rd.Mood
	m.Clamp()
	s.warmHot(ctx, roleID, m)
	return m, nil
}

// Put writes a role's mood through: durable first, then hot (spec §4.D, §5
// ordering guarantee). A durable failure is propagated (StoreUnavailable);
// a hot failure is logged and swallowed — readers fall through to durable on
// their next Get.
func (s *Store) Put(ctx context.Context, roleID string, m domain.Mood) error {
	m.Clamp()

	rd, err := s.db.GetRoleDetails(ctx, roleID)
	if err != nil {
		return err
	}
	if rd == nil {
		rd = &durable.RoleDetails{RoleID: roleID}
	}
	rd.Mood = m
	if err := s.db.PutRoleDetails(ctx, rd); err != nil {
		return err
	}

	s.warmHot(ctx, roleID, m)
	return nil
}

func (s *Store) warmHot(ctx context.Context, roleID string, m domain.Mood) {
	data, err := jsonutil.MarshalString(m)
	if err != nil {
		logger.WithError(err).Warn("failed to marshal mood for hot cache")
		return
	}
	if err := s.hot.SetString(ctx, hot.KeyRoleMood(roleID), data, s.ttl); err != nil {
		logger.WithError(err).WithField("role_id", roleID).Warn("failed to warm hot mood cache")
	}
}
