// Package dialogue implements Component H: the two-tier Dialogue Log. Hot tier
// is a per-session ordered list in the hot store; durable tier is ordered rows
// indexed by (session_id, order). Grounded on the teacher's dual-tier pattern
// across store/hot and store/boltdb, and on spec §9's design note: "model as a
// single DialogueLog abstraction whose backing store is a pair (HotList,
// DurableTable) with explicit append, flush, query(merged) operations. Make
// message_id the deduplication key."
package dialogue

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
	"github.com/kiosk404/soulgraph/internal/companion/log"
	"github.com/kiosk404/soulgraph/internal/companion/store/durable"
	"github.com/kiosk404/soulgraph/internal/companion/store/hot"
)

var logger = log.For("dialogue")

// hotList is the narrow ordered-list seam the Dialogue Log needs, satisfied
// by both *hot.Store (Redis) and *hot.Memory (tests).
type hotList interface {
	LPush(ctx context.Context, key, val string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LSet(ctx context.Context, key string, index int64, val string) error
	LLen(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

var _ hotList = (*hot.Store)(nil)
var _ hotList = (*hot.Memory)(nil)

// Log is the Dialogue Log (spec §4.H).
type Log struct {
	hot hotList
	db  *durable.DB
	cfg config.DialogueConfig
}

// New builds a Dialogue Log.
func New(h hotList, db *durable.DB, cfg config.DialogueConfig) *Log {
	if cfg.HotTTL <= 0 {
		cfg.HotTTL = 24 * time.Hour
	}
	if cfg.HotExtendTTL <= 0 {
		cfg.HotExtendTTL = 2 * time.Hour
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	return &Log{hot: h, db: db, cfg: cfg}
}

// Append pushes a new message to the hot tier's head (spec §4.H: "Writes push
// newest to head"). The message is assigned a fresh MessageID if it doesn't
// already have one.
func (l *Log) Append(ctx context.Context, m *domain.Message) error {
	if m.MessageID == "" {
		m.MessageID = uuid.NewString()
	}
	data, err := jsonutil.MarshalString(m)
	if err != nil {
		return err
	}
	key := hot.KeySessionMessages(m.SessionID)
	if err := l.hot.LPush(ctx, key, data); err != nil {
		return err
	}
	return l.hot.Expire(ctx, key, l.cfg.HotTTL)
}

// hotLen returns the hot list length for a session.
func (l *Log) hotLen(ctx context.Context, sessionID string) (int64, error) {
	return l.hot.LLen(ctx, hot.KeySessionMessages(sessionID))
}

// ShouldFlush reports spec §4.H's trigger: hot list length divisible by 6 or
// exceeding 10.
func (l *Log) ShouldFlush(ctx context.Context, sessionID string) bool {
	n, err := l.hotLen(ctx, sessionID)
	if err != nil {
		logger.WithError(err).WithField("session_id", sessionID).Warn("could not read hot list length")
		return false
	}
	return n > 10 || (n > 0 && n%6 == 0)
}

// Flush writes every pending (persisted=false) hot entry through to the
// durable tier, in insertion (oldest-to-newest) order, assigning
// order = max(existing)+1+i, then rewrites each hot entry in place marked
// persisted=true. Idempotent on message_id: an entry already present in the
// durable tier is skipped without consuming an order slot (spec §4.H, §8
// round-trip property).
func (l *Log) Flush(ctx context.Context, sessionID string) error {
	key := hot.KeySessionMessages(sessionID)
	raw, err := l.hot.LRange(ctx, key, 0, -1)
	if err != nil {
		return err
	}

	// raw is newest-to-oldest (head to tail); reverse to oldest-to-newest for
	// durable insertion order.
	type entry struct {
		idx int64 // index within the hot list, for LSet rewrite
		msg *domain.Message
	}
	var pending []entry
	for i := len(raw) - 1; i >= 0; i-- {
		var m domain.Message
		if err := jsonutil.Unmarshal([]byte(raw[i]), &m); err != nil {
			logger.WithError(err).Warn("skipping unparsable hot dialogue entry")
			continue
		}
		if m.Persisted {
			continue
		}
		pending = append(pending, entry{idx: int64(i), msg: &m})
	}
	if len(pending) == 0 {
		return nil
	}

	maxOrder, err := l.db.MaxOrder(ctx, sessionID)
	if err != nil {
		return err
	}

	next := maxOrder
	var userDelta, agentDelta, totalDelta int
	var lastAt time.Time
	for _, e := range pending {
		already, err := l.db.HasMessage(ctx, e.msg.MessageID)
		if err != nil {
			return err
		}
		if !already {
			next++
			e.msg.Order = next
			if err := l.db.PutMessage(ctx, e.msg); err != nil {
				return err
			}
			totalDelta++
			switch e.msg.SenderType {
			case domain.SenderUser:
				userDelta++
			case domain.SenderAgent:
				agentDelta++
			}
			if e.msg.Timestamp.After(lastAt) {
				lastAt = e.msg.Timestamp
			}
		}
		e.msg.Persisted = true
		data, err := jsonutil.MarshalString(e.msg)
		if err != nil {
			return err
		}
		if err := l.hot.LSet(ctx, key, e.idx, data); err != nil {
			return err
		}
	}

	if totalDelta > 0 {
		if err := l.db.TouchSession(ctx, sessionID, lastAt, userDelta, agentDelta, totalDelta); err != nil {
			logger.WithError(err).WithField("session_id", sessionID).Warn("failed to bump session counters")
		}
	}

	return l.hot.Expire(ctx, key, l.cfg.HotExtendTTL)
}

// Query returns the union of both tiers merged by timestamp, deduplicated by
// message_id, clipped to limit (most recent N), oldest-to-newest.
func (l *Log) Query(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = l.cfg.RecentLimit
	}

	durableMsgs, err := l.db.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		logger.WithError(err).Warn("durable query failed, falling back to hot-only")
		durableMsgs = nil
	}

	raw, err := l.hot.LRange(ctx, hot.KeySessionMessages(sessionID), 0, -1)
	if err != nil {
		logger.WithError(err).Warn("hot query failed, falling back to durable-only")
		raw = nil
	}

	byID := make(map[string]*domain.Message, len(durableMsgs)+len(raw))
	for _, m := range durableMsgs {
		byID[m.MessageID] = m
	}
	for _, s := range raw {
		var m domain.Message
		if err := jsonutil.Unmarshal([]byte(s), &m); err != nil {
			continue
		}
		byID[m.MessageID] = &m
	}

	out := make([]*domain.Message, 0, len(byID))
	for _, m := range byID {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// WithinWindow clips an oldest-to-newest message list to those whose
// timestamp falls inside the trailing window ending at now, keeping at most
// max of the newest survivors. This is the recency rule the Thought-Chain
// Composer's input follows (spec §4.F: "last 10 messages within a 10-minute
// window, ordered oldest to newest, capped at 20").
func WithinWindow(msgs []*domain.Message, now time.Time, window time.Duration, max int) []*domain.Message {
	cutoff := now.Add(-window)
	var out []*domain.Message
	for _, m := range msgs {
		if !m.Timestamp.Before(cutoff) {
			out = append(out, m)
		}
	}
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Close runs the final flush on graceful shutdown or explicit session
// cleanup (spec §4.H: "Flush also runs on graceful shutdown and on explicit
// session cleanup").
func (l *Log) Close(ctx context.Context, sessionID string) error {
	return l.Flush(ctx, sessionID)
}

// PurgePlaceholderRows is the system-message cleanup sweep (SPEC_FULL §D.4):
// an idempotent repair pass removing any durable dialogue row whose content is
// a bare system/error placeholder — the anti-pattern spec §4.J step 8 and §7
// already forbid going forward. Grounded on original_source's
// cleanup_system_messages.py.
func (l *Log) PurgePlaceholderRows(ctx context.Context, sessionID string) (int, error) {
	msgs, err := l.db.ListMessagesBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, m := range msgs {
		if m.SenderType != domain.SenderSystem {
			continue
		}
		if !isPlaceholder(m.Content) {
			continue
		}
		if err := l.db.DeleteMessage(ctx, m.SessionID, m.Order, m.MessageID); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func isPlaceholder(content string) bool {
	switch content {
	case "", "[error]", "[system error]", "[no response]":
		return true
	default:
		return false
	}
}
