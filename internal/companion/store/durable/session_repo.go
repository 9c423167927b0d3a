package durable

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// PutSession creates or overwrites a session row. Grounded on the teacher's
// boltdb.SessionStore.Create/Update.
func (d *DB) PutSession(_ context.Context, s *domain.Session) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		data, err := jsonutil.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		return tx.Bucket(bucketSessions).Put([]byte(s.SessionID), data)
	})
}

// GetSession fetches one session by ID.
func (d *DB) GetSession(_ context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := d.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("session %q not found", id)
		}
		return jsonutil.Unmarshal(data, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// TouchSession bumps a session's counters and LastMessageAt after a flush
// persists new rows (spec §3: sessions carry total/user/agent counters).
// Missing sessions are skipped silently — the hot tier can carry dialogue for
// a session row that was never created durably (tests, ad-hoc sessions).
func (d *DB) TouchSession(_ context.Context, sessionID string, at time.Time, userDelta, agentDelta, totalDelta int) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(sessionID))
		if data == nil {
			return nil
		}
		var s domain.Session
		if err := jsonutil.Unmarshal(data, &s); err != nil {
			return err
		}
		s.UserCount += userDelta
		s.AgentCount += agentDelta
		s.TotalCount += totalDelta
		if at.After(s.LastMessageAt) {
			s.LastMessageAt = at
		}
		updated, err := jsonutil.Marshal(&s)
		if err != nil {
			return err
		}
		return b.Put([]byte(sessionID), updated)
	})
}

// ListSessionsByUser returns a user's sessions ordered by LastMessageAt desc
// (spec §4.I step 2: "list user's sessions ordered by last_message_at desc").
func (d *DB) ListSessionsByUser(_ context.Context, userName string) ([]*domain.Session, error) {
	var out []*domain.Session
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEach(func(_, v []byte) error {
			var s domain.Session
			if err := jsonutil.Unmarshal(v, &s); err != nil {
				return err
			}
			if s.UserName == userName {
				out = append(out, &s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}
