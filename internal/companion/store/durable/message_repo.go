package durable

import (
	"bytes"
	"context"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// messageKey builds the composite (session_id, order) key. Zero-padding the
// order keeps bolt's lexicographic key ordering equal to numeric ordering, so
// a prefix Cursor.Seek naturally yields messages oldest-to-newest.
func messageKey(sessionID string, order int) []byte {
	return []byte(fmt.Sprintf("%s|%010d", sessionID, order))
}

// HasMessage reports whether a message_id has already been persisted —
// the idempotence check spec §4.H requires ("An entry already present in the
// durable tier is skipped").
func (d *DB) HasMessage(_ context.Context, messageID string) (bool, error) {
	var found bool
	err := d.bolt.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketMessageIndex).Get([]byte(messageID)) != nil
		return nil
	})
	return found, err
}

// PutMessage inserts a message row, enforcing unique(session_id, order) and
// updating the message_id index used by HasMessage.
func (d *DB) PutMessage(_ context.Context, m *domain.Message) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		key := messageKey(m.SessionID, m.Order)
		b := tx.Bucket(bucketMessages)
		if b.Get(key) != nil {
			return fmt.Errorf("message order %d already used in session %q", m.Order, m.SessionID)
		}
		data, err := jsonutil.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if err := b.Put(key, data); err != nil {
			return err
		}
		return tx.Bucket(bucketMessageIndex).Put([]byte(m.MessageID), key)
	})
}

// MaxOrder returns the highest `order` persisted for a session, or 0 if none
// (spec §4.H flush rule: "Assign order as max(existing order for session)+1+i").
func (d *DB) MaxOrder(_ context.Context, sessionID string) (int, error) {
	max := 0
	err := d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		prefix := []byte(sessionID + "|")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var m domain.Message
			if err := jsonutil.Unmarshal(v, &m); err != nil {
				return err
			}
			if m.Order > max {
				max = m.Order
			}
		}
		return nil
	})
	return max, err
}

// ListMessagesBySession returns every durable message of a session, ordered
// oldest to newest.
func (d *DB) ListMessagesBySession(_ context.Context, sessionID string) ([]*domain.Message, error) {
	var out []*domain.Message
	err := d.bolt.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMessages).Cursor()
		prefix := []byte(sessionID + "|")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var m domain.Message
			if err := jsonutil.Unmarshal(v, &m); err != nil {
				return err
			}
			out = append(out, &m)
		}
		return nil
	})
	return out, err
}

// DeleteMessage removes a durable message row and its index entry. Used by
// the placeholder-row cleanup sweep (SPEC_FULL §D.4).
func (d *DB) DeleteMessage(_ context.Context, sessionID string, order int, messageID string) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMessages).Delete(messageKey(sessionID, order)); err != nil {
			return err
		}
		return tx.Bucket(bucketMessageIndex).Delete([]byte(messageID))
	})
}
