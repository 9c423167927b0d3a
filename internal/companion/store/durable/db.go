// Package durable is the durable tier backing §6's relational tables. Grounded
// directly on internal/hivemind/service/agents/store/boltdb/{db,session_store}.go:
// one bolt bucket per table, JSON-encoded rows, composite keys standing in for
// the SQL unique/foreign-key constraints spec §6 documents (bolt has neither, so
// uniqueness and cascade-delete are enforced explicitly in the repo methods
// rather than by the storage engine).
package durable

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/boltdb/bolt"
)

var buckets = [][]byte{
	bucketOutlines, bucketStages, bucketSegments, bucketPlots,
	bucketSessions, bucketMessages, bucketMessageIndex, bucketRoleDetails,
}

var (
	bucketOutlines      = []byte("life_plot_outlines")
	bucketStages        = []byte("life_stages")
	bucketSegments      = []byte("plot_segments")
	bucketPlots         = []byte("specific_plot")
	bucketSessions      = []byte("chat_sessions")
	bucketMessages      = []byte("chat_messages")
	bucketMessageIndex  = []byte("chat_messages_by_id") // message_id -> composite key, for O(1) idempotence checks
	bucketRoleDetails   = []byte("role_details")
)

// DB wraps a BoltDB instance and manages its lifecycle.
type DB struct {
	bolt *bolt.DB
}

// Open creates (or reuses) the bolt file at path and ensures every table
// bucket exists.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("durable: mkdir %q: %w", dir, err)
		}
	}
	b, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("durable: open %q: %w", path, err)
	}
	err = b.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("durable: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("durable: init buckets: %w", err)
	}
	return &DB{bolt: b}, nil
}

// Close closes the underlying bolt database.
func (d *DB) Close() error { return d.bolt.Close() }

// Bolt exposes the raw handle for repos that need custom transactions.
func (d *DB) Bolt() *bolt.DB { return d.bolt }
