package durable

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// PutOutline creates or overwrites an outline row.
func (d *DB) PutOutline(_ context.Context, o *domain.Outline) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		data, err := jsonutil.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal outline: %w", err)
		}
		return tx.Bucket(bucketOutlines).Put([]byte(o.OutlineID), data)
	})
}

// GetOutline fetches one outline by ID.
func (d *DB) GetOutline(_ context.Context, id string) (*domain.Outline, error) {
	var out domain.Outline
	err := d.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOutlines).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("outline %q not found", id)
		}
		return jsonutil.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOutlinesByRole returns every version of a role's outline.
func (d *DB) ListOutlinesByRole(_ context.Context, roleID string) ([]*domain.Outline, error) {
	var out []*domain.Outline
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOutlines).ForEach(func(_, v []byte) error {
			var o domain.Outline
			if err := jsonutil.Unmarshal(v, &o); err != nil {
				return err
			}
			if o.RoleID == roleID {
				out = append(out, &o)
			}
			return nil
		})
	})
	return out, err
}

// LatestOutline returns the highest-version outline for a role — the
// authoritative one per spec §3 ("the highest version is authoritative").
func (d *DB) LatestOutline(ctx context.Context, roleID string) (*domain.Outline, error) {
	all, err := d.ListOutlinesByRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	var best *domain.Outline
	for _, o := range all {
		if best == nil || o.Version > best.Version {
			best = o
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no outline for role %q", roleID)
	}
	return best, nil
}
