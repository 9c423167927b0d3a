package durable

import (
	"context"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// PutStage creates or overwrites a stage row. Enforces unique(outline_id, order).
func (d *DB) PutStage(_ context.Context, s *domain.Stage) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStages)
		if err := b.ForEach(func(k, v []byte) error {
			var other domain.Stage
			if err := jsonutil.Unmarshal(v, &other); err != nil {
				return err
			}
			if other.StageID != s.StageID && other.OutlineID == s.OutlineID && other.Order == s.Order {
				return fmt.Errorf("stage order %d already used in outline %q", s.Order, s.OutlineID)
			}
			return nil
		}); err != nil {
			return err
		}
		data, err := jsonutil.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal stage: %w", err)
		}
		return b.Put([]byte(s.StageID), data)
	})
}

// GetStage fetches one stage by ID.
func (d *DB) GetStage(_ context.Context, id string) (*domain.Stage, error) {
	var s domain.Stage
	err := d.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketStages).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("stage %q not found", id)
		}
		return jsonutil.Unmarshal(data, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStagesByOutline returns every stage of an outline, ordered by Order.
func (d *DB) ListStagesByOutline(_ context.Context, outlineID string) ([]*domain.Stage, error) {
	var out []*domain.Stage
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStages).ForEach(func(_, v []byte) error {
			var s domain.Stage
			if err := jsonutil.Unmarshal(v, &s); err != nil {
				return err
			}
			if s.OutlineID == outlineID {
				out = append(out, &s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// ActiveStage returns the single Active stage of an outline, or nil if none
// (spec §8 invariant: "for every outline, exactly zero or one Active stage").
func (d *DB) ActiveStage(ctx context.Context, outlineID string) (*domain.Stage, error) {
	stages, err := d.ListStagesByOutline(ctx, outlineID)
	if err != nil {
		return nil, err
	}
	for _, s := range stages {
		if s.Status == domain.StageActive {
			return s, nil
		}
	}
	return nil, nil
}
