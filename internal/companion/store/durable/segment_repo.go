package durable

import (
	"context"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// PutSegment creates or overwrites a segment row. Enforces
// unique(stage_id, order_in_stage).
func (d *DB) PutSegment(_ context.Context, s *domain.Segment) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSegments)
		if err := b.ForEach(func(_, v []byte) error {
			var other domain.Segment
			if err := jsonutil.Unmarshal(v, &other); err != nil {
				return err
			}
			if other.SegmentID != s.SegmentID && other.StageID == s.StageID && other.OrderInStage == s.OrderInStage {
				return fmt.Errorf("segment order %d already used in stage %q", s.OrderInStage, s.StageID)
			}
			return nil
		}); err != nil {
			return err
		}
		data, err := jsonutil.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal segment: %w", err)
		}
		return b.Put([]byte(s.SegmentID), data)
	})
}

// GetSegment fetches one segment by ID.
func (d *DB) GetSegment(_ context.Context, id string) (*domain.Segment, error) {
	var s domain.Segment
	err := d.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSegments).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("segment %q not found", id)
		}
		return jsonutil.Unmarshal(data, &s)
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSegmentsByStage returns every segment of a stage, ordered by OrderInStage.
func (d *DB) ListSegmentsByStage(_ context.Context, stageID string) ([]*domain.Segment, error) {
	var out []*domain.Segment
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSegments).ForEach(func(_, v []byte) error {
			var s domain.Segment
			if err := jsonutil.Unmarshal(v, &s); err != nil {
				return err
			}
			if s.StageID == stageID {
				out = append(out, &s)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderInStage < out[j].OrderInStage })
	return out, nil
}

// ActiveSegment returns the single Active segment of a stage, or nil if none.
func (d *DB) ActiveSegment(ctx context.Context, stageID string) (*domain.Segment, error) {
	segs, err := d.ListSegmentsByStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	for _, s := range segs {
		if s.Status == domain.SegmentActive {
			return s, nil
		}
	}
	return nil, nil
}

// DeleteSegmentsByStage removes every segment belonging to a stage (used when
// a stage is exhausted and its segments are cleared before regeneration,
// spec §4.K step 3: "Clear all segments").
func (d *DB) DeleteSegmentsByStage(ctx context.Context, stageID string) error {
	segs, err := d.ListSegmentsByStage(ctx, stageID)
	if err != nil {
		return err
	}
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSegments)
		for _, s := range segs {
			if err := b.Delete([]byte(s.SegmentID)); err != nil {
				return err
			}
		}
		return nil
	})
}
