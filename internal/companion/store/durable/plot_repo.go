package durable

import (
	"context"
	"fmt"
	"sort"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// PutDailyPlot creates or overwrites a daily-plot row. Enforces
// unique(segment_id, order).
func (d *DB) PutDailyPlot(_ context.Context, p *domain.DailyPlot) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPlots)
		if err := b.ForEach(func(_, v []byte) error {
			var other domain.DailyPlot
			if err := jsonutil.Unmarshal(v, &other); err != nil {
				return err
			}
			if other.PlotID != p.PlotID && other.SegmentID == p.SegmentID && other.Order == p.Order {
				return fmt.Errorf("plot order %d already used in segment %q", p.Order, p.SegmentID)
			}
			return nil
		}); err != nil {
			return err
		}
		data, err := jsonutil.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal daily plot: %w", err)
		}
		return b.Put([]byte(p.PlotID), data)
	})
}

// ListPlotsBySegment returns every daily plot of a segment, ordered by Order.
func (d *DB) ListPlotsBySegment(_ context.Context, segmentID string) ([]*domain.DailyPlot, error) {
	var out []*domain.DailyPlot
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlots).ForEach(func(_, v []byte) error {
			var p domain.DailyPlot
			if err := jsonutil.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.SegmentID == segmentID {
				out = append(out, &p)
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

// MaxPlotDate returns the latest plot_date across every daily plot in the
// store, the value the Life-Story State Machine's unlock trigger compares
// against "now" (spec §4.K). Returns zero time if no plots exist.
func (d *DB) MaxPlotDate(_ context.Context) (domain.DailyPlot, bool, error) {
	var best domain.DailyPlot
	found := false
	err := d.bolt.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPlots).ForEach(func(_, v []byte) error {
			var p domain.DailyPlot
			if err := jsonutil.Unmarshal(v, &p); err != nil {
				return err
			}
			if !found || p.PlotDate.After(best.PlotDate) {
				best = p
				found = true
			}
			return nil
		})
	})
	return best, found, err
}

// PurgeAllPlots empties the entire daily-plot table (spec §4.K step 1: "all
// rows in the daily-plot table" — this is the deliberate, regenerable purge).
func (d *DB) PurgeAllPlots(_ context.Context) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketPlots); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketPlots)
		return err
	})
}
