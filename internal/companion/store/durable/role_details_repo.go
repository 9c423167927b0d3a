package durable

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/kiosk404/soulgraph/internal/companion/domain"
	"github.com/kiosk404/soulgraph/internal/companion/jsonutil"
)

// RoleDetails is the durable row backing the mood's durable tier plus the
// role's current life-story pointers (spec §6 "role_details" table).
type RoleDetails struct {
	RoleID                string      `json:"role_id"`
	Mood                  domain.Mood `json:"mood"`
	Age                   int         `json:"age"`
	CurrentLifeStageID    string      `json:"current_life_stage_id"`
	CurrentPlotSegmentID  string      `json:"current_plot_segment_id"`
	CurrentMaterialsID    string      `json:"current_materials_id"`
}

// PutRoleDetails writes (or overwrites) a role_details row.
func (d *DB) PutRoleDetails(_ context.Context, rd *RoleDetails) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		data, err := jsonutil.Marshal(rd)
		if err != nil {
			return fmt.Errorf("marshal role details: %w", err)
		}
		return tx.Bucket(bucketRoleDetails).Put([]byte(rd.RoleID), data)
	})
}

// GetRoleDetails fetches a role_details row. Returns (nil, nil) on miss so
// callers can distinguish "not yet created" from a store error.
func (d *DB) GetRoleDetails(_ context.Context, roleID string) (*RoleDetails, error) {
	var rd RoleDetails
	found := false
	err := d.bolt.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRoleDetails).Get([]byte(roleID))
		if data == nil {
			return nil
		}
		found = true
		return jsonutil.Unmarshal(data, &rd)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rd, nil
}
