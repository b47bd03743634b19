package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// RotationsForRole retrieves the active rotation assignments for a role.
func (d *DB) RotationsForRole(ctx context.Context, role model.EventKind) ([]model.RotationAssignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, role, slot_index, date_rule, start_date, primary_employee_id, backup_employee_id, active
		FROM rotation_assignment
		WHERE role = $1 AND active
		ORDER BY slot_index, id
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query rotations: %w", err)
	}
	defer rows.Close()

	var rotations []model.RotationAssignment
	for rows.Next() {
		var r model.RotationAssignment
		var start time.Time
		if err := rows.Scan(&r.ID, &r.Role, &r.SlotIndex, &r.DateRule, &start, &r.PrimaryEmployeeID, &r.BackupEmployeeID, &r.Active); err != nil {
			return nil, fmt.Errorf("failed to scan rotation: %w", err)
		}
		r.StartDate = model.DayOf(start)
		rotations = append(rotations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rotations: %w", err)
	}

	return rotations, nil
}
