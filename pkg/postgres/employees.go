package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// EmployeeByID retrieves a single employee.
func (d *DB) EmployeeByID(ctx context.Context, id uuid.UUID) (model.Employee, error) {
	var e model.Employee
	var roles []string
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, tier, roles, active FROM employee WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.Tier, &roles, &e.Active)
	if err != nil {
		return model.Employee{}, fmt.Errorf("failed to load employee %s: %w", id, err)
	}
	e.Roles = toKinds(roles)
	return e, nil
}

// EmployeesForRole returns active employees eligible for the role, ordered
// by ID for deterministic iteration.
func (d *DB) EmployeesForRole(ctx context.Context, role model.EventKind) ([]model.Employee, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, tier, roles, active
		FROM employee
		WHERE active AND $1 = ANY(roles)
		ORDER BY id
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query employees for role %s: %w", role, err)
	}
	defer rows.Close()

	var employees []model.Employee
	for rows.Next() {
		var e model.Employee
		var roles []string
		if err := rows.Scan(&e.ID, &e.Name, &e.Tier, &roles, &e.Active); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.Roles = toKinds(roles)
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}
	return employees, nil
}

func toKinds(roles []string) []model.EventKind {
	kinds := make([]model.EventKind, len(roles))
	for i, r := range roles {
		kinds[i] = model.EventKind(r)
	}
	return kinds
}
