package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
)

const assignmentColumns = `id, event_id, employee_id, day, start_minute, minutes, state, bump_origin_id, created_at`

// ActiveAssignments returns pending and posted assignments on a day.
func (d *DB) ActiveAssignments(ctx context.Context, day time.Time) ([]model.Assignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignment
		WHERE day = $1 AND state IN ($2, $3)
		ORDER BY id
	`, model.DayOf(day), model.AssignmentPending, model.AssignmentPosted)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments for day: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// EmployeeAssignments returns an employee's active assignments on a day.
func (d *DB) EmployeeAssignments(ctx context.Context, employeeID uuid.UUID, day time.Time) ([]model.Assignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignment
		WHERE employee_id = $1 AND day = $2 AND state IN ($3, $4)
		ORDER BY start_minute
	`, employeeID, model.DayOf(day), model.AssignmentPending, model.AssignmentPosted)
	if err != nil {
		return nil, fmt.Errorf("failed to query employee assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// EventAssignments returns an event's active assignments.
func (d *DB) EventAssignments(ctx context.Context, eventID uuid.UUID) ([]model.Assignment, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignment
		WHERE event_id = $1 AND state IN ($2, $3)
		ORDER BY day, start_minute
	`, eventID, model.AssignmentPending, model.AssignmentPosted)
	if err != nil {
		return nil, fmt.Errorf("failed to query event assignments: %w", err)
	}
	defer rows.Close()

	return scanAssignments(rows)
}

// AssignmentByID retrieves a single assignment in any state. Bumped rows
// are reachable here so operator tooling can walk bump chains.
func (d *DB) AssignmentByID(ctx context.Context, id uuid.UUID) (model.Assignment, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignment WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		return model.Assignment{}, fmt.Errorf("failed to load assignment %s: %w", id, err)
	}
	return a, nil
}

// LastBumpedAssignment returns the event's most recently superseded
// assignment, or nil.
func (d *DB) LastBumpedAssignment(ctx context.Context, eventID uuid.UUID) (*model.Assignment, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignment
		WHERE event_id = $1 AND state = $2
		ORDER BY created_at DESC, id
		LIMIT 1
	`, eventID, model.AssignmentBumped)

	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query bump history: %w", err)
	}
	return &a, nil
}

// WeekLoad counts an employee's active assignments in the week starting at
// weekStart.
func (d *DB) WeekLoad(ctx context.Context, employeeID uuid.UUID, weekStart time.Time) (int, error) {
	weekStart = model.DayOf(weekStart)
	var count int
	err := d.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM assignment
		WHERE employee_id = $1 AND day >= $2 AND day < $3 AND state IN ($4, $5)
	`, employeeID, weekStart, weekStart.AddDate(0, 0, 7), model.AssignmentPending, model.AssignmentPosted).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count week load: %w", err)
	}
	return count, nil
}

// Apply commits a ChangeSet in a single transaction. The partial unique
// index on active assignment slots re-verifies uniqueness at write time;
// a violation maps to scheduler.ErrConflict.
func (d *DB) Apply(ctx context.Context, cs scheduler.ChangeSet) error {
	if cs.Empty() {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Free displaced slots first so the chain's inserts can reuse them
	// within the same transaction.
	for _, id := range cs.MarkBumped {
		tag, err := tx.Exec(ctx, `
			UPDATE assignment SET state = $2 WHERE id = $1 AND state = $3
		`, id, model.AssignmentBumped, model.AssignmentPending)
		if err != nil {
			return fmt.Errorf("failed to mark assignment %s bumped: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			// The row was posted or bumped since planning: treat as a race.
			return fmt.Errorf("assignment %s no longer pending: %w", id, scheduler.ErrConflict)
		}
	}

	for _, a := range cs.Inserts {
		_, err := tx.Exec(ctx, `
			INSERT INTO assignment (id, event_id, employee_id, day, start_minute, minutes, state, bump_origin_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, a.ID, a.EventID, a.EmployeeID, model.DayOf(a.Day), a.StartMinute, a.Minutes, a.State, a.BumpOriginID, a.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("slot taken for assignment %s: %w", a.ID, scheduler.ErrConflict)
			}
			return fmt.Errorf("failed to insert assignment: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE event SET state = $2 WHERE id = $1
		`, a.EventID, model.EventScheduled); err != nil {
			return fmt.Errorf("failed to mark event scheduled: %w", err)
		}
	}

	for _, id := range cs.MarkEventUnscheduled {
		if _, err := tx.Exec(ctx, `
			UPDATE event SET state = $2 WHERE id = $1
		`, id, model.EventUnscheduled); err != nil {
			return fmt.Errorf("failed to mark event unscheduled: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanAssignment(row rowScanner) (model.Assignment, error) {
	var a model.Assignment
	var day time.Time
	if err := row.Scan(&a.ID, &a.EventID, &a.EmployeeID, &day, &a.StartMinute, &a.Minutes, &a.State, &a.BumpOriginID, &a.CreatedAt); err != nil {
		return model.Assignment{}, err
	}
	a.Day = model.DayOf(day)
	return a, nil
}

func scanAssignments(rows pgx.Rows) ([]model.Assignment, error) {
	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}
