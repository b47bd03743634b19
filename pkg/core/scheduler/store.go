package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// Store is the persistence boundary the engine runs against. The postgres
// package provides the production implementation; tests use an in-memory
// fake. Reads observe committed state only; Apply commits a ChangeSet
// atomically.
type Store interface {
	// UnscheduledEvents returns events in Unscheduled state whose window
	// intersects the given range.
	UnscheduledEvents(ctx context.Context, window model.DateRange) ([]model.Event, error)
	EventByID(ctx context.Context, id uuid.UUID) (model.Event, error)
	// FindCoreEventByToken locates a Core event whose name carries the
	// given pairing token. Used by the supervisor-pairing heuristic when no
	// parent-event reference exists.
	FindCoreEventByToken(ctx context.Context, token string) (model.Event, bool, error)

	EmployeeByID(ctx context.Context, id uuid.UUID) (model.Employee, error)
	// EmployeesForRole returns active employees eligible for the role.
	EmployeesForRole(ctx context.Context, role model.EventKind) ([]model.Employee, error)

	// ActiveAssignments returns pending and posted assignments on a day.
	ActiveAssignments(ctx context.Context, day time.Time) ([]model.Assignment, error)
	// EmployeeAssignments returns an employee's active assignments on a day.
	EmployeeAssignments(ctx context.Context, employeeID uuid.UUID, day time.Time) ([]model.Assignment, error)
	// EventAssignments returns an event's active assignments.
	EventAssignments(ctx context.Context, eventID uuid.UUID) ([]model.Assignment, error)
	// LastBumpedAssignment returns the most recently superseded assignment
	// for an event, if any. Drives the "retry the employee that was bumped"
	// preference on later runs.
	LastBumpedAssignment(ctx context.Context, eventID uuid.UUID) (*model.Assignment, error)
	// WeekLoad counts an employee's active assignments in the week starting
	// at weekStart (a Monday).
	WeekLoad(ctx context.Context, employeeID uuid.UUID, weekStart time.Time) (int, error)

	RotationsForRole(ctx context.Context, role model.EventKind) ([]model.RotationAssignment, error)

	// LockedDay returns the lock covering day, or nil.
	LockedDay(ctx context.Context, day time.Time) (*model.LockedDay, error)
	// OnTimeOff reports whether the employee has time off covering day.
	OnTimeOff(ctx context.Context, employeeID uuid.UUID, day time.Time) (bool, error)

	// Apply commits a ChangeSet in a single transaction, re-verifying slot
	// uniqueness at write time. Returns ErrConflict on a uniqueness race.
	Apply(ctx context.Context, cs ChangeSet) error

	// AcquireRunLock serializes runs over overlapping date ranges. Returns
	// ErrRunLocked if the lock is held; otherwise the caller must invoke
	// the release func when the run finishes.
	AcquireRunLock(ctx context.Context, window model.DateRange) (func(), error)
}

// ChangeSet is the unit of mutation the engine hands to the store. All
// members commit or none do.
type ChangeSet struct {
	// Inserts are new assignments. Their events transition to Scheduled.
	Inserts []model.Assignment
	// MarkBumped transitions existing assignments to the bumped state,
	// freeing their slots within the same transaction.
	MarkBumped []uuid.UUID
	// MarkEventUnscheduled transitions events back to Unscheduled. Used
	// when an external caller voids an assignment; runs themselves never
	// leave a displaced event without a home.
	MarkEventUnscheduled []uuid.UUID
}

// Empty reports whether the ChangeSet carries no mutations.
func (cs ChangeSet) Empty() bool {
	return len(cs.Inserts) == 0 && len(cs.MarkBumped) == 0 && len(cs.MarkEventUnscheduled) == 0
}
