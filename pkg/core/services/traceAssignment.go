package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// TraceStore defines the database operations needed for tracing an
// assignment's bump provenance.
type TraceStore interface {
	AssignmentByID(ctx context.Context, id uuid.UUID) (model.Assignment, error)
	EventByID(ctx context.Context, id uuid.UUID) (model.Event, error)
	EmployeeByID(ctx context.Context, id uuid.UUID) (model.Employee, error)
}

// TraceHop is one step in a bump provenance chain, newest first.
type TraceHop struct {
	Assignment model.Assignment
	Event      model.Event
	Employee   model.Employee
}

// maxTraceDepth guards against reference cycles from hand-edited data.
const maxTraceDepth = 20

// TraceAssignment walks the bump-origin chain starting at the given
// assignment, answering "why is this event here". The first hop is the
// assignment itself; each subsequent hop is the assignment the previous
// one displaced (or was displaced from).
func TraceAssignment(ctx context.Context, store TraceStore, assignmentID uuid.UUID) ([]TraceHop, error) {
	var hops []TraceHop
	seen := make(map[uuid.UUID]bool)

	next := &assignmentID
	for next != nil && len(hops) < maxTraceDepth {
		if seen[*next] {
			return hops, fmt.Errorf("bump-origin cycle detected at assignment %s", *next)
		}
		seen[*next] = true

		assignment, err := store.AssignmentByID(ctx, *next)
		if err != nil {
			return hops, fmt.Errorf("failed to load assignment %s: %w", *next, err)
		}
		event, err := store.EventByID(ctx, assignment.EventID)
		if err != nil {
			return hops, fmt.Errorf("failed to load event for assignment %s: %w", assignment.ID, err)
		}
		employee, err := store.EmployeeByID(ctx, assignment.EmployeeID)
		if err != nil {
			return hops, fmt.Errorf("failed to load employee for assignment %s: %w", assignment.ID, err)
		}

		hops = append(hops, TraceHop{Assignment: assignment, Event: event, Employee: employee})
		next = assignment.BumpOriginID
	}

	return hops, nil
}
