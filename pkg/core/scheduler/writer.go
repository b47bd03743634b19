package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// Writer performs the actual assignment mutations through the store. Each
// call is one transaction; uniqueness is re-verified at write time by the
// store, closing the race between validation and commit.
type Writer struct {
	store Store
	clock func() time.Time
}

// NewWriter creates a Writer. clock may be nil, defaulting to time.Now.
func NewWriter(store Store, clock func() time.Time) *Writer {
	if clock == nil {
		clock = time.Now
	}
	return &Writer{store: store, clock: clock}
}

// Place creates a pending assignment for the event. bumpOrigin, when set,
// records the assignment this placement displaced. Returns ErrConflict when
// the slot was taken between validation and commit.
func (w *Writer) Place(
	ctx context.Context,
	event model.Event,
	employee model.Employee,
	day time.Time,
	startMinute, minutes int,
	bumpOrigin *uuid.UUID,
) (model.Assignment, error) {
	assignment := w.newAssignment(event.ID, employee.ID, day, startMinute, minutes, bumpOrigin)

	err := w.store.Apply(ctx, ChangeSet{Inserts: []model.Assignment{assignment}})
	if err != nil {
		return model.Assignment{}, fmt.Errorf("failed to place event %s: %w", event.ID, err)
	}
	return assignment, nil
}

// ApplyBump commits a bump plan's full chain in one transaction: the
// displaced rows transition to bumped and every new row (the requester's
// and each relocation) is inserted, or nothing happens at all.
func (w *Writer) ApplyBump(ctx context.Context, plan *BumpPlan) error {
	if err := w.store.Apply(ctx, plan.ChangeSet); err != nil {
		return fmt.Errorf("failed to apply bump chain: %w", err)
	}
	return nil
}

func (w *Writer) newAssignment(
	eventID, employeeID uuid.UUID,
	day time.Time,
	startMinute, minutes int,
	bumpOrigin *uuid.UUID,
) model.Assignment {
	return model.Assignment{
		ID:           uuid.New(),
		EventID:      eventID,
		EmployeeID:   employeeID,
		Day:          model.DayOf(day),
		StartMinute:  startMinute,
		Minutes:      minutes,
		State:        model.AssignmentPending,
		BumpOriginID: bumpOrigin,
		CreatedAt:    w.clock().UTC(),
	}
}
