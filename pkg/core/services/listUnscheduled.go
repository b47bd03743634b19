package services

import (
	"context"
	"fmt"

	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
)

// ListStore defines the database operations needed for listing
// unscheduled events.
type ListStore interface {
	UnscheduledEvents(ctx context.Context, window model.DateRange) ([]model.Event, error)
}

// ListUnscheduled returns the unscheduled events in the window, in the
// exact order the driver would consume them.
func ListUnscheduled(ctx context.Context, store ListStore, window model.DateRange) ([]model.Event, error) {
	events, err := store.UnscheduledEvents(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unscheduled events: %w", err)
	}
	scheduler.SortEvents(events)
	return events, nil
}
