package scheduler

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// testToday is the fixed clock for engine tests: Monday 2026-03-02.
var testToday = model.Date(2026, time.March, 2)

func testClock() time.Time {
	return testToday.Add(8 * time.Hour)
}

func testEvent(name string, kind model.EventKind, from, to time.Time) model.Event {
	return model.Event{
		ID:        uuid.New(),
		Name:      name,
		Kind:      kind,
		State:     model.EventUnscheduled,
		StartDate: model.DayOf(from),
		DueDate:   model.DayOf(to),
		Minutes:   60,
	}
}

func testEmployee(name string, tier model.Tier, roles ...model.EventKind) model.Employee {
	return model.Employee{
		ID:     uuid.New(),
		Name:   name,
		Tier:   tier,
		Roles:  roles,
		Active: true,
	}
}

func testAssignment(event model.Event, employee model.Employee, day time.Time, startMinute int) model.Assignment {
	return model.Assignment{
		ID:          uuid.New(),
		EventID:     event.ID,
		EmployeeID:  employee.ID,
		Day:         model.DayOf(day),
		StartMinute: startMinute,
		Minutes:     60,
		State:       model.AssignmentPending,
		CreatedAt:   testClock(),
	}
}

func newTestDriver(store Store, cfg Config, opts DriverOptions) *Driver {
	if opts.Clock == nil {
		opts.Clock = testClock
	}
	return NewDriver(store, cfg, zap.NewNop(), opts)
}
