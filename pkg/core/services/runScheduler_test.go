package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/internal/config"
	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
)

// stubStore is a minimal scheduler.Store for service-level tests: one role
// pool, no rotations, no calendar restrictions.
type stubStore struct {
	events      map[uuid.UUID]model.Event
	employees   []model.Employee
	assignments []model.Assignment
	locked      bool
}

func newStubStore() *stubStore {
	return &stubStore{events: make(map[uuid.UUID]model.Event)}
}

func (s *stubStore) UnscheduledEvents(ctx context.Context, window model.DateRange) ([]model.Event, error) {
	var out []model.Event
	for _, ev := range s.events {
		if ev.State == model.EventUnscheduled {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *stubStore) EventByID(ctx context.Context, id uuid.UUID) (model.Event, error) {
	return s.events[id], nil
}

func (s *stubStore) FindCoreEventByToken(ctx context.Context, token string) (model.Event, bool, error) {
	return model.Event{}, false, nil
}

func (s *stubStore) EmployeeByID(ctx context.Context, id uuid.UUID) (model.Employee, error) {
	for _, e := range s.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Employee{}, nil
}

func (s *stubStore) EmployeesForRole(ctx context.Context, role model.EventKind) ([]model.Employee, error) {
	var out []model.Employee
	for _, e := range s.employees {
		if e.Active && e.CanWork(role) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubStore) ActiveAssignments(ctx context.Context, day time.Time) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.State.Active() && a.Day.Equal(day) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) EmployeeAssignments(ctx context.Context, employeeID uuid.UUID, day time.Time) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.State.Active() && a.EmployeeID == employeeID && a.Day.Equal(day) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) EventAssignments(ctx context.Context, eventID uuid.UUID) ([]model.Assignment, error) {
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.State.Active() && a.EventID == eventID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) LastBumpedAssignment(ctx context.Context, eventID uuid.UUID) (*model.Assignment, error) {
	return nil, nil
}

func (s *stubStore) WeekLoad(ctx context.Context, employeeID uuid.UUID, weekStart time.Time) (int, error) {
	return 0, nil
}

func (s *stubStore) RotationsForRole(ctx context.Context, role model.EventKind) ([]model.RotationAssignment, error) {
	return nil, nil
}

func (s *stubStore) LockedDay(ctx context.Context, day time.Time) (*model.LockedDay, error) {
	return nil, nil
}

func (s *stubStore) OnTimeOff(ctx context.Context, employeeID uuid.UUID, day time.Time) (bool, error) {
	return false, nil
}

func (s *stubStore) Apply(ctx context.Context, cs scheduler.ChangeSet) error {
	s.assignments = append(s.assignments, cs.Inserts...)
	for _, insert := range cs.Inserts {
		ev := s.events[insert.EventID]
		ev.State = model.EventScheduled
		s.events[insert.EventID] = ev
	}
	return nil
}

func (s *stubStore) AcquireRunLock(ctx context.Context, window model.DateRange) (func(), error) {
	if s.locked {
		return nil, scheduler.ErrRunLocked
	}
	return func() {}, nil
}

func TestRunScheduler_PlacesAndReports(t *testing.T) {
	day := model.Date(2026, time.March, 2)
	store := newStubStore()
	store.employees = []model.Employee{{
		ID:     uuid.New(),
		Name:   "Dana",
		Tier:   model.TierSpecialist,
		Roles:  []model.EventKind{model.KindCore},
		Active: true,
	}}
	event := model.Event{
		ID:        uuid.New(),
		Name:      "Snack Demo",
		Kind:      model.KindCore,
		State:     model.EventUnscheduled,
		StartDate: day,
		DueDate:   day.AddDate(0, 0, 6),
		Minutes:   60,
	}
	store.events[event.ID] = event

	cfg := &config.Config{
		DatabaseURL: "postgres://test",
		Scheduler:   config.SchedulerConfig{MaxBumpDepth: 2, DayStart: "10:30"},
	}

	result, err := RunScheduler(context.Background(), store, nil, cfg, zap.NewNop(),
		model.DateRange{From: day, To: day.AddDate(0, 0, 6)})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.Report.Placed)
	assert.True(t, result.Report.Satisfied())
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))

	require.Len(t, store.assignments, 1)
	assert.Equal(t, 10*60+30, store.assignments[0].StartMinute, "configured day start carries through")
}

func TestRunScheduler_LockHeld(t *testing.T) {
	store := newStubStore()
	store.locked = true
	cfg := &config.Config{DatabaseURL: "postgres://test"}

	day := model.Date(2026, time.March, 2)
	_, err := RunScheduler(context.Background(), store, nil, cfg, zap.NewNop(),
		model.DateRange{From: day, To: day.AddDate(0, 0, 6)})
	assert.ErrorIs(t, err, scheduler.ErrRunLocked)
}

func TestRunScheduler_InvalidBlackoutRule(t *testing.T) {
	store := newStubStore()
	cfg := &config.Config{
		DatabaseURL: "postgres://test",
		Scheduler:   config.SchedulerConfig{BlackoutRules: []string{"NOT-AN-RRULE"}},
	}

	day := model.Date(2026, time.March, 2)
	_, err := RunScheduler(context.Background(), store, nil, cfg, zap.NewNop(),
		model.DateRange{From: day, To: day.AddDate(0, 0, 6)})
	assert.Error(t, err)
}
