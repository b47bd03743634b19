package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// memStore is an in-memory Store used across the engine tests. It mirrors
// the production store's semantics: Apply is atomic, slot uniqueness is
// re-verified at write time, and the run lock is per-window.
type memStore struct {
	mu          sync.Mutex
	events      map[uuid.UUID]model.Event
	employees   map[uuid.UUID]model.Employee
	assignments map[uuid.UUID]model.Assignment
	rotations   []model.RotationAssignment
	lockedDays  map[time.Time]model.LockedDay
	timeOff     []model.TimeOff
	locks       map[string]bool

	applyCalls int
	// failApplies injects failErr into the next N Apply calls, simulating
	// write-time races.
	failApplies int
	failErr     error
}

func newMemStore() *memStore {
	return &memStore{
		events:      make(map[uuid.UUID]model.Event),
		employees:   make(map[uuid.UUID]model.Employee),
		assignments: make(map[uuid.UUID]model.Assignment),
		lockedDays:  make(map[time.Time]model.LockedDay),
		locks:       make(map[string]bool),
	}
}

func (s *memStore) addEvent(ev model.Event) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev
	return ev
}

func (s *memStore) addEmployee(e model.Employee) model.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
	return e
}

func (s *memStore) addAssignment(a model.Assignment) model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
	return a
}

func (s *memStore) addRotation(r model.RotationAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations = append(s.rotations, r)
}

func (s *memStore) lockDay(day time.Time, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day = model.DayOf(day)
	s.lockedDays[day] = model.LockedDay{Day: day, Reason: reason}
}

func (s *memStore) addTimeOff(employeeID uuid.UUID, from, to time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOff = append(s.timeOff, model.TimeOff{
		ID:         uuid.New(),
		EmployeeID: employeeID,
		StartDate:  model.DayOf(from),
		EndDate:    model.DayOf(to),
	})
}

func (s *memStore) assignmentByID(id uuid.UUID) (model.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	return a, ok
}

func (s *memStore) activeForEvent(eventID uuid.UUID) []model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.EventID == eventID && a.State.Active() {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out
}

func (s *memStore) UnscheduledEvents(ctx context.Context, window model.DateRange) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Event
	for _, ev := range s.events {
		if ev.State != model.EventUnscheduled {
			continue
		}
		if ev.StartDate.After(window.To) || ev.DueDate.Before(window.From) {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *memStore) EventByID(ctx context.Context, id uuid.UUID) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %s not found", id)
	}
	return ev, nil
}

func (s *memStore) FindCoreEventByToken(ctx context.Context, token string) (model.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []model.Event
	for _, ev := range s.events {
		if ev.Kind != model.KindCore || ev.State == model.EventCanceled {
			continue
		}
		if strings.Contains(ev.Name, token) {
			matches = append(matches, ev)
		}
	}
	if len(matches) == 0 {
		return model.Event{}, false, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].DueDate.Equal(matches[j].DueDate) {
			return matches[i].DueDate.Before(matches[j].DueDate)
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})
	return matches[0], true, nil
}

func (s *memStore) EmployeeByID(ctx context.Context, id uuid.UUID) (model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.employees[id]
	if !ok {
		return model.Employee{}, fmt.Errorf("employee %s not found", id)
	}
	return e, nil
}

func (s *memStore) EmployeesForRole(ctx context.Context, role model.EventKind) ([]model.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Employee
	for _, e := range s.employees {
		if e.Active && e.CanWork(role) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *memStore) ActiveAssignments(ctx context.Context, day time.Time) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day = model.DayOf(day)
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.State.Active() && a.Day.Equal(day) {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func (s *memStore) EmployeeAssignments(ctx context.Context, employeeID uuid.UUID, day time.Time) ([]model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day = model.DayOf(day)
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.State.Active() && a.EmployeeID == employeeID && a.Day.Equal(day) {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out, nil
}

func (s *memStore) EventAssignments(ctx context.Context, eventID uuid.UUID) ([]model.Assignment, error) {
	return s.activeForEvent(eventID), nil
}

func (s *memStore) LastBumpedAssignment(ctx context.Context, eventID uuid.UUID) (*model.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Assignment
	for _, a := range s.assignments {
		if a.EventID != eventID || a.State != model.AssignmentBumped {
			continue
		}
		a := a
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.ID.String() > latest.ID.String()) {
			latest = &a
		}
	}
	return latest, nil
}

func (s *memStore) WeekLoad(ctx context.Context, employeeID uuid.UUID, weekStart time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	weekEnd := weekStart.AddDate(0, 0, 7)
	count := 0
	for _, a := range s.assignments {
		if !a.State.Active() || a.EmployeeID != employeeID {
			continue
		}
		if !a.Day.Before(weekStart) && a.Day.Before(weekEnd) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) RotationsForRole(ctx context.Context, role model.EventKind) ([]model.RotationAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RotationAssignment
	for _, r := range s.rotations {
		if r.Role == role && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) LockedDay(ctx context.Context, day time.Time) (*model.LockedDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lock, ok := s.lockedDays[model.DayOf(day)]; ok {
		return &lock, nil
	}
	return nil, nil
}

func (s *memStore) OnTimeOff(ctx context.Context, employeeID uuid.UUID, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day = model.DayOf(day)
	for _, t := range s.timeOff {
		if t.EmployeeID == employeeID && t.Covers(day) {
			return true, nil
		}
	}
	return false, nil
}

// Apply mirrors the production transaction: bumped rows free their slots
// first, then every insert is checked against the still-active rows the way
// the partial unique index would check it. Nothing commits on failure.
func (s *memStore) Apply(ctx context.Context, cs ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applyCalls++
	if s.failApplies > 0 {
		s.failApplies--
		return s.failErr
	}

	bumped := make(map[uuid.UUID]bool, len(cs.MarkBumped))
	for _, id := range cs.MarkBumped {
		a, ok := s.assignments[id]
		if !ok {
			return fmt.Errorf("assignment %s not found", id)
		}
		if a.State != model.AssignmentPending {
			return fmt.Errorf("assignment %s is %s, not pending: %w", id, a.State, ErrConflict)
		}
		bumped[id] = true
	}

	for i, insert := range cs.Inserts {
		for _, existing := range s.assignments {
			if !existing.State.Active() || bumped[existing.ID] {
				continue
			}
			if existing.EmployeeID == insert.EmployeeID &&
				existing.Day.Equal(insert.Day) &&
				existing.StartMinute == insert.StartMinute {
				return fmt.Errorf("slot taken by assignment %s: %w", existing.ID, ErrConflict)
			}
		}
		for _, other := range cs.Inserts[:i] {
			if other.EmployeeID == insert.EmployeeID &&
				other.Day.Equal(insert.Day) &&
				other.StartMinute == insert.StartMinute {
				return fmt.Errorf("duplicate slot within changeset: %w", ErrConflict)
			}
		}
	}

	for id := range bumped {
		a := s.assignments[id]
		a.State = model.AssignmentBumped
		s.assignments[id] = a
	}
	for _, insert := range cs.Inserts {
		s.assignments[insert.ID] = insert
		if ev, ok := s.events[insert.EventID]; ok {
			ev.State = model.EventScheduled
			s.events[insert.EventID] = ev
		}
	}
	for _, eventID := range cs.MarkEventUnscheduled {
		if ev, ok := s.events[eventID]; ok {
			ev.State = model.EventUnscheduled
			s.events[eventID] = ev
		}
	}
	return nil
}

func (s *memStore) AcquireRunLock(ctx context.Context, window model.DateRange) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := window.String()
	if s.locks[key] {
		return nil, ErrRunLocked
	}
	s.locks[key] = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.locks, key)
	}, nil
}

func sortAssignments(assignments []model.Assignment) {
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].Day.Equal(assignments[j].Day) {
			return assignments[i].Day.Before(assignments[j].Day)
		}
		if assignments[i].StartMinute != assignments[j].StartMinute {
			return assignments[i].StartMinute < assignments[j].StartMinute
		}
		return assignments[i].ID.String() < assignments[j].ID.String()
	})
}
