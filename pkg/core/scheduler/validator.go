package scheduler

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// Validator is the pure eligibility predicate layer: given an employee, an
// event, and a slot it answers whether the assignment is legal, and why
// not. It reads state and never mutates it.
type Validator struct {
	store Store
	// blackoutRules are recurring closed days from configuration, checked
	// alongside the locked_day table.
	blackoutRules []*rrule.RRule
}

// CheckOptions adjust a single eligibility check.
type CheckOptions struct {
	// AllowRoleMismatch skips the role-eligibility check. Set only by
	// explicit operator override, never during normal placement.
	AllowRoleMismatch bool
	// IgnoreAssignments are assignment IDs being actively replaced in the
	// same transaction; they do not count as double-bookings.
	IgnoreAssignments map[uuid.UUID]bool
	// PlannedAssignments are assignments an in-flight bump plan intends to
	// write. They count as bookings even though they are not committed yet.
	PlannedAssignments []model.Assignment
}

// NewValidator creates a Validator. blackoutRules may be nil.
func NewValidator(store Store, blackoutRules []*rrule.RRule) *Validator {
	return &Validator{store: store, blackoutRules: blackoutRules}
}

// Check runs the eligibility checks in order and short-circuits on the
// first failure. ReasonOK means the assignment is legal. A non-nil error
// means the store failed, not that the slot is ineligible.
func (v *Validator) Check(
	ctx context.Context,
	employee model.Employee,
	event model.Event,
	day time.Time,
	startMinute, minutes int,
	opts CheckOptions,
) (Reason, error) {
	day = model.DayOf(day)

	// (a) day not locked
	locked, err := v.DayLocked(ctx, day)
	if err != nil {
		return "", err
	}
	if locked {
		return ReasonDayLocked, nil
	}

	// (b) date within the event's window, due date inclusive
	if !event.Window().Contains(day) {
		return ReasonOutsideWindow, nil
	}

	// (c) role eligibility, unless explicitly overridden
	if !employee.Active {
		return ReasonInactive, nil
	}
	if !opts.AllowRoleMismatch && !employee.CanWork(event.Kind) {
		return ReasonRoleMismatch, nil
	}

	// (d) no overlapping assignment for the employee on that slot
	booked, err := v.slotBooked(ctx, employee.ID, day, startMinute, minutes, opts)
	if err != nil {
		return "", err
	}
	if booked {
		return ReasonDoubleBooked, nil
	}

	// (e) no time off covering the day
	off, err := v.store.OnTimeOff(ctx, employee.ID, day)
	if err != nil {
		return "", fmt.Errorf("failed to check time off: %w", err)
	}
	if off {
		return ReasonTimeOff, nil
	}

	// (f) supervisor events need their paired core event scheduled on or
	// before the candidate day
	if event.Kind == model.KindSupervisor {
		ok, err := v.coreScheduledBy(ctx, event, day, opts)
		if err != nil {
			return "", err
		}
		if !ok {
			return ReasonCoreUnscheduled, nil
		}
	}

	return ReasonOK, nil
}

// DayLocked reports whether the day is closed to all scheduling mutation,
// either by a locked_day record or by a configured blackout rule.
func (v *Validator) DayLocked(ctx context.Context, day time.Time) (bool, error) {
	day = model.DayOf(day)

	lock, err := v.store.LockedDay(ctx, day)
	if err != nil {
		return false, fmt.Errorf("failed to check locked day: %w", err)
	}
	if lock != nil {
		return true, nil
	}

	for _, rule := range v.blackoutRules {
		hits := rule.Between(day, day.AddDate(0, 0, 1).Add(-time.Second), true)
		if len(hits) > 0 {
			return true, nil
		}
	}

	return false, nil
}

func (v *Validator) slotBooked(
	ctx context.Context,
	employeeID uuid.UUID,
	day time.Time,
	startMinute, minutes int,
	opts CheckOptions,
) (bool, error) {
	existing, err := v.store.EmployeeAssignments(ctx, employeeID, day)
	if err != nil {
		return false, fmt.Errorf("failed to query employee assignments: %w", err)
	}

	for _, a := range existing {
		if opts.IgnoreAssignments[a.ID] {
			continue
		}
		if a.OverlapsSlot(startMinute, minutes) {
			return true, nil
		}
	}

	for _, a := range opts.PlannedAssignments {
		if a.EmployeeID != employeeID || !a.Day.Equal(day) {
			continue
		}
		if a.OverlapsSlot(startMinute, minutes) {
			return true, nil
		}
	}

	return false, nil
}

// coreScheduledBy resolves the supervisor event's paired core event and
// reports whether it has an active assignment dated on or before day. The
// parent-event reference wins; a name-token heuristic is the fallback.
func (v *Validator) coreScheduledBy(ctx context.Context, event model.Event, day time.Time, opts CheckOptions) (bool, error) {
	var core model.Event
	switch {
	case event.ParentEventID != nil:
		ev, err := v.store.EventByID(ctx, *event.ParentEventID)
		if err != nil {
			return false, fmt.Errorf("failed to resolve parent event: %w", err)
		}
		core = ev
	default:
		token := PairingToken(event.Name)
		if token == "" {
			return false, nil
		}
		ev, found, err := v.store.FindCoreEventByToken(ctx, token)
		if err != nil {
			return false, fmt.Errorf("failed to resolve paired core event: %w", err)
		}
		if !found {
			return false, nil
		}
		core = ev
	}

	assignments, err := v.store.EventAssignments(ctx, core.ID)
	if err != nil {
		return false, fmt.Errorf("failed to query core event assignments: %w", err)
	}
	for _, a := range assignments {
		if opts.IgnoreAssignments[a.ID] {
			continue
		}
		if !a.Day.After(day) {
			return true, nil
		}
	}
	for _, a := range opts.PlannedAssignments {
		if a.EventID == core.ID && !a.Day.After(day) {
			return true, nil
		}
	}

	return false, nil
}

// PairingToken extracts the numeric token that links a Supervisor event to
// its Core event when no parent reference exists. It is the last run of
// four or more digits in the event name.
func PairingToken(name string) string {
	var token string
	start := -1
	for i, r := range name + "\x00" {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if run := name[start:i]; len(run) >= 4 {
				token = run
			}
			start = -1
		}
	}
	return token
}
