package model

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the role/category of a piece of field work. Kinds double as
// priority classes: lower Priority() values are scheduled first.
type EventKind string

const (
	KindJuicer         EventKind = "Juicer"
	KindDigitalSetup   EventKind = "Digital Setup"
	KindDigitalRefresh EventKind = "Digital Refresh"
	KindCore           EventKind = "Core"
	KindSupervisor     EventKind = "Supervisor"
	KindFreeosk        EventKind = "Freeosk"
	KindOther          EventKind = "Other"
)

var kindPriority = map[EventKind]int{
	KindJuicer:         1,
	KindDigitalSetup:   2,
	KindDigitalRefresh: 3,
	KindCore:           4,
	KindSupervisor:     5,
	KindFreeosk:        6,
	KindOther:          7,
}

// Priority returns the scheduling priority of the kind. Lower values are
// more important. Unknown kinds sort last.
func (k EventKind) Priority() int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return len(kindPriority) + 1
}

func (k EventKind) IsValid() bool {
	_, ok := kindPriority[k]
	return ok
}

// EventState is the lifecycle condition of an event. The engine only moves
// events between Unscheduled and Scheduled; the other states are owned by
// external collaborators.
type EventState string

const (
	EventUnscheduled EventState = "Unscheduled"
	EventScheduled   EventState = "Scheduled"
	EventSubmitted   EventState = "Submitted"
	EventCanceled    EventState = "Canceled"
)

// Event is a unit of required field work: one employee, one visit, within
// a date window.
type Event struct {
	ID            uuid.UUID
	Name          string
	Kind          EventKind
	State         EventState
	StartDate     time.Time // earliest day the event may be worked
	DueDate       time.Time // last day the event may be worked, inclusive
	Minutes       int       // estimated duration
	ParentEventID *uuid.UUID
}

// Window returns the event's valid placement window.
func (e Event) Window() DateRange {
	return DateRange{From: e.StartDate, To: e.DueDate}
}

// Tier is an employee's seniority tier, used for deterministic candidate
// ordering.
type Tier string

const (
	TierLead       Tier = "Lead"
	TierSpecialist Tier = "Specialist"
	TierGeneralist Tier = "Generalist"
)

var tierRank = map[Tier]int{
	TierLead:       1,
	TierSpecialist: 2,
	TierGeneralist: 3,
}

// Rank returns the ordering rank of the tier. Lower ranks first. Unknown
// tiers sort last.
func (t Tier) Rank() int {
	if r, ok := tierRank[t]; ok {
		return r
	}
	return len(tierRank) + 1
}

// Employee is a schedulable person. Read-only to the engine.
type Employee struct {
	ID     uuid.UUID
	Name   string
	Tier   Tier
	Roles  []EventKind
	Active bool
}

// CanWork reports whether the employee is role-eligible for the given kind.
func (e Employee) CanWork(kind EventKind) bool {
	for _, r := range e.Roles {
		if r == kind {
			return true
		}
	}
	return false
}

// AssignmentState tracks whether an assignment can still be displaced.
type AssignmentState string

const (
	// AssignmentPending was created by an auto-scheduler run and may still
	// be bumped by a higher-priority event.
	AssignmentPending AssignmentState = "pending"
	// AssignmentPosted has been finalized externally and is bump-immune.
	AssignmentPosted AssignmentState = "posted"
	// AssignmentBumped was displaced by a bump. The row is kept so
	// bump-origin references stay resolvable across restarts.
	AssignmentBumped AssignmentState = "bumped"
)

// Active reports whether the state occupies its slot (counts for
// double-booking and uniqueness).
func (s AssignmentState) Active() bool {
	return s == AssignmentPending || s == AssignmentPosted
}

// Assignment binds one event to one employee at a concrete day and time.
type Assignment struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	EmployeeID  uuid.UUID
	Day         time.Time
	StartMinute int // minutes after midnight
	Minutes     int
	State       AssignmentState
	// BumpOriginID points at the assignment this one displaced (or, for a
	// relocated assignment, the slot it was displaced from). Durable: it is
	// persisted with the record and never cleared by the engine.
	BumpOriginID *uuid.UUID
	CreatedAt    time.Time
}

// EndMinute returns the minute after midnight at which the assignment ends.
func (a Assignment) EndMinute() int {
	return a.StartMinute + a.Minutes
}

// OverlapsSlot reports whether the assignment overlaps the [start, start+minutes)
// interval on the same day. Caller is responsible for matching day and employee.
func (a Assignment) OverlapsSlot(startMinute, minutes int) bool {
	return a.StartMinute < startMinute+minutes && startMinute < a.EndMinute()
}

// RotationAssignment maps a role and rotation slot to an on-duty employee
// with an optional backup. DateRule is an RRULE string; the rotation covers
// every date the rule generates from StartDate. Administered externally,
// read-only to the engine.
type RotationAssignment struct {
	ID                uuid.UUID
	Role              EventKind
	SlotIndex         int
	DateRule          string
	StartDate         time.Time
	PrimaryEmployeeID uuid.UUID
	BackupEmployeeID  *uuid.UUID
	Active            bool
}

// LockedDay is a date closed to all scheduling mutation.
type LockedDay struct {
	Day    time.Time
	Reason string
}

// TimeOff marks an employee unavailable over an inclusive date range.
type TimeOff struct {
	ID         uuid.UUID
	EmployeeID uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
}

// Covers reports whether the time off covers the given day.
func (t TimeOff) Covers(day time.Time) bool {
	return !day.Before(t.StartDate) && !day.After(t.EndDate)
}

// DateRange is an inclusive range of days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether day falls inside the range, bounds inclusive.
func (r DateRange) Contains(day time.Time) bool {
	return !day.Before(r.From) && !day.After(r.To)
}

// Days returns every day in the range in order.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.From; !d.After(r.To); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return r.From.Format(time.DateOnly) + ".." + r.To.Format(time.DateOnly)
}

// Date builds a normalized UTC day value. All engine dates are stored at
// UTC midnight so they compare with Equal/Before/After.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DayOf truncates a timestamp to its UTC day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the week containing day, used for
// weekly workload counters.
func WeekStart(day time.Time) time.Time {
	day = DayOf(day)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
