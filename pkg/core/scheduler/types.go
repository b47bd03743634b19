package scheduler

import (
	"errors"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// Reason explains why a placement was rejected (or accepted). Ineligibility
// is expected behavior, so it travels as a value rather than an error.
type Reason string

const (
	ReasonOK              Reason = "OK"
	ReasonDayLocked       Reason = "DayLocked"
	ReasonOutsideWindow   Reason = "OutsideWindow"
	ReasonRoleMismatch    Reason = "RoleMismatch"
	ReasonDoubleBooked    Reason = "DoubleBooked"
	ReasonTimeOff         Reason = "TimeOff"
	ReasonCoreUnscheduled Reason = "CoreUnscheduled"
	ReasonInactive        Reason = "Inactive"

	// ReasonNoRotation means no rotation row covers the role and date.
	ReasonNoRotation Reason = "NoRotation"
	// ReasonRotationExhausted means primary and backup were both ineligible.
	ReasonRotationExhausted Reason = "RotationExhausted"

	// ReasonNoCandidate means no employee, rotation, or bump could satisfy
	// the event anywhere in its window.
	ReasonNoCandidate Reason = "NoCandidate"
	// ReasonBumpDepthExceeded means a displacement chain hit the configured
	// recursion bound.
	ReasonBumpDepthExceeded Reason = "BumpDepthExceeded"
	// ReasonWriteConflict means a uniqueness race recurred after the single
	// permitted retry.
	ReasonWriteConflict Reason = "WriteConflict"
	// ReasonWindowPassed means the event's due date is already behind today.
	ReasonWindowPassed Reason = "WindowPassed"
)

// Outcome is the terminal result of one event's placement attempt.
type Outcome string

const (
	OutcomePlaced          Outcome = "Placed"
	OutcomePlacedViaBackup Outcome = "PlacedViaBackup"
	OutcomePlacedViaBump   Outcome = "PlacedViaBump"
	OutcomeUnsatisfied     Outcome = "Unsatisfied"
)

// RotationTier identifies which rotation tier satisfied a resolution.
type RotationTier string

const (
	TierPrimary RotationTier = "Primary"
	TierBackup  RotationTier = "Backup"
)

var (
	// ErrConflict is returned by Store.Apply when the write-time uniqueness
	// check fails. The driver revalidates and retries once.
	ErrConflict = errors.New("assignment conflicts with an existing assignment")

	// ErrRunLocked is returned when another run already holds the lock for
	// an overlapping date range.
	ErrRunLocked = errors.New("a scheduler run is already in progress for this date range")
)

// Config carries the engine's tunables.
type Config struct {
	// MaxBumpDepth bounds displacement chains. A bump that would exceed it
	// reports ReasonBumpDepthExceeded instead of recursing further.
	MaxBumpDepth int

	// DayStartMinute is the minute after midnight at which placements start
	// when an event carries no explicit time.
	DayStartMinute int

	// AllowRoleMismatch lets a caller explicitly override role checks, for
	// operator-forced placements. Never set during normal runs.
	AllowRoleMismatch bool
}

// DefaultConfig returns the engine defaults used when config is absent.
func DefaultConfig() Config {
	return Config{
		MaxBumpDepth:   3,
		DayStartMinute: 9 * 60,
	}
}

// PlacementResult describes how one event ended up after a run.
type PlacementResult struct {
	Event      model.Event
	Outcome    Outcome
	Reason     Reason
	Assignment *model.Assignment
	// BumpedAssignmentID is set when the placement displaced another
	// assignment; it references the superseded record.
	BumpedAssignmentID *uuid.UUID
	BumpDepth          int
}

// UnsatisfiedEvent is the per-event failure entry of a run report.
type UnsatisfiedEvent struct {
	EventID uuid.UUID
	Name    string
	Reason  Reason
}

// RunReport is the structured result of a scheduler run. Business-level
// failures live in Unsatisfied; infrastructure failures are returned as
// errors from Run and never appear here.
type RunReport struct {
	Window          model.DateRange
	Considered      int
	Placed          int
	PlacedViaBackup int
	PlacedViaBump   int
	Unsatisfied     []UnsatisfiedEvent
	ScorerFallbacks int
	Results         []PlacementResult
}

// Satisfied reports whether every considered event found a home.
func (r *RunReport) Satisfied() bool {
	return len(r.Unsatisfied) == 0
}
