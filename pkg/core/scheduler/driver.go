package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// runPhase names the driver's state-machine phases for tracing.
type runPhase string

const (
	phaseIdle      runPhase = "Idle"
	phaseSelecting runPhase = "Selecting"
	phasePlacing   runPhase = "Placing"
	phaseBumping   runPhase = "Bumping"
	phaseReporting runPhase = "Reporting"
)

// Driver orchestrates a scheduling run: it consumes unscheduled events in
// priority order and, per event, tries direct placement, then rotation
// resolution, then bumping. Partial progress is kept: a later event's
// failure never rolls back earlier placements.
type Driver struct {
	store     Store
	placer    *placer
	bumper    *Bumper
	writer    *Writer
	validator *Validator
	cfg       Config
	logger    *zap.Logger
	clock     func() time.Time
}

// DriverOptions carry the driver's optional collaborators.
type DriverOptions struct {
	// Scorer is the optional external ranking service.
	Scorer Scorer
	// ConfidenceThreshold gates scorer results (see Ranker).
	ConfidenceThreshold float64
	// BlackoutRules are recurring closed days from configuration.
	BlackoutRules []*rrule.RRule
	// BackupHook fires on rotation backup substitution.
	BackupHook BackupSubstitutionHook
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewDriver assembles the engine around a store.
func NewDriver(store Store, cfg Config, logger *zap.Logger, opts DriverOptions) *Driver {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	validator := NewValidator(store, opts.BlackoutRules)
	rotation := NewRotationResolver(store, validator, logger, opts.BackupHook)
	ranker := NewRanker(store, opts.Scorer, opts.ConfidenceThreshold, logger)
	writer := NewWriter(store, clock)

	p := &placer{
		store:         store,
		validator:     validator,
		rotation:      rotation,
		ranker:        ranker,
		logger:        logger,
		scorerEnabled: opts.Scorer != nil,
	}

	return &Driver{
		store:     store,
		placer:    p,
		bumper:    NewBumper(store, p, writer, cfg, logger),
		writer:    writer,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
	}
}

// Run executes one scheduling run over the window. The returned report
// carries business-level outcomes; a non-nil error is an infrastructure
// failure that aborted the run (already-committed placements stand).
// Concurrent runs over overlapping windows are rejected with ErrRunLocked.
func (d *Driver) Run(ctx context.Context, window model.DateRange) (*RunReport, error) {
	release, err := d.store.AcquireRunLock(ctx, window)
	if err != nil {
		return nil, err
	}
	defer release()

	report := &RunReport{Window: window}

	d.setPhase(phaseSelecting)
	events, err := d.store.UnscheduledEvents(ctx, window)
	if err != nil {
		return report, fmt.Errorf("failed to select unscheduled events: %w", err)
	}
	SortEvents(events)
	report.Considered = len(events)

	d.logger.Info("scheduler run starting",
		zap.String("window", window.String()),
		zap.Int("events", len(events)))

	for _, event := range events {
		result, err := d.placeEvent(ctx, event)
		if err != nil {
			// Infrastructure failure: stop mutating and surface it. This is
			// a different channel from Unsatisfied by design.
			d.setPhase(phaseIdle)
			return report, fmt.Errorf("run aborted at event %s: %w", event.ID, err)
		}
		d.record(report, result)
	}

	d.setPhase(phaseReporting)
	report.ScorerFallbacks = d.placer.scorerFallbacks
	d.logger.Info("scheduler run finished",
		zap.Int("placed", report.Placed),
		zap.Int("placed_via_backup", report.PlacedViaBackup),
		zap.Int("placed_via_bump", report.PlacedViaBump),
		zap.Int("unsatisfied", len(report.Unsatisfied)),
		zap.Int("scorer_fallbacks", report.ScorerFallbacks))
	d.setPhase(phaseIdle)

	return report, nil
}

// placeEvent runs the placement ladder for one event: direct placement
// across the window earliest-first, then rotation, then bumping.
func (d *Driver) placeEvent(ctx context.Context, event model.Event) (PlacementResult, error) {
	d.setPhase(phasePlacing)

	today := model.DayOf(d.clock())
	from := today
	if event.StartDate.After(from) {
		from = event.StartDate
	}
	if event.DueDate.Before(from) {
		return PlacementResult{Event: event, Outcome: OutcomeUnsatisfied, Reason: ReasonWindowPassed}, nil
	}

	days := model.DateRange{From: from, To: event.DueDate}.Days()
	startMinute := d.cfg.DayStartMinute
	minutes := event.Minutes
	if minutes <= 0 {
		minutes = 60
	}

	// Direct placement, earliest feasible date first.
	for _, day := range days {
		employee, found, err := d.placer.findDirect(ctx, event, day, startMinute, minutes, CheckOptions{})
		if err != nil {
			return PlacementResult{}, err
		}
		if !found {
			continue
		}
		assignment, reason, err := d.placeWithRetry(ctx, event, employee, day, startMinute, minutes)
		if err != nil {
			return PlacementResult{}, err
		}
		if reason != ReasonOK {
			return PlacementResult{Event: event, Outcome: OutcomeUnsatisfied, Reason: reason}, nil
		}
		return PlacementResult{Event: event, Outcome: OutcomePlaced, Reason: ReasonOK, Assignment: &assignment}, nil
	}

	// Rotation resolution with backup failover.
	for _, day := range days {
		employee, tier, found, err := d.placer.findRotation(ctx, event, day, startMinute, minutes, CheckOptions{})
		if err != nil {
			return PlacementResult{}, err
		}
		if !found {
			continue
		}
		assignment, reason, err := d.placeWithRetry(ctx, event, employee, day, startMinute, minutes)
		if err != nil {
			return PlacementResult{}, err
		}
		if reason != ReasonOK {
			return PlacementResult{Event: event, Outcome: OutcomeUnsatisfied, Reason: reason}, nil
		}
		outcome := OutcomePlaced
		if tier == TierBackup {
			outcome = OutcomePlacedViaBackup
		}
		return PlacementResult{Event: event, Outcome: outcome, Reason: ReasonOK, Assignment: &assignment}, nil
	}

	// Bumping, per date across the window.
	d.setPhase(phaseBumping)
	lastReason := ReasonNoCandidate
	for _, day := range days {
		plan, reason, err := d.bumper.AttemptBump(ctx, event, day, startMinute, minutes, today)
		if err != nil {
			return PlacementResult{}, err
		}
		if reason != ReasonOK {
			if reason == ReasonBumpDepthExceeded || (reason == ReasonDayLocked && lastReason == ReasonNoCandidate) {
				lastReason = reason
			}
			continue
		}

		if err := d.applyBumpWithRetry(ctx, event, plan, day, startMinute, minutes, today); err != nil {
			if errors.Is(err, ErrConflict) {
				return PlacementResult{Event: event, Outcome: OutcomeUnsatisfied, Reason: ReasonWriteConflict}, nil
			}
			return PlacementResult{}, err
		}

		requester := plan.Requester
		return PlacementResult{
			Event:              event,
			Outcome:            OutcomePlacedViaBump,
			Reason:             ReasonOK,
			Assignment:         &requester,
			BumpedAssignmentID: &plan.Victim.ID,
			BumpDepth:          plan.Depth,
		}, nil
	}

	return PlacementResult{Event: event, Outcome: OutcomeUnsatisfied, Reason: lastReason}, nil
}

// placeWithRetry commits a direct placement, re-validating and retrying
// exactly once on a write-time uniqueness race.
func (d *Driver) placeWithRetry(
	ctx context.Context,
	event model.Event,
	employee model.Employee,
	day time.Time,
	startMinute, minutes int,
) (model.Assignment, Reason, error) {
	assignment, err := d.writer.Place(ctx, event, employee, day, startMinute, minutes, nil)
	if err == nil {
		return assignment, ReasonOK, nil
	}
	if !errors.Is(err, ErrConflict) {
		return model.Assignment{}, "", err
	}

	d.logger.Debug("write conflict, revalidating",
		zap.String("event", event.Name),
		zap.String("employee", employee.Name),
		zap.String("day", day.Format(time.DateOnly)))

	reason, err := d.validator.Check(ctx, employee, event, day, startMinute, minutes, CheckOptions{})
	if err != nil {
		return model.Assignment{}, "", err
	}
	if reason != ReasonOK {
		return model.Assignment{}, ReasonWriteConflict, nil
	}

	assignment, err = d.writer.Place(ctx, event, employee, day, startMinute, minutes, nil)
	if err == nil {
		return assignment, ReasonOK, nil
	}
	if errors.Is(err, ErrConflict) {
		return model.Assignment{}, ReasonWriteConflict, nil
	}
	return model.Assignment{}, "", err
}

// applyBumpWithRetry commits a bump plan, rebuilding it once from fresh
// state if the commit hits a uniqueness race.
func (d *Driver) applyBumpWithRetry(
	ctx context.Context,
	event model.Event,
	plan *BumpPlan,
	day time.Time,
	startMinute, minutes int,
	today time.Time,
) error {
	err := d.writer.ApplyBump(ctx, plan)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConflict) {
		return err
	}

	d.logger.Debug("bump write conflict, replanning once",
		zap.String("event", event.Name),
		zap.String("day", day.Format(time.DateOnly)))

	fresh, reason, err := d.bumper.AttemptBump(ctx, event, day, startMinute, minutes, today)
	if err != nil {
		return err
	}
	if reason != ReasonOK {
		return ErrConflict
	}
	*plan = *fresh
	return d.writer.ApplyBump(ctx, plan)
}

func (d *Driver) record(report *RunReport, result PlacementResult) {
	report.Results = append(report.Results, result)
	switch result.Outcome {
	case OutcomePlaced:
		report.Placed++
	case OutcomePlacedViaBackup:
		report.PlacedViaBackup++
	case OutcomePlacedViaBump:
		report.PlacedViaBump++
	case OutcomeUnsatisfied:
		report.Unsatisfied = append(report.Unsatisfied, UnsatisfiedEvent{
			EventID: result.Event.ID,
			Name:    result.Event.Name,
			Reason:  result.Reason,
		})
		d.logger.Info("event unsatisfied",
			zap.String("event", result.Event.Name),
			zap.String("reason", string(result.Reason)))
	}
}

func (d *Driver) setPhase(phase runPhase) {
	d.logger.Debug("driver phase", zap.String("phase", string(phase)))
}

// SortEvents orders events the way the driver consumes them: priority
// class first, then ascending due date, then ID for a stable tie-break.
func SortEvents(events []model.Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Kind.Priority() != b.Kind.Priority() {
			return a.Kind.Priority() < b.Kind.Priority()
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID.String() < b.ID.String()
	})
}
