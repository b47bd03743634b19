package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// Bumper displaces lower-priority pending assignments when a
// higher-priority event cannot be placed any other way. A bump chain is
// planned fully in memory first and committed as one transaction, so a
// failed chain leaves no trace. Posted assignments and locked days are
// never touched, and chains are bounded by Config.MaxBumpDepth.
type Bumper struct {
	store  Store
	placer *placer
	writer *Writer
	cfg    Config
	logger *zap.Logger
}

// NewBumper creates a Bumper sharing the driver's placer and writer.
func NewBumper(store Store, placer *placer, writer *Writer, cfg Config, logger *zap.Logger) *Bumper {
	return &Bumper{store: store, placer: placer, writer: writer, cfg: cfg, logger: logger}
}

// BumpPlan is a fully-resolved displacement chain ready to commit.
type BumpPlan struct {
	ChangeSet ChangeSet
	// Requester is the new assignment for the event that triggered the
	// bump. Its BumpOriginID references the assignment it displaced.
	Requester model.Assignment
	// Victim is the assignment the requester displaced.
	Victim model.Assignment
	// Depth is the number of displaced assignments in the chain.
	Depth int
}

// AttemptBump tries to free a slot for the event on the given day by
// displacing a lower-priority pending assignment and relocating its event
// elsewhere in its window. Every displaced event in the resulting plan has
// a new home: nothing is silently dropped.
func (b *Bumper) AttemptBump(
	ctx context.Context,
	event model.Event,
	day time.Time,
	startMinute, minutes int,
	today time.Time,
) (*BumpPlan, Reason, error) {
	// A bump is a mutation like any other: locked days stay untouched.
	locked, err := b.placer.validator.DayLocked(ctx, day)
	if err != nil {
		return nil, "", err
	}
	if locked {
		return nil, ReasonDayLocked, nil
	}

	plan := &bumpPlanState{}
	requester, victim, reason, err := b.attempt(ctx, event, day, startMinute, minutes, today, 1, plan)
	if err != nil {
		return nil, "", err
	}
	if reason != ReasonOK {
		return nil, reason, nil
	}

	b.logger.Info("bump planned",
		zap.String("event", event.Name),
		zap.String("day", day.Format(time.DateOnly)),
		zap.String("bumped_assignment", victim.ID.String()),
		zap.Int("depth", plan.depth))

	return &BumpPlan{
		ChangeSet: plan.changeSet,
		Requester: requester,
		Victim:    victim,
		Depth:     plan.depth,
	}, ReasonOK, nil
}

// bumpPlanState accumulates a chain's mutations and supports rollback when
// a candidate branch dead-ends.
type bumpPlanState struct {
	changeSet ChangeSet
	depth     int
}

func (p *bumpPlanState) snapshot() (int, int, int) {
	return len(p.changeSet.Inserts), len(p.changeSet.MarkBumped), p.depth
}

func (p *bumpPlanState) rollback(inserts, bumped, depth int) {
	p.changeSet.Inserts = p.changeSet.Inserts[:inserts]
	p.changeSet.MarkBumped = p.changeSet.MarkBumped[:bumped]
	p.depth = depth
}

// opts exposes the in-flight plan to the validator: bumped rows no longer
// occupy their slots, planned inserts already do.
func (p *bumpPlanState) opts() CheckOptions {
	ignore := make(map[uuid.UUID]bool, len(p.changeSet.MarkBumped))
	for _, id := range p.changeSet.MarkBumped {
		ignore[id] = true
	}
	return CheckOptions{
		IgnoreAssignments:  ignore,
		PlannedAssignments: p.changeSet.Inserts,
	}
}

// attempt finds a displaceable assignment on day whose employee can serve
// the requesting event, and relocates the displaced event. It appends the
// requester's new assignment to the plan and returns it with the victim.
func (b *Bumper) attempt(
	ctx context.Context,
	event model.Event,
	day time.Time,
	startMinute, minutes int,
	today time.Time,
	depth int,
	plan *bumpPlanState,
) (model.Assignment, model.Assignment, Reason, error) {
	if depth > b.cfg.MaxBumpDepth {
		return model.Assignment{}, model.Assignment{}, ReasonBumpDepthExceeded, nil
	}

	victims, err := b.displaceable(ctx, event, day, plan)
	if err != nil {
		return model.Assignment{}, model.Assignment{}, "", err
	}
	if len(victims) == 0 {
		return model.Assignment{}, model.Assignment{}, ReasonNoCandidate, nil
	}

	depthExceeded := false
	for _, victim := range victims {
		employee, err := b.store.EmployeeByID(ctx, victim.assignment.EmployeeID)
		if err != nil {
			return model.Assignment{}, model.Assignment{}, "", fmt.Errorf("failed to load bump victim employee: %w", err)
		}

		// The displaced employee must be usable by the requesting event;
		// otherwise displacing them frees nothing.
		opts := plan.opts()
		opts.IgnoreAssignments[victim.assignment.ID] = true
		reason, err := b.placer.validator.Check(ctx, employee, event, day, startMinute, minutes, opts)
		if err != nil {
			return model.Assignment{}, model.Assignment{}, "", err
		}
		if reason != ReasonOK {
			continue
		}

		inserts, bumped, prevDepth := plan.snapshot()
		plan.changeSet.MarkBumped = append(plan.changeSet.MarkBumped, victim.assignment.ID)
		if depth > plan.depth {
			plan.depth = depth
		}

		requester := b.writer.newAssignment(event.ID, employee.ID, day, startMinute, minutes, &victim.assignment.ID)
		plan.changeSet.Inserts = append(plan.changeSet.Inserts, requester)

		relocated, relocReason, err := b.relocate(ctx, victim.event, victim.assignment, today, depth, plan)
		if err != nil {
			return model.Assignment{}, model.Assignment{}, "", err
		}
		if relocated {
			return requester, victim.assignment, ReasonOK, nil
		}
		if relocReason == ReasonBumpDepthExceeded {
			depthExceeded = true
		}

		b.logger.Debug("bump candidate rejected, no new home for displaced event",
			zap.String("event", event.Name),
			zap.String("displaced_event", victim.event.Name),
			zap.String("day", day.Format(time.DateOnly)))
		plan.rollback(inserts, bumped, prevDepth)
	}

	if depthExceeded {
		return model.Assignment{}, model.Assignment{}, ReasonBumpDepthExceeded, nil
	}
	return model.Assignment{}, model.Assignment{}, ReasonNoCandidate, nil
}

// relocate finds a new date and employee for a displaced event, searching
// forward from today within its remaining window: the displaced employee
// first, then direct placement, then rotation, then — budget permitting — a
// deeper bump. On success the relocated assignment is in the plan.
func (b *Bumper) relocate(
	ctx context.Context,
	event model.Event,
	old model.Assignment,
	today time.Time,
	depth int,
	plan *bumpPlanState,
) (bool, Reason, error) {
	from := model.DayOf(today)
	if event.StartDate.After(from) {
		from = event.StartDate
	}
	if event.DueDate.Before(from) {
		return false, ReasonWindowPassed, nil
	}

	days := model.DateRange{From: from, To: event.DueDate}.Days()

	for _, newDay := range days {
		// Keep the same employee when possible; a relocation that also
		// swaps people is harder to explain to the field team.
		previous, err := b.store.EmployeeByID(ctx, old.EmployeeID)
		if err != nil {
			return false, "", fmt.Errorf("failed to load displaced employee: %w", err)
		}
		reason, err := b.placer.validator.Check(ctx, previous, event, newDay, old.StartMinute, old.Minutes, plan.opts())
		if err != nil {
			return false, "", err
		}
		if reason == ReasonOK {
			relocated := b.writer.newAssignment(event.ID, previous.ID, newDay, old.StartMinute, old.Minutes, &old.ID)
			plan.changeSet.Inserts = append(plan.changeSet.Inserts, relocated)
			return true, ReasonOK, nil
		}

		employee, found, err := b.placer.findDirect(ctx, event, newDay, old.StartMinute, old.Minutes, plan.opts())
		if err != nil {
			return false, "", err
		}
		if !found {
			employee, _, found, err = b.placer.findRotation(ctx, event, newDay, old.StartMinute, old.Minutes, plan.opts())
			if err != nil {
				return false, "", err
			}
		}
		if found {
			relocated := b.writer.newAssignment(event.ID, employee.ID, newDay, old.StartMinute, old.Minutes, &old.ID)
			plan.changeSet.Inserts = append(plan.changeSet.Inserts, relocated)
			return true, ReasonOK, nil
		}
	}

	// No free slot anywhere in the window; displace something even lower
	// priority if the chain budget allows.
	sawDepthExceeded := false
	for _, newDay := range days {
		_, _, reason, err := b.attempt(ctx, event, newDay, old.StartMinute, old.Minutes, today, depth+1, plan)
		if err != nil {
			return false, "", err
		}
		if reason == ReasonOK {
			return true, ReasonOK, nil
		}
		if reason == ReasonBumpDepthExceeded {
			sawDepthExceeded = true
		}
	}

	if sawDepthExceeded {
		return false, ReasonBumpDepthExceeded, nil
	}
	return false, ReasonNoCandidate, nil
}

type bumpVictim struct {
	assignment model.Assignment
	event      model.Event
}

// displaceable enumerates pending assignments on the day with strictly
// lower event priority, ordered least-important first, then most remaining
// slack, then ID.
func (b *Bumper) displaceable(ctx context.Context, event model.Event, day time.Time, plan *bumpPlanState) ([]bumpVictim, error) {
	assignments, err := b.store.ActiveAssignments(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}

	planned := make(map[uuid.UUID]bool, len(plan.changeSet.MarkBumped))
	for _, id := range plan.changeSet.MarkBumped {
		planned[id] = true
	}

	var victims []bumpVictim
	for _, a := range assignments {
		if a.State != model.AssignmentPending || planned[a.ID] {
			continue
		}
		victimEvent, err := b.store.EventByID(ctx, a.EventID)
		if err != nil {
			return nil, fmt.Errorf("failed to load event for assignment %s: %w", a.ID, err)
		}
		if victimEvent.Kind.Priority() <= event.Kind.Priority() {
			continue
		}
		victims = append(victims, bumpVictim{assignment: a, event: victimEvent})
	}

	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if a.event.Kind.Priority() != b.event.Kind.Priority() {
			return a.event.Kind.Priority() > b.event.Kind.Priority()
		}
		// More slack until the due date means easier to reschedule.
		if !a.event.DueDate.Equal(b.event.DueDate) {
			return a.event.DueDate.After(b.event.DueDate)
		}
		return a.assignment.ID.String() < b.assignment.ID.String()
	})

	return victims, nil
}
