package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// BackupSubstitutionHook runs whenever a rotation resolves to its backup
// tier. Escalation policy lives with the caller; the default hook only
// logs.
type BackupSubstitutionHook func(role model.EventKind, day time.Time, primary, backup model.Employee)

// RotationResolver resolves a role's rotation slot for a date to a concrete
// employee, trying the primary first and failing over to the backup. The
// tier used is always reported: a silent backup substitution hides a
// data-quality problem.
type RotationResolver struct {
	store     Store
	validator *Validator
	logger    *zap.Logger
	onBackup  BackupSubstitutionHook
}

// NewRotationResolver creates a RotationResolver. hook may be nil.
func NewRotationResolver(store Store, validator *Validator, logger *zap.Logger, hook BackupSubstitutionHook) *RotationResolver {
	return &RotationResolver{
		store:     store,
		validator: validator,
		logger:    logger,
		onBackup:  hook,
	}
}

// ResolvePrimary returns the primary employee of the rotation slot covering
// the role and date, without eligibility checks. ReasonNoRotation when no
// slot covers the date.
func (r *RotationResolver) ResolvePrimary(ctx context.Context, role model.EventKind, day time.Time) (model.Employee, Reason, error) {
	rotation, found, err := r.coveringRotation(ctx, role, day)
	if err != nil {
		return model.Employee{}, "", err
	}
	if !found {
		return model.Employee{}, ReasonNoRotation, nil
	}

	primary, err := r.store.EmployeeByID(ctx, rotation.PrimaryEmployeeID)
	if err != nil {
		return model.Employee{}, "", fmt.Errorf("failed to load rotation primary: %w", err)
	}
	return primary, ReasonOK, nil
}

// ResolveWithBackup resolves the rotation slot for the role and date to an
// eligible employee for the given event slot, reporting which tier was
// used. Fails only when the slot is undefined or both tiers are ineligible.
func (r *RotationResolver) ResolveWithBackup(
	ctx context.Context,
	event model.Event,
	day time.Time,
	startMinute, minutes int,
	opts CheckOptions,
) (model.Employee, RotationTier, Reason, error) {
	rotation, found, err := r.coveringRotation(ctx, event.Kind, day)
	if err != nil {
		return model.Employee{}, "", "", err
	}
	if !found {
		return model.Employee{}, "", ReasonNoRotation, nil
	}

	// The rotation row is the role authority: an administrator put these
	// employees on duty for this role, so the role-set check is skipped.
	opts.AllowRoleMismatch = true

	primary, err := r.store.EmployeeByID(ctx, rotation.PrimaryEmployeeID)
	if err != nil {
		return model.Employee{}, "", "", fmt.Errorf("failed to load rotation primary: %w", err)
	}

	reason, err := r.validator.Check(ctx, primary, event, day, startMinute, minutes, opts)
	if err != nil {
		return model.Employee{}, "", "", err
	}
	if reason == ReasonOK {
		return primary, TierPrimary, ReasonOK, nil
	}
	r.logger.Debug("rotation primary ineligible",
		zap.String("role", string(event.Kind)),
		zap.String("day", day.Format(time.DateOnly)),
		zap.String("employee", primary.Name),
		zap.String("reason", string(reason)))

	if rotation.BackupEmployeeID == nil {
		return model.Employee{}, "", ReasonRotationExhausted, nil
	}

	backup, err := r.store.EmployeeByID(ctx, *rotation.BackupEmployeeID)
	if err != nil {
		return model.Employee{}, "", "", fmt.Errorf("failed to load rotation backup: %w", err)
	}

	reason, err = r.validator.Check(ctx, backup, event, day, startMinute, minutes, opts)
	if err != nil {
		return model.Employee{}, "", "", err
	}
	if reason != ReasonOK {
		return model.Employee{}, "", ReasonRotationExhausted, nil
	}

	r.logger.Warn("rotation backup substitution",
		zap.String("role", string(event.Kind)),
		zap.String("day", day.Format(time.DateOnly)),
		zap.String("primary", primary.Name),
		zap.String("backup", backup.Name))
	if r.onBackup != nil {
		r.onBackup(event.Kind, day, primary, backup)
	}

	return backup, TierBackup, ReasonOK, nil
}

// coveringRotation finds the active rotation row covering the role and
// date. When several rows cover the same date the lowest slot index wins,
// so resolution is deterministic for identical inputs.
func (r *RotationResolver) coveringRotation(ctx context.Context, role model.EventKind, day time.Time) (model.RotationAssignment, bool, error) {
	day = model.DayOf(day)

	rotations, err := r.store.RotationsForRole(ctx, role)
	if err != nil {
		return model.RotationAssignment{}, false, fmt.Errorf("failed to query rotations: %w", err)
	}

	sort.Slice(rotations, func(i, j int) bool {
		return rotations[i].SlotIndex < rotations[j].SlotIndex
	})

	for _, rotation := range rotations {
		if !rotation.Active {
			continue
		}
		covers, err := rotationCovers(rotation, day)
		if err != nil {
			return model.RotationAssignment{}, false, fmt.Errorf("rotation %s has invalid date rule: %w", rotation.ID, err)
		}
		if covers {
			return rotation, true, nil
		}
	}

	return model.RotationAssignment{}, false, nil
}

// rotationCovers reports whether the rotation's date rule generates day.
func rotationCovers(rotation model.RotationAssignment, day time.Time) (bool, error) {
	rule, err := rrule.StrToRRule(rotation.DateRule)
	if err != nil {
		return false, err
	}
	rule.DTStart(model.DayOf(rotation.StartDate))

	hits := rule.Between(day, day.AddDate(0, 0, 1).Add(-time.Second), true)
	return len(hits) > 0, nil
}
