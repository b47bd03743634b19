package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

// placer bundles the direct and rotation placement attempts shared by the
// driver and the bumping engine. It tracks scorer fallbacks across a run so
// the report can surface them.
type placer struct {
	store           Store
	validator       *Validator
	rotation        *RotationResolver
	ranker          *Ranker
	logger          *zap.Logger
	scorerEnabled   bool
	scorerFallbacks int
}

// findDirect ranks the role's eligible employees for the slot and returns
// the first one that passes validation. found is false when every candidate
// is ineligible.
func (p *placer) findDirect(
	ctx context.Context,
	event model.Event,
	day time.Time,
	startMinute, minutes int,
	opts CheckOptions,
) (model.Employee, bool, error) {
	candidates, err := p.store.EmployeesForRole(ctx, event.Kind)
	if err != nil {
		return model.Employee{}, false, fmt.Errorf("failed to query employees: %w", err)
	}
	if len(candidates) == 0 {
		return model.Employee{}, false, nil
	}

	outcome, err := p.ranker.Rank(ctx, candidates, event, day)
	if err != nil {
		return model.Employee{}, false, err
	}
	if p.scorerEnabled && outcome.Source == RankSourceFallback {
		p.scorerFallbacks++
	}

	for _, candidate := range outcome.Order {
		reason, err := p.validator.Check(ctx, candidate, event, day, startMinute, minutes, opts)
		if err != nil {
			return model.Employee{}, false, err
		}
		if reason == ReasonOK {
			return candidate, true, nil
		}
		p.logger.Debug("candidate rejected",
			zap.String("event", event.Name),
			zap.String("employee", candidate.Name),
			zap.String("day", day.Format(time.DateOnly)),
			zap.String("reason", string(reason)))
	}

	return model.Employee{}, false, nil
}

// findRotation resolves the role rotation for the slot, primary first with
// backup failover.
func (p *placer) findRotation(
	ctx context.Context,
	event model.Event,
	day time.Time,
	startMinute, minutes int,
	opts CheckOptions,
) (model.Employee, RotationTier, bool, error) {
	employee, tier, reason, err := p.rotation.ResolveWithBackup(ctx, event, day, startMinute, minutes, opts)
	if err != nil {
		return model.Employee{}, "", false, err
	}
	if reason != ReasonOK {
		return model.Employee{}, "", false, nil
	}
	return employee, tier, true, nil
}
