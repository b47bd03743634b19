package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/retailworks/field-scheduler/internal/config"
	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
	"github.com/retailworks/field-scheduler/pkg/metrics"
)

// blackoutEpoch anchors configured blackout rules so occurrence expansion
// is deterministic regardless of process start time.
var blackoutEpoch = model.Date(2020, 1, 1)

// RunSchedulerResult contains the run outcome and timing.
type RunSchedulerResult struct {
	Report   *scheduler.RunReport
	Duration time.Duration
}

// RunScheduler executes one auto-scheduler run over the window: it builds
// the engine from configuration, runs it under the store's run lock, and
// publishes run metrics. Business failures live in the report; the
// returned error is reserved for infrastructure failures and an
// already-held run lock.
func RunScheduler(
	ctx context.Context,
	store scheduler.Store,
	scorer scheduler.Scorer,
	cfg *config.Config,
	logger *zap.Logger,
	window model.DateRange,
) (*RunSchedulerResult, error) {
	engineCfg := scheduler.DefaultConfig()
	if cfg.Scheduler.MaxBumpDepth > 0 {
		engineCfg.MaxBumpDepth = cfg.Scheduler.MaxBumpDepth
	}
	engineCfg.DayStartMinute = cfg.DayStartMinute()

	blackout, err := parseBlackoutRules(cfg.Scheduler.BlackoutRules)
	if err != nil {
		return nil, err
	}

	if !cfg.Scorer.Enabled {
		scorer = nil
	}

	driver := scheduler.NewDriver(store, engineCfg, logger, scheduler.DriverOptions{
		Scorer:              scorer,
		ConfidenceThreshold: cfg.Scorer.ConfidenceThreshold,
		BlackoutRules:       blackout,
		BackupHook: func(role model.EventKind, day time.Time, primary, backup model.Employee) {
			metrics.BackupSubstitutions.Inc()
		},
	})

	start := time.Now()
	report, err := driver.Run(ctx, window)
	duration := time.Since(start)

	switch {
	case errors.Is(err, scheduler.ErrRunLocked):
		metrics.RunsTotal.WithLabelValues("locked").Inc()
		return nil, err
	case err != nil:
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		publishReport(report, duration)
		return &RunSchedulerResult{Report: report, Duration: duration}, err
	}

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	publishReport(report, duration)

	return &RunSchedulerResult{Report: report, Duration: duration}, nil
}

func publishReport(report *scheduler.RunReport, duration time.Duration) {
	if report == nil {
		return
	}
	metrics.RunDuration.Observe(duration.Seconds())
	metrics.EventsPlaced.WithLabelValues(string(scheduler.OutcomePlaced)).Add(float64(report.Placed))
	metrics.EventsPlaced.WithLabelValues(string(scheduler.OutcomePlacedViaBackup)).Add(float64(report.PlacedViaBackup))
	metrics.EventsPlaced.WithLabelValues(string(scheduler.OutcomePlacedViaBump)).Add(float64(report.PlacedViaBump))
	for _, u := range report.Unsatisfied {
		metrics.EventsUnsatisfied.WithLabelValues(string(u.Reason)).Inc()
	}
	for _, r := range report.Results {
		if r.Outcome == scheduler.OutcomePlacedViaBump {
			metrics.BumpsPerformed.Inc()
			metrics.BumpDepth.Observe(float64(r.BumpDepth))
		}
	}
	metrics.ScorerFallbacks.Add(float64(report.ScorerFallbacks))
}

func parseBlackoutRules(rules []string) ([]*rrule.RRule, error) {
	parsed := make([]*rrule.RRule, 0, len(rules))
	for i, raw := range rules {
		rule, err := rrule.StrToRRule(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid blackout rule [%d]: %w", i, err)
		}
		rule.DTStart(blackoutEpoch)
		parsed = append(parsed, rule)
	}
	return parsed, nil
}
