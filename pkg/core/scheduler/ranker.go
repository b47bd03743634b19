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

// Scorer is the optional external ranking capability. Implementations must
// respect the context deadline; any failure mode is recoverable because the
// ranker always carries a deterministic fallback.
type Scorer interface {
	Score(ctx context.Context, event model.Event, day time.Time, candidates []model.Employee) ([]CandidateScore, error)
}

// CandidateScore is one scored candidate from the external scorer.
type CandidateScore struct {
	EmployeeID uuid.UUID
	Score      float64
	Confidence float64
}

// RankSource records which ordering a Rank call used.
type RankSource string

const (
	RankSourceScorer   RankSource = "scorer"
	RankSourceFallback RankSource = "fallback"
)

// RankOutcome is the ordered candidate list plus the audit trail of how it
// was produced.
type RankOutcome struct {
	Order []model.Employee
	// Source is which ordering was used. Scored and fallback orders are
	// never blended: a partially-scored list is discarded wholesale.
	Source RankSource
	// FallbackReason is set when Source is fallback and a scorer was
	// configured but unusable for this call.
	FallbackReason string
}

// Ranker orders eligible employees for a slot. The deterministic fallback
// order is: previously-bumped employee for the event first, then tier, then
// ascending current-week workload, then ID.
type Ranker struct {
	store Store
	// scorer is optional; nil means fallback-only.
	scorer Scorer
	// confidenceThreshold is the minimum per-candidate confidence below
	// which a scored result is discarded.
	confidenceThreshold float64
	logger              *zap.Logger
}

// NewRanker creates a Ranker. scorer may be nil.
func NewRanker(store Store, scorer Scorer, confidenceThreshold float64, logger *zap.Logger) *Ranker {
	return &Ranker{
		store:               store,
		scorer:              scorer,
		confidenceThreshold: confidenceThreshold,
		logger:              logger,
	}
}

// Rank orders candidates for the event and day. The returned outcome
// records candidate count and source for observability; every invocation
// is traced.
func (r *Ranker) Rank(ctx context.Context, candidates []model.Employee, event model.Event, day time.Time) (RankOutcome, error) {
	fallback, err := r.fallbackOrder(ctx, candidates, event, day)
	if err != nil {
		return RankOutcome{}, err
	}

	outcome := RankOutcome{Order: fallback, Source: RankSourceFallback}

	if r.scorer != nil && len(candidates) > 0 {
		scored, reason := r.scoredOrder(ctx, candidates, event, day)
		if reason == "" {
			outcome = RankOutcome{Order: scored, Source: RankSourceScorer}
		} else {
			outcome.FallbackReason = reason
		}
	}

	r.logger.Debug("ranked candidates",
		zap.String("event", event.Name),
		zap.String("day", day.Format(time.DateOnly)),
		zap.Int("candidates", len(candidates)),
		zap.String("source", string(outcome.Source)),
		zap.String("fallback_reason", outcome.FallbackReason))

	return outcome, nil
}

// fallbackOrder computes the deterministic ordering. It never consults the
// scorer, so running it twice over the same state yields identical output.
func (r *Ranker) fallbackOrder(ctx context.Context, candidates []model.Employee, event model.Event, day time.Time) ([]model.Employee, error) {
	var preferred uuid.UUID
	last, err := r.store.LastBumpedAssignment(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bump history: %w", err)
	}
	if last != nil {
		preferred = last.EmployeeID
	}

	weekStart := model.WeekStart(day)
	loads := make(map[uuid.UUID]int, len(candidates))
	for _, c := range candidates {
		load, err := r.store.WeekLoad(ctx, c.ID, weekStart)
		if err != nil {
			return nil, fmt.Errorf("failed to query week load: %w", err)
		}
		loads[c.ID] = load
	}

	ordered := make([]model.Employee, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		// An employee this event was bumped off gets first refusal.
		if (a.ID == preferred) != (b.ID == preferred) {
			return a.ID == preferred
		}
		if a.Tier.Rank() != b.Tier.Rank() {
			return a.Tier.Rank() < b.Tier.Rank()
		}
		if loads[a.ID] != loads[b.ID] {
			return loads[a.ID] < loads[b.ID]
		}
		return a.ID.String() < b.ID.String()
	})

	return ordered, nil
}

// scoredOrder asks the external scorer for an ordering. A non-empty reason
// means the scored result was discarded and the caller must fall back.
func (r *Ranker) scoredOrder(ctx context.Context, candidates []model.Employee, event model.Event, day time.Time) ([]model.Employee, string) {
	scores, err := r.scorer.Score(ctx, event, day, candidates)
	if err != nil {
		return nil, fmt.Sprintf("scorer failed: %v", err)
	}

	byID := make(map[uuid.UUID]CandidateScore, len(scores))
	for _, s := range scores {
		byID[s.EmployeeID] = s
	}

	for _, c := range candidates {
		score, ok := byID[c.ID]
		if !ok {
			return nil, fmt.Sprintf("scorer omitted candidate %s", c.ID)
		}
		if score.Confidence < r.confidenceThreshold {
			return nil, fmt.Sprintf("confidence %.2f below threshold %.2f", score.Confidence, r.confidenceThreshold)
		}
	}

	ordered := make([]model.Employee, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := byID[ordered[i].ID], byID[ordered[j].ID]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	return ordered, ""
}
