// Package scorerclient is the HTTP client for the optional external
// ranking service. The engine treats the scorer as low-trust: every call is
// bounded by a timeout and any failure is recovered locally by the ranker's
// deterministic fallback, so errors returned here are never fatal.
package scorerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
)

// Client calls the external ranking service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a scorer client. timeout bounds each Score call end to
// end.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	EventID    string           `json:"eventId"`
	EventKind  string           `json:"eventKind"`
	Day        string           `json:"day"`
	Candidates []scoreCandidate `json:"candidates"`
}

type scoreCandidate struct {
	EmployeeID string `json:"employeeId"`
	Tier       string `json:"tier"`
}

type scoreResponse struct {
	Scores []struct {
		EmployeeID string  `json:"employeeId"`
		Score      float64 `json:"score"`
		Confidence float64 `json:"confidence"`
	} `json:"scores"`
}

// Score requests scores for all candidates. Implements scheduler.Scorer.
func (c *Client) Score(ctx context.Context, event model.Event, day time.Time, candidates []model.Employee) ([]scheduler.CandidateScore, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := scoreRequest{
		EventID:   event.ID.String(),
		EventKind: string(event.Kind),
		Day:       day.Format(time.DateOnly),
	}
	for _, candidate := range candidates {
		req.Candidates = append(req.Candidates, scoreCandidate{
			EmployeeID: candidate.ID.String(),
			Tier:       string(candidate.Tier),
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode score request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build score request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("scorer returned status %d", resp.StatusCode)
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode score response: %w", err)
	}

	scores := make([]scheduler.CandidateScore, 0, len(decoded.Scores))
	for _, s := range decoded.Scores {
		id, err := uuid.Parse(s.EmployeeID)
		if err != nil {
			return nil, fmt.Errorf("scorer returned invalid employee id %q: %w", s.EmployeeID, err)
		}
		scores = append(scores, scheduler.CandidateScore{
			EmployeeID: id,
			Score:      s.Score,
			Confidence: s.Confidence,
		})
	}

	return scores, nil
}
