package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/retailworks/field-scheduler/pkg/core/model"
)

const eventColumns = `id, name, kind, state, start_date, due_date, minutes, parent_event_id`

// UnscheduledEvents returns unscheduled events whose window intersects the
// given range.
func (d *DB) UnscheduledEvents(ctx context.Context, window model.DateRange) ([]model.Event, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM event
		WHERE state = $1 AND start_date <= $2 AND due_date >= $3
	`, model.EventUnscheduled, window.To, window.From)
	if err != nil {
		return nil, fmt.Errorf("failed to query unscheduled events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventByID retrieves a single event.
func (d *DB) EventByID(ctx context.Context, id uuid.UUID) (model.Event, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM event WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		return model.Event{}, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return ev, nil
}

// FindCoreEventByToken locates a Core event whose name contains the pairing
// token. When several match, the earliest due date wins for determinism.
func (d *DB) FindCoreEventByToken(ctx context.Context, token string) (model.Event, bool, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM event
		WHERE kind = $1 AND state <> $2 AND name LIKE '%' || $3 || '%'
		ORDER BY due_date, id
		LIMIT 1
	`, model.KindCore, model.EventCanceled, token)

	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, fmt.Errorf("failed to find core event by token: %w", err)
	}
	return ev, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var ev model.Event
	var start, due time.Time
	if err := row.Scan(&ev.ID, &ev.Name, &ev.Kind, &ev.State, &start, &due, &ev.Minutes, &ev.ParentEventID); err != nil {
		return model.Event{}, err
	}
	ev.StartDate = model.DayOf(start)
	ev.DueDate = model.DayOf(due)
	return ev, nil
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
