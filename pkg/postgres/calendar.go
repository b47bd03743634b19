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

// LockedDay returns the lock covering day, or nil when the day is open.
func (d *DB) LockedDay(ctx context.Context, day time.Time) (*model.LockedDay, error) {
	var lock model.LockedDay
	var lockedDay time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT day, reason FROM locked_day WHERE day = $1
	`, model.DayOf(day)).Scan(&lockedDay, &lock.Reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query locked day: %w", err)
	}
	lock.Day = model.DayOf(lockedDay)
	return &lock, nil
}

// OnTimeOff reports whether the employee has time off covering day.
func (d *DB) OnTimeOff(ctx context.Context, employeeID uuid.UUID, day time.Time) (bool, error) {
	var off bool
	err := d.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_off
			WHERE employee_id = $1 AND start_date <= $2 AND end_date >= $2
		)
	`, employeeID, model.DayOf(day)).Scan(&off)
	if err != nil {
		return false, fmt.Errorf("failed to query time off: %w", err)
	}
	return off, nil
}
