package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/retailworks/field-scheduler/pkg/core/model"
	"github.com/retailworks/field-scheduler/pkg/core/scheduler"
)

// runLockKeyspace namespaces the engine's advisory locks away from other
// users of the same database.
const runLockKeyspace = int32(0x5C4D)

// AcquireRunLock serializes scheduler runs with a Postgres advisory lock
// keyed by the date-range window. The lock is session-scoped: it pins a
// pool connection until the returned release func runs.
//
// Overlapping-but-unequal windows hash to different keys, so callers that
// need strict serialization should run over a canonical window (the CLI
// does). The coarse guarantee this provides is one run per window at a
// time, surviving even callers that crash, since the session lock dies
// with the connection.
func (d *DB) AcquireRunLock(ctx context.Context, window model.DateRange) (func(), error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for run lock: %w", err)
	}

	key := windowLockKey(window)
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1, $2)`, runLockKeyspace, key).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to take run lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, scheduler.ErrRunLocked
	}

	release := func() {
		// Best effort: the lock also dies with the session.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1, $2)`, runLockKeyspace, key)
		conn.Release()
	}
	return release, nil
}

func windowLockKey(window model.DateRange) int32 {
	h := fnv.New32a()
	h.Write([]byte(window.String()))
	return int32(h.Sum32())
}
