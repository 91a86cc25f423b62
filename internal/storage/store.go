// Package storage persists converted trajectories in a sqlite database so
// downstream tools can browse and render them without re-running the
// conversion.
package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages trajectory persistence. All write operations are atomic;
// StorePoints wraps its batch in one transaction.
type Store interface {
	// CreateRun records a new conversion run and returns its identifier.
	CreateRun(ctx context.Context, task, farm, field string) (int64, error)

	// Runs returns all recorded runs ordered by start time.
	Runs(ctx context.Context) ([]Run, error)

	// CreateTrajectory records one geometry's trajectory within a run and
	// returns its identifier.
	CreateTrajectory(ctx context.Context, runID int64, element, description, connection string) (int64, error)

	// Trajectories returns the trajectories of a run.
	Trajectories(ctx context.Context, runID int64) ([]Trajectory, error)

	// StorePoints appends a batch of points to a trajectory in a single
	// transaction.
	StorePoints(ctx context.Context, trajectoryID int64, points []PointWithChannels) error

	// Close releases all database connections. It is safe to call more
	// than once.
	Close() error
}
