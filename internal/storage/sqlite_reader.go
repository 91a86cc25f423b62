package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PointData is a constraint for the two point representations a reader can
// produce: bare positions, or positions with their process data channels.
type PointData interface {
	Point | PointWithChannels
}

// PointReader iterates the points of one trajectory in sample order.
type PointReader[T PointData] interface {
	// Trajectory returns metadata about the trajectory being read.
	Trajectory() *Trajectory

	// Next advances the iterator; it returns false at the end of the data
	// or on error.
	Next() bool

	// Current returns the point at the iterator position. Undefined after
	// Next has returned false.
	Current() *T

	// Error returns the error that stopped iteration, if any.
	Error() error

	// Close releases the underlying query resources.
	Close() error
}

// ReaderOption configures a point reader.
type ReaderOption[T PointData] func(*sqlitePointReader[T])

// WithSeqRange limits the reader to points with lo <= seq < hi.
func WithSeqRange[T PointData](lo, hi int) ReaderOption[T] {
	return func(r *sqlitePointReader[T]) {
		r.seqLo, r.seqHi = &lo, &hi
	}
}

type sqlitePointReader[T PointData] struct {
	trajectory Trajectory
	rows       *sql.Rows
	current    T
	err        error

	seqLo, seqHi *int
}

// ReadPoints opens an iterator over the points of a trajectory.
func ReadPoints[T PointData](ctx context.Context, s *SqliteStore, trajectoryID int64, opts ...ReaderOption[T]) (PointReader[T], error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, err
	}

	r := &sqlitePointReader[T]{}
	for _, opt := range opts {
		opt(r)
	}

	query := selectPointsSQL
	args := []any{trajectoryID}
	if r.seqLo != nil {
		query += " AND seq >= ? AND seq < ?"
		args = append(args, *r.seqLo, *r.seqHi)
	}
	query += " ORDER BY seq"

	row := db.QueryRowContext(ctx, selectTrajectorySQL, trajectoryID)
	if err = row.Scan(&r.trajectory.ID, &r.trajectory.RunID, &r.trajectory.Element,
		&r.trajectory.Description, &r.trajectory.Connection); err != nil {
		return nil, fmt.Errorf("loading trajectory %d: %w", trajectoryID, err)
	}

	if r.rows, err = db.QueryContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	return r, nil
}

func (r *sqlitePointReader[T]) Trajectory() *Trajectory { return &r.trajectory }

func (r *sqlitePointReader[T]) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}

	var p Point
	var channels sql.NullString
	if r.err = r.rows.Scan(&p.Seq, &p.Date, &p.Time, &p.Longitude, &p.Latitude, &p.Height, &channels); r.err != nil {
		return false
	}

	switch out := any(&r.current).(type) {
	case *Point:
		*out = p
	case *PointWithChannels:
		out.Point = p
		out.Channels = nil
		if channels.Valid {
			if r.err = json.Unmarshal([]byte(channels.String), &out.Channels); r.err != nil {
				return false
			}
		}
	}
	return true
}

func (r *sqlitePointReader[T]) Current() *T { return &r.current }

func (r *sqlitePointReader[T]) Error() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlitePointReader[T]) Close() error { return r.rows.Close() }
