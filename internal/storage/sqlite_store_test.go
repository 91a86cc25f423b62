package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "trajectories.db"))
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func testPoints(n int) []PointWithChannels {
	points := make([]PointWithChannels, n)
	for i := range points {
		points[i] = PointWithChannels{
			Point: Point{
				Seq:       i,
				Date:      "2016-05-03",
				Time:      "12:34:56.789",
				Longitude: 10.5 + float64(i)*1e-6,
				Latitude:  52.0,
				Height:    81.5,
			},
			Channels: map[string]string{"ApplicationRate": "120"},
		}
	}
	return points
}

func TestSqliteStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "TSK5", "Meadow Farm", "North Field")
	require.NoError(t, err)

	trajectoryID, err := s.CreateTrajectory(ctx, runID, "DET-2", "Sprayer Boom", "towed")
	require.NoError(t, err)

	require.NoError(t, s.StorePoints(ctx, trajectoryID, testPoints(10)))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "TSK5", runs[0].Task)
	assert.Equal(t, "Meadow Farm", runs[0].Farm)
	assert.False(t, runs[0].StartTime.IsZero())

	trajectories, err := s.Trajectories(ctx, runID)
	require.NoError(t, err)
	require.Len(t, trajectories, 1)
	assert.Equal(t, "DET-2", trajectories[0].Element)
	assert.Equal(t, "towed", trajectories[0].Connection)
}

func TestReadPoints_WithChannels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "TSK5", "", "")
	require.NoError(t, err)
	trajectoryID, err := s.CreateTrajectory(ctx, runID, "DET-2", "Sprayer Boom", "towed")
	require.NoError(t, err)
	require.NoError(t, s.StorePoints(ctx, trajectoryID, testPoints(5)))

	reader, err := ReadPoints[PointWithChannels](ctx, s, trajectoryID)
	require.NoError(t, err)
	defer reader.Close()

	assert.Equal(t, "Sprayer Boom", reader.Trajectory().Description)

	var got []PointWithChannels
	for reader.Next() {
		got = append(got, *reader.Current())
	}
	require.NoError(t, reader.Error())
	require.Len(t, got, 5)

	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, "12:34:56.789", got[0].Time)
	assert.InDelta(t, 10.5, got[0].Longitude, 1e-9)
	assert.Equal(t, map[string]string{"ApplicationRate": "120"}, got[0].Channels)
}

func TestReadPoints_BarePointsAndSeqRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "TSK5", "", "")
	require.NoError(t, err)
	trajectoryID, err := s.CreateTrajectory(ctx, runID, "DET-2", "Sprayer Boom", "towed")
	require.NoError(t, err)
	require.NoError(t, s.StorePoints(ctx, trajectoryID, testPoints(10)))

	reader, err := ReadPoints[Point](ctx, s, trajectoryID, WithSeqRange[Point](3, 7))
	require.NoError(t, err)
	defer reader.Close()

	var seqs []int
	for reader.Next() {
		seqs = append(seqs, reader.Current().Seq)
	}
	require.NoError(t, reader.Error())
	assert.Equal(t, []int{3, 4, 5, 6}, seqs)
}

func TestReadPoints_UnknownTrajectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Force schema creation so the read connection has a database to open.
	_, err := s.CreateRun(ctx, "TSK5", "", "")
	require.NoError(t, err)

	_, err = ReadPoints[Point](ctx, s, 999)
	assert.Error(t, err)
}

func TestSqliteStore_CloseIsIdempotent(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "t.db"))
	_, err := s.CreateRun(context.Background(), "TSK5", "", "")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
