package storage

import "time"

// Run is one conversion of a task file, grouping the trajectories produced
// from its time logs.
type Run struct {
	ID        int64
	StartTime time.Time
	Task      string
	Farm      string
	Field     string
}

// Trajectory is the synthesized track of one geometry record within a run.
type Trajectory struct {
	ID          int64
	RunID       int64
	Element     string
	Description string
	Connection  string
}

// Point is one sample of a trajectory. Date and Time carry the decoded
// GPS UTC strings when the log declared them.
type Point struct {
	Seq       int
	Date      string
	Time      string
	Longitude float64 // degrees
	Latitude  float64 // degrees
	Height    float64 // metres
}

// PointWithChannels is a point enriched with the process data channel
// values recorded at the same sample.
type PointWithChannels struct {
	Point
	Channels map[string]string
}
