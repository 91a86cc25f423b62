package sim

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtrace/isoxml-convert/internal/device"
	"github.com/fieldtrace/isoxml-convert/internal/geo"
	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	baseLat = 520000000 // 52.0 deg in 1e-7 deg
	baseLon = 105000000 // 10.5 deg
	// 1e-7 deg of latitude is close to 11.1 mm; 90 units is roughly 1 m.
	latStepPerMetre = 90
)

// northboundHeader builds a track of n fixes driving due north, one metre
// apart, with a UTC time channel alongside.
func northboundHeader(n int) *timelog.ChannelSet {
	north := timelog.NewColumn(timelog.ChanPositionNorth, timelog.KindInt32)
	east := timelog.NewColumn(timelog.ChanPositionEast, timelog.KindInt32)
	utc := timelog.NewColumn(timelog.ChanGpsUtcTime, timelog.KindString)
	for i := 0; i < n; i++ {
		north.AppendInt32(int32(baseLat + i*latStepPerMetre))
		east.AppendInt32(baseLon)
		utc.AppendString("12:00:00.000")
	}
	var s timelog.ChannelSet
	s.Add(north)
	s.Add(east)
	s.Add(utc)
	return &s
}

// enuTrack mirrors the simulator's own projection of a header track.
func enuTrack(header *timelog.ChannelSet) (x, y []float64) {
	north := header.ByName(timelog.ChanPositionNorth)
	east := header.ByName(timelog.ChanPositionEast)
	n := north.Len()
	x = make([]float64, n)
	y = make([]float64, n)
	var origin geo.Origin
	for i := 0; i < n; i++ {
		lat := float64(north.Int32At(i)) * 1e-7 * degToRad
		lon := float64(east.Int32At(i)) * 1e-7 * degToRad
		if i == 0 {
			origin = geo.Origin{Lat: lat, Lon: lon}
		}
		x[i], y[i], _ = origin.GeodeticToENU(lat, lon, 0)
	}
	return x, y
}

func TestSimulate_MissingPositionChannelsFails(t *testing.T) {
	var header timelog.ChannelSet
	header.Add(timelog.NewColumn(timelog.ChanGpsUtcTime, timelog.KindString))

	ok := Simulate(&header, nil, Options{}, discardLogger())
	assert.False(t, ok)
}

func TestSimulate_FallbackReproducesInput(t *testing.T) {
	header := northboundHeader(10)
	rec := device.NewFallbackRecord()

	require.True(t, Simulate(header, []*device.GeometryRecord{rec}, Options{}, discardLogger()))

	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	outEast := rec.HeaderChannels.ByName(timelog.ChanPositionEast)
	outUp := rec.HeaderChannels.ByName(timelog.ChanPositionUp)
	require.NotNil(t, outNorth)
	require.NotNil(t, outEast)
	require.NotNil(t, outUp)

	inNorth := header.ByName(timelog.ChanPositionNorth)
	for i := 0; i < 10; i++ {
		// Zero offsets: the round trip through ENU and back costs at most a
		// truncation unit.
		assert.InDelta(t, float64(inNorth.Int32At(i)), float64(outNorth.Int32At(i)), 1)
		assert.InDelta(t, baseLon, float64(outEast.Int32At(i)), 1)
		// Input had no up channel; output heights are zero.
		assert.Equal(t, int32(0), outUp.Int32At(i))
	}

	// Non-position header channels are carried over.
	utc := rec.HeaderChannels.ByName(timelog.ChanGpsUtcTime)
	require.NotNil(t, utc)
	assert.Equal(t, 10, utc.Len())
	assert.Equal(t, "12:00:00.000", utc.StringAt(0))
}

func TestSimulate_MountedAntennaOffset(t *testing.T) {
	header := northboundHeader(10)
	rec := &device.GeometryRecord{
		Element:    "DET-1",
		Connection: device.Mounted,
		// Antenna 2 m ahead of the device reference point.
		TractorNavigation: device.Point3{X: 2},
	}

	require.True(t, Simulate(header, []*device.GeometryRecord{rec}, Options{Cartesian: true}, discardLogger()))

	_, y := enuTrack(header)
	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	outEast := rec.HeaderChannels.ByName(timelog.ChanPositionEast)

	// Heading is due north, so the reference point trails the antenna by
	// 2 m of northing and stays on the meridian.
	for i := 0; i < 10; i++ {
		assert.InDelta(t, y[i]*1000-2000, float64(outNorth.Int32At(i)), 30, "sample %d", i)
		assert.InDelta(t, 0, float64(outEast.Int32At(i)), 30, "sample %d", i)
	}
}

func TestSimulate_TowedElementTrailsHitch(t *testing.T) {
	header := northboundHeader(10)
	rec := &device.GeometryRecord{
		Element:    "DET-2",
		Connection: device.Towed,
		// Implement coupling point 1.5 m ahead of the implement reference,
		// so the reference trails the hitch by 1.5 m.
		ImplementConnector: device.Point3{X: 1.5},
	}

	require.True(t, Simulate(header, []*device.GeometryRecord{rec}, Options{Cartesian: true}, discardLogger()))

	_, y := enuTrack(header)
	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	for i := 0; i < 10; i++ {
		assert.InDelta(t, y[i]*1000-1500, float64(outNorth.Int32At(i)), 30, "sample %d", i)
	}
}

func TestSimulate_TowedConvergesAfterTurn(t *testing.T) {
	// Drive east for 15 m, then north for 30 m. The towed implement swings
	// around the hitch and its heading converges onto the tractor's.
	north := timelog.NewColumn(timelog.ChanPositionNorth, timelog.KindInt32)
	east := timelog.NewColumn(timelog.ChanPositionEast, timelog.KindInt32)
	// 1e-7 deg of longitude at 52 deg latitude is close to 6.85 mm.
	const lonStepPerMetre = 146
	for i := 0; i < 15; i++ {
		north.AppendInt32(baseLat)
		east.AppendInt32(int32(baseLon + i*lonStepPerMetre))
	}
	for i := 1; i <= 30; i++ {
		north.AppendInt32(int32(baseLat + i*latStepPerMetre))
		east.AppendInt32(baseLon + 14*lonStepPerMetre)
	}
	var header timelog.ChannelSet
	header.Add(north)
	header.Add(east)

	rec := &device.GeometryRecord{
		Element:            "DET-2",
		Connection:         device.Towed,
		ImplementConnector: device.Point3{X: 2},
	}
	require.True(t, Simulate(&header, []*device.GeometryRecord{rec}, Options{Cartesian: true}, discardLogger()))

	// Near the end of the northbound leg the implement reference point sits
	// 2 m behind the hitch again.
	_, yEnu := enuTrack(&header)
	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	last := outNorth.Len() - 1
	assert.InDelta(t, yEnu[last]*1000-2000, float64(outNorth.Int32At(last)), 200)
}

func TestSimulate_DynamicOffsetChannel(t *testing.T) {
	header := northboundHeader(10)

	ref := timelog.Ref{Element: "DET-3", DDI: 134}
	offsets := timelog.NewDataColumn("offset_x", ref)
	for i := 0; i < 10; i++ {
		offsets.AppendInt32(3000) // 3 m, logged in mm
	}

	rec := &device.GeometryRecord{
		Element:           "DET-3",
		Connection:        device.Mounted,
		TractorNavigation: device.Point3{XRef: &ref},
	}
	rec.DataChannels.Add(offsets)

	require.True(t, Simulate(header, []*device.GeometryRecord{rec}, Options{Cartesian: true}, discardLogger()))

	_, y := enuTrack(header)
	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	for i := 0; i < 10; i++ {
		assert.InDelta(t, y[i]*1000-3000, float64(outNorth.Int32At(i)), 30, "sample %d", i)
	}
}

func TestSimulate_UnresolvedDynamicOffsetFallsBackToZero(t *testing.T) {
	header := northboundHeader(10)

	ref := timelog.Ref{Element: "DET-4", DDI: 134}
	rec := &device.GeometryRecord{
		Element:           "DET-4",
		Connection:        device.Mounted,
		TractorNavigation: device.Point3{XRef: &ref},
	}
	// No matching data channel: the axis must stay at its static value.
	require.True(t, Simulate(header, []*device.GeometryRecord{rec}, Options{Cartesian: true}, discardLogger()))

	_, y := enuTrack(header)
	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	for i := 0; i < 10; i++ {
		assert.InDelta(t, y[i]*1000, float64(outNorth.Int32At(i)), 30)
	}
}

func TestSimulate_GeodeticOutputScaling(t *testing.T) {
	header := northboundHeader(10)
	rec := device.NewFallbackRecord()
	require.True(t, Simulate(header, []*device.GeometryRecord{rec}, Options{}, discardLogger()))

	// Output stays fixed-point 1e-7 degrees; the first fix is the origin and
	// must match exactly up to truncation.
	outNorth := rec.HeaderChannels.ByName(timelog.ChanPositionNorth)
	got := float64(outNorth.Int32At(0)) * 1e-7
	assert.InDelta(t, 52.0, got, 1e-6)
	assert.Less(t, math.Abs(got-52.0), 1e-6)
}
