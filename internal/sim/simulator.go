// Package sim replays a decoded GNSS antenna trace through the resolved
// geometry of a tractor-implement assembly, producing the trajectory every
// instrumented point actually travelled. Heading is estimated from the
// track itself with a non-holonomic hitch model for towed implements.
package sim

import (
	"log/slog"
	"math"

	"github.com/fieldtrace/isoxml-convert/internal/device"
	"github.com/fieldtrace/isoxml-convert/internal/geo"
	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

const (
	// Squared displacement that must accumulate before a new heading is
	// emitted; below this the GNSS noise dominates the direction.
	headingGate = 0.01 // m²

	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Options configure a simulation run.
type Options struct {
	// Cartesian emits local ENU millimetres instead of geodetic
	// fixed-point coordinates.
	Cartesian bool

	// MeasuredYaw is the hook for feeding a directly measured heading
	// channel (DDI 144) into the model instead of the track estimate. It
	// is accepted but not consumed: recorded yaw values showed a suspected
	// unit or sign mismatch, so the estimator stays authoritative until
	// that is understood.
	MeasuredYaw *timelog.Ref
}

// Simulate fills each geometry record's header channel set with the
// synthesized trajectory of its element: the three position channels first,
// then copies of the remaining input header channels. Records must already
// carry their partitioned data channels. Returns false when the input lacks
// the position channels needed to run at all.
func Simulate(header *timelog.ChannelSet, records []*device.GeometryRecord, opts Options, logger *slog.Logger) bool {
	north := header.ByName(timelog.ChanPositionNorth)
	east := header.ByName(timelog.ChanPositionEast)
	if north == nil || east == nil {
		logger.Error("time log has no position channels, cannot simulate")
		return false
	}
	up := header.ByName(timelog.ChanPositionUp)

	n := north.Len()
	x := make([]float64, n) // east, metres
	y := make([]float64, n) // north, metres
	z := make([]float64, n) // up, metres

	var origin geo.Origin
	for i := 0; i < n; i++ {
		lat := float64(north.Int32At(i)) * 1e-7 * degToRad
		lon := float64(east.Int32At(i)) * 1e-7 * degToRad
		var h float64
		if up != nil {
			h = float64(up.Int32At(i)) * 1e-3
		}
		if i == 0 {
			origin = geo.Origin{Lat: lat, Lon: lon, Height: h}
		}
		x[i], y[i], z[i] = origin.GeodeticToENU(lat, lon, h)
	}

	headings := estimateHeadings(x, y)

	for _, rec := range records {
		simulateRecord(rec, header, origin, x, y, z, headings, opts, logger)
	}
	return true
}

func simulateRecord(rec *device.GeometryRecord, header *timelog.ChannelSet, origin geo.Origin,
	x, y, z, headings []float64, opts Options, logger *slog.Logger) {

	nav := newPointEval(rec.TractorNavigation, rec, logger)
	tractorConn := newPointEval(rec.TractorConnector, rec, logger)
	implementConn := newPointEval(rec.ImplementConnector, rec, logger)
	element := newPointEval(rec.ImplementElement, rec, logger)

	outNorth := timelog.NewColumn(timelog.ChanPositionNorth, timelog.KindInt32)
	outEast := timelog.NewColumn(timelog.ChanPositionEast, timelog.KindInt32)
	outUp := timelog.NewColumn(timelog.ChanPositionUp, timelog.KindInt32)

	var implHeading float64
	var prevHitchX, prevHitchY float64
	havePrev := false

	for i := range x {
		heading := headings[i]

		// Antenna to tractor reference point, then out to the hitch.
		px, py, pz := x[i], y[i], z[i]
		off := nav.at(i).RotateZ(heading)
		px, py, pz = px-off.X, py-off.Y, pz-off.Z
		off = tractorConn.at(i).RotateZ(heading)
		px, py, pz = px+off.X, py+off.Y, pz+off.Z

		conn := implementConn.at(i)
		switch {
		case rec.Connection == device.Mounted:
			implHeading = heading
		case havePrev && conn.X > 0:
			// Lateral hitch displacement swings the implement about its
			// axle; the hitch arm length sets the rate.
			vx, vy := px-prevHitchX, py-prevHitchY
			sin, cos := math.Sincos(implHeading + math.Pi/2)
			implHeading += (vx*cos + vy*sin) / conn.X
		default:
			implHeading = heading
		}
		prevHitchX, prevHitchY = px, py
		havePrev = true

		// Hitch to implement reference point, then to the element.
		off = conn.RotateZ(implHeading)
		px, py, pz = px-off.X, py-off.Y, pz-off.Z
		off = element.at(i).RotateZ(implHeading)
		px, py, pz = px+off.X, py+off.Y, pz+off.Z

		if opts.Cartesian {
			outEast.AppendInt32(int32(px * 1000))
			outNorth.AppendInt32(int32(py * 1000))
			outUp.AppendInt32(int32(pz * 1000))
		} else {
			lat, lon, h := origin.ENUToGeodetic(px, py, pz)
			outNorth.AppendInt32(int32(lat * radToDeg * 1e7))
			outEast.AppendInt32(int32(lon * radToDeg * 1e7))
			outUp.AppendInt32(int32(h * 1000))
		}
	}

	rec.HeaderChannels = timelog.ChannelSet{}
	rec.HeaderChannels.Add(outNorth)
	rec.HeaderChannels.Add(outEast)
	rec.HeaderChannels.Add(outUp)
	for _, col := range header.Columns {
		switch col.Name {
		case timelog.ChanPositionNorth, timelog.ChanPositionEast, timelog.ChanPositionUp:
			continue
		}
		rec.HeaderChannels.Add(col.Clone())
	}
}

// pointEval resolves a point's dynamic axes against the record's data
// channels once, then evaluates the point per sample. Logged offsets are
// millimetres in the ISO axis convention; y and z flip sign going to ENU.
type pointEval struct {
	base    device.Point3
	x, y, z *timelog.Column
}

func newPointEval(p device.Point3, rec *device.GeometryRecord, logger *slog.Logger) pointEval {
	return pointEval{
		base: p,
		x:    resolveAxis(p.XRef, rec, logger),
		y:    resolveAxis(p.YRef, rec, logger),
		z:    resolveAxis(p.ZRef, rec, logger),
	}
}

func resolveAxis(ref *timelog.Ref, rec *device.GeometryRecord, logger *slog.Logger) *timelog.Column {
	if ref == nil {
		return nil
	}
	matches := rec.DataChannels.ByRef(*ref)
	if len(matches) != 1 {
		logger.Warn("dynamic offset did not resolve to a unique channel, axis stays 0",
			slog.String("element", rec.Element),
			slog.String("ref", ref.String()),
			slog.Int("matches", len(matches)))
		return nil
	}
	return matches[0]
}

func (p pointEval) at(i int) device.Point3 {
	out := p.base
	if p.x != nil {
		out.X = float64(p.x.Int32At(i)) / 1000
	}
	if p.y != nil {
		out.Y = -float64(p.y.Int32At(i)) / 1000
	}
	if p.z != nil {
		out.Z = -float64(p.z.Int32At(i)) / 1000
	}
	return out
}
