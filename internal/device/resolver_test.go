package device

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldtrace/isoxml-convert/internal/isoxml"
	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// trailerAndTractor builds a towed trailer (DVC-A, no GNSS) hitched to a
// tractor (DVC-B, navigation element with offsets and a measured yaw DPD).
func trailerAndTractor() *isoxml.TaskData {
	return &isoxml.TaskData{
		Devices: []isoxml.Device{
			{
				ID:         "DVC-A",
				Designator: "Trailer",
				Elements: []isoxml.DeviceElement{
					{ID: "DET-A1", Type: isoxml.ElementTypeDevice, Designator: "Frame"},
					{ID: "DET-A2", Type: isoxml.ElementTypeConnector, Designator: "Drawbar",
						References: []isoxml.ObjectReference{{ObjectIDRef: "10"}}},
					{ID: "DET-A3", Type: isoxml.ElementTypeSection, Designator: "Left section",
						References: []isoxml.ObjectReference{{ObjectIDRef: "11"}, {ObjectIDRef: "12"}}},
				},
				Properties: []isoxml.Property{
					{ObjectID: "10", DDI: "0086", Value: "-1500"},
					{ObjectID: "11", DDI: "0086", Value: "-3000"},
					{ObjectID: "12", DDI: "0087", Value: "2000"},
				},
			},
			{
				ID:         "DVC-B",
				Designator: "Tractor",
				Elements: []isoxml.DeviceElement{
					{ID: "DET-B1", Type: isoxml.ElementTypeDevice, Designator: "Chassis"},
					{ID: "DET-B2", Type: isoxml.ElementTypeNavigation, Designator: "Antenna",
						References: []isoxml.ObjectReference{{ObjectIDRef: "20"}, {ObjectIDRef: "21"}, {ObjectIDRef: "22"}, {ObjectIDRef: "24"}}},
					{ID: "DET-B3", Type: isoxml.ElementTypeConnector, Designator: "Hitch",
						References: []isoxml.ObjectReference{{ObjectIDRef: "23"}}},
				},
				Properties: []isoxml.Property{
					{ObjectID: "20", DDI: "0086", Value: "500"},
					{ObjectID: "21", DDI: "0087", Value: "400"},
					{ObjectID: "22", DDI: "0088", Value: "3000"},
					{ObjectID: "23", DDI: "0086", Value: "-900"},
				},
				ProcessData: []isoxml.ProcessData{
					{ObjectID: "24", DDI: "0090", Designator: "Yaw"},
				},
			},
		},
	}
}

// The connection lists the trailer first: the resolver must notice the
// antenna sits on the other side and swap roles.
func connectedTask() *isoxml.Task {
	return &isoxml.Task{
		ID: "TSK-1",
		Connections: []isoxml.Connection{{
			DeviceIDRef0:  "DVC-A",
			ElementIDRef0: "DET-A2",
			DeviceIDRef1:  "DVC-B",
			ElementIDRef1: "DET-B3",
		}},
	}
}

func TestResolve_SwapsGNSSSide(t *testing.T) {
	doc := trailerAndTractor()
	records, ok := NewResolver(discardLogger()).Resolve(doc, connectedTask())
	require.True(t, ok)

	byElement := make(map[string]*GeometryRecord)
	for _, r := range records {
		byElement[r.Element] = r
	}

	// Towed records rooted at the trailer: reference element, drawbar and
	// section; plus the synthetic fallback.
	require.Contains(t, byElement, "DET-A1")
	require.Contains(t, byElement, "DET-A2")
	require.Contains(t, byElement, "DET-A3")
	require.Contains(t, byElement, FallbackElement)
	assert.Len(t, records, 4)

	root := byElement["DET-A1"]
	assert.Equal(t, Towed, root.Connection)
	assert.Equal(t, "Trailer Frame", root.Description)

	// Antenna offset from the tractor graph, mm to m, y and z negated.
	assert.InDelta(t, 0.5, root.TractorNavigation.X, 1e-9)
	assert.InDelta(t, -0.4, root.TractorNavigation.Y, 1e-9)
	assert.InDelta(t, -3.0, root.TractorNavigation.Z, 1e-9)

	assert.InDelta(t, -0.9, root.TractorConnector.X, 1e-9)
	assert.InDelta(t, -1.5, root.ImplementConnector.X, 1e-9)

	section := byElement["DET-A3"]
	assert.InDelta(t, -3.0, section.ImplementElement.X, 1e-9)
	assert.InDelta(t, -2.0, section.ImplementElement.Y, 1e-9)

	require.NotNil(t, root.YawRef)
	assert.Equal(t, timelog.Ref{Element: "DET-B2", DDI: isoxml.DDIYaw}, *root.YawRef)
}

func TestResolve_Deterministic(t *testing.T) {
	doc := trailerAndTractor()
	resolver := NewResolver(discardLogger())

	first, _ := resolver.Resolve(doc, connectedTask())
	second, _ := resolver.Resolve(doc, connectedTask())
	require.Equal(t, len(first), len(second))

	for i := range first {
		if diff := cmp.Diff(first[i].ImplementElement, second[i].ImplementElement); diff != "" {
			t.Errorf("record %d offset mismatch (-first +second):\n%s", i, diff)
		}
	}
}

func TestResolve_MissingDeviceDegrades(t *testing.T) {
	doc := trailerAndTractor()
	task := &isoxml.Task{
		Connections: []isoxml.Connection{{
			DeviceIDRef0: "DVC-A", ElementIDRef0: "DET-A2",
			DeviceIDRef1: "DVC-GONE", ElementIDRef1: "DET-X",
		}},
	}

	records, ok := NewResolver(discardLogger()).Resolve(doc, task)
	assert.False(t, ok)

	// The fallback record survives every failure mode.
	var fallback *GeometryRecord
	for _, r := range records {
		if r.Element == FallbackElement {
			fallback = r
		}
	}
	require.NotNil(t, fallback)
	assert.Equal(t, Mounted, fallback.Connection)
	assert.True(t, fallback.TractorNavigation.IsZero())
}

func TestResolve_NoGNSSOnEitherSideSkips(t *testing.T) {
	doc := trailerAndTractor()
	// Strip the navigation element from the tractor.
	doc.Devices[1].Elements = doc.Devices[1].Elements[:1]

	records, ok := NewResolver(discardLogger()).Resolve(doc, connectedTask())
	assert.True(t, ok)
	// Only the fallback remains: the connection is skipped, and neither
	// device has an antenna to earn mounted records.
	require.Len(t, records, 1)
	assert.Equal(t, FallbackElement, records[0].Element)
}

func TestResolve_MountedForUnconnectedDevice(t *testing.T) {
	doc := trailerAndTractor()
	task := &isoxml.Task{ID: "TSK-2"} // no connections

	records, ok := NewResolver(discardLogger()).Resolve(doc, task)
	require.True(t, ok)

	var mounted []*GeometryRecord
	for _, r := range records {
		if r.Element != FallbackElement {
			mounted = append(mounted, r)
		}
	}
	require.NotEmpty(t, mounted)
	for _, r := range mounted {
		assert.Equal(t, Mounted, r.Connection)
		assert.True(t, r.TractorConnector.IsZero())
		assert.True(t, r.ImplementConnector.IsZero())
	}
}

func TestPartition(t *testing.T) {
	records := []*GeometryRecord{
		{Element: "DET-A3"},
		NewFallbackRecord(),
	}

	data := &timelog.ChannelSet{}
	data.Add(timelog.NewDataColumn("attributed", timelog.Ref{Element: "DET-A3", DDI: 141}))
	data.Add(timelog.NewDataColumn("unattributed", timelog.Ref{Element: "DET-X", DDI: 141}))

	Partition(records, data, false)
	assert.Len(t, records[0].DataChannels.Columns, 1)
	assert.Len(t, records[1].DataChannels.Columns, 1)
	assert.Equal(t, "attributed", records[0].DataChannels.Columns[0].Name)

	// -nosimulation routes everything to the fallback bucket.
	for _, r := range records {
		r.ClearChannels()
	}
	Partition(records, data, true)
	assert.Empty(t, records[0].DataChannels.Columns)
	assert.Len(t, records[1].DataChannels.Columns, 2)
}

func TestPoint3_RotateZ(t *testing.T) {
	p := Point3{X: 1}
	q := p.RotateZ(3.14159265358979 / 2)
	assert.InDelta(t, 0, q.X, 1e-9)
	assert.InDelta(t, 1, q.Y, 1e-9)
}
