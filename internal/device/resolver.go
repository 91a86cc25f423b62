package device

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fieldtrace/isoxml-convert/internal/isoxml"
	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

// Resolver derives geometry records from the device description graph of a
// task. Resolution never aborts: any graph traversal failure is logged, the
// offending connection is skipped, and the partial record list plus the
// always-present fallback record is returned with ok=false.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver returns a resolver logging through the given logger.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve builds the geometry record list for a task.
//
// For every connection it determines which side carries the GNSS antenna
// (a navigation element, type 7) and treats that device as the towing
// vehicle, swapping sides when needed. This is a domain assumption, not an
// invariant: a GNSS receiver mounted on the implement would still be picked
// as the "tractor". One towed record is emitted per offset-bearing implement
// element plus one for the implement's reference element. Devices with a
// navigation element that take part in no connection get mounted records
// with zero connector offsets. The synthetic fallback record is always
// appended last.
func (r *Resolver) Resolve(doc *isoxml.TaskData, task *isoxml.Task) ([]*GeometryRecord, bool) {
	var records []*GeometryRecord
	ok := true
	covered := make(map[string]bool)

	for _, cnn := range task.Connections {
		recs, devs, err := r.resolveConnection(doc, cnn)
		if err != nil {
			r.logger.Warn("geometry resolution failed for connection, continuing degraded",
				slog.String("device0", cnn.DeviceIDRef0),
				slog.String("device1", cnn.DeviceIDRef1),
				slog.String("error", err.Error()))
			ok = false
			continue
		}
		if recs == nil {
			// Neither side carries a GNSS antenna; no geometry derivable.
			continue
		}
		records = append(records, recs...)
		for _, id := range devs {
			covered[id] = true
		}
	}

	// Self-propelled or mounted equipment: a navigation element on a device
	// outside every connection instruments its points directly.
	for i := range doc.Devices {
		dvc := &doc.Devices[i]
		if covered[dvc.ID] {
			continue
		}
		nav, found := dvc.ElementOfType(isoxml.ElementTypeNavigation)
		if !found {
			continue
		}
		records = append(records, r.mountedRecords(doc, dvc, nav)...)
	}

	records = append(records, NewFallbackRecord())
	return records, ok
}

// resolveConnection emits the towed records for one hitch. A nil record
// slice with nil error means the connection has no GNSS side and is skipped.
func (r *Resolver) resolveConnection(doc *isoxml.TaskData, cnn isoxml.Connection) ([]*GeometryRecord, []string, error) {
	tractor, ok := doc.DeviceByID(cnn.DeviceIDRef0)
	if !ok {
		return nil, nil, fmt.Errorf("device %q not found", cnn.DeviceIDRef0)
	}
	implement, ok := doc.DeviceByID(cnn.DeviceIDRef1)
	if !ok {
		return nil, nil, fmt.Errorf("device %q not found", cnn.DeviceIDRef1)
	}
	tractorConnID, implementConnID := cnn.ElementIDRef0, cnn.ElementIDRef1

	if _, hasNav := tractor.ElementOfType(isoxml.ElementTypeNavigation); !hasNav {
		tractor, implement = implement, tractor
		tractorConnID, implementConnID = implementConnID, tractorConnID
		if _, hasNav = tractor.ElementOfType(isoxml.ElementTypeNavigation); !hasNav {
			return nil, nil, nil
		}
	}

	nav, _ := tractor.ElementOfType(isoxml.ElementTypeNavigation)
	tractorConnEl, ok := tractor.ElementByID(tractorConnID)
	if !ok {
		return nil, nil, fmt.Errorf("connector element %q not found on device %q", tractorConnID, tractor.ID)
	}
	implementConnEl, ok := implement.ElementByID(implementConnID)
	if !ok {
		return nil, nil, fmt.Errorf("connector element %q not found on device %q", implementConnID, implement.ID)
	}

	navOffset := r.extractOffset(tractor, nav)
	tractorConn := r.extractOffset(tractor, tractorConnEl)
	implementConn := r.extractOffset(implement, implementConnEl)
	yawRef := r.yawRef(tractor)

	towed := func(el *isoxml.DeviceElement) *GeometryRecord {
		return &GeometryRecord{
			Element:            el.ID,
			Description:        describe(implement, el),
			Connection:         Towed,
			TractorNavigation:  navOffset,
			TractorConnector:   tractorConn,
			ImplementConnector: implementConn,
			ImplementElement:   r.extractOffset(implement, el),
			YawRef:             yawRef,
		}
	}

	var recs []*GeometryRecord
	root, hasRoot := implement.ElementOfType(isoxml.ElementTypeDevice)
	if hasRoot {
		recs = append(recs, towed(root))
	}
	for i := range implement.Elements {
		el := &implement.Elements[i]
		if hasRoot && el.ID == root.ID {
			continue
		}
		if r.hasOffset(implement, el) {
			recs = append(recs, towed(el))
		}
	}
	if recs == nil {
		return nil, nil, fmt.Errorf("implement %q has no reference element and no offset-bearing elements", implement.ID)
	}

	return recs, []string{tractor.ID, implement.ID}, nil
}

// mountedRecords emits records for a device whose antenna instruments its
// own points: connector offsets stay zero and the implement heading equals
// the tractor heading.
func (r *Resolver) mountedRecords(doc *isoxml.TaskData, dvc *isoxml.Device, nav *isoxml.DeviceElement) []*GeometryRecord {
	navOffset := r.extractOffset(dvc, nav)
	yawRef := r.yawRef(dvc)

	mounted := func(el *isoxml.DeviceElement) *GeometryRecord {
		return &GeometryRecord{
			Element:           el.ID,
			Description:       describe(dvc, el),
			Connection:        Mounted,
			TractorNavigation: navOffset,
			ImplementElement:  r.extractOffset(dvc, el),
			YawRef:            yawRef,
		}
	}

	var recs []*GeometryRecord
	root, hasRoot := dvc.ElementOfType(isoxml.ElementTypeDevice)
	if hasRoot {
		recs = append(recs, mounted(root))
	}
	for i := range dvc.Elements {
		el := &dvc.Elements[i]
		if hasRoot && el.ID == root.ID {
			continue
		}
		if r.hasOffset(dvc, el) {
			recs = append(recs, mounted(el))
		}
	}
	return recs
}

// extractOffset reads the x/y/z geometry offsets (DDIs 134-136) of an
// element. A DPD reference makes the axis dynamic; a DPT reference supplies
// a constant, converted from millimetres to metres with y and z negated to
// move from the ISO axis convention (+y right, +z down) to ENU (+y left,
// +z up). A non-numeric DPT value is substituted with 0. Pure function of
// the graph: equal inputs always produce equal points.
func (r *Resolver) extractOffset(dvc *isoxml.Device, el *isoxml.DeviceElement) Point3 {
	var p Point3

	axes := []struct {
		ddi  int
		val  *float64
		ref  **timelog.Ref
		sign float64
	}{
		{isoxml.DDIOffsetX, &p.X, &p.XRef, 1},
		{isoxml.DDIOffsetY, &p.Y, &p.YRef, -1},
		{isoxml.DDIOffsetZ, &p.Z, &p.ZRef, -1},
	}

	for _, axis := range axes {
		if _, ok := dvc.ProcessDataFor(el, axis.ddi); ok {
			*axis.ref = &timelog.Ref{Element: el.ID, DDI: axis.ddi}
			continue
		}
		if pt, ok := dvc.PropertyFor(el, axis.ddi); ok {
			mm, err := strconv.ParseInt(pt.Value, 10, 64)
			if err != nil {
				r.logger.Warn("non-numeric offset value, substituting 0",
					slog.String("element", el.ID),
					slog.Int("ddi", axis.ddi),
					slog.String("value", pt.Value))
				continue
			}
			*axis.val = axis.sign * float64(mm) / 1000.0
		}
	}

	return p
}

// hasOffset reports whether the element declares at least one non-default
// offset axis, constant or dynamic.
func (r *Resolver) hasOffset(dvc *isoxml.Device, el *isoxml.DeviceElement) bool {
	return !r.extractOffset(dvc, el).IsZero()
}

// yawRef looks for a directly measured heading channel (DDI 144) on any of
// the device's elements. The ref is recorded on the geometry but the
// simulator does not consume it; field data showed a suspected unit or sign
// mismatch, so heading stays estimated from the GNSS track.
func (r *Resolver) yawRef(dvc *isoxml.Device) *timelog.Ref {
	for i := range dvc.Elements {
		el := &dvc.Elements[i]
		if _, ok := dvc.ProcessDataFor(el, isoxml.DDIYaw); ok {
			return &timelog.Ref{Element: el.ID, DDI: isoxml.DDIYaw}
		}
	}
	return nil
}

func describe(dvc *isoxml.Device, el *isoxml.DeviceElement) string {
	device := dvc.Designator
	if device == "" {
		device = dvc.ID
	}
	element := el.Designator
	if element == "" {
		element = el.ID
	}
	return device + " " + element
}
