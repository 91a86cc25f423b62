package timelog

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fieldtrace/isoxml-convert/internal/isoxml"
)

// Fixed header channel names. The decoder special-cases the date and time
// channels: their binary encoding is a day count and a millisecond-of-day
// count rather than a plain scalar.
const (
	ChanTimeStartTOFD      = "TimeStartTOFD"
	ChanTimeStartDATE      = "TimeStartDATE"
	ChanPositionNorth      = "PositionNorth"
	ChanPositionEast       = "PositionEast"
	ChanPositionUp         = "PositionUp"
	ChanPositionStatus     = "PositionStatus"
	ChanPDOP               = "PDOP"
	ChanHDOP               = "HDOP"
	ChanNumberOfSatellites = "NumberOfSatellites"
	ChanGpsUtcTime         = "GpsUtcTime"
	ChanGpsUtcDate         = "GpsUtcDate"
)

type headerChannel struct {
	name string
	kind Kind
}

type dataChannel struct {
	name string
	ref  Ref
	seed int32 // placeholder value, dropped after decoding
}

// Schema is the per-record layout of one time log, derived from its header
// document. Header channels appear in declaration order; data channels in
// first-encounter order of their (element, DDI) identity.
type Schema struct {
	header []headerChannel
	data   []dataChannel
}

// HeaderChannels returns the number of declared header channels.
func (s *Schema) HeaderChannels() int { return len(s.header) }

// DataChannels returns the number of declared data channels.
func (s *Schema) DataChannels() int { return len(s.data) }

// BuildSchema derives the record schema from a time log header document.
// Display names of data channels are resolved against the device description
// graph; when no definition matches, a synthetic name from the raw
// identifiers is used and a warning logged.
func BuildSchema(hdr *isoxml.TimeLogHeader, doc *isoxml.TaskData, logger *slog.Logger) *Schema {
	s := &Schema{}

	if hdr.Start != nil && *hdr.Start == "" {
		s.header = append(s.header,
			headerChannel{ChanTimeStartTOFD, KindString},
			headerChannel{ChanTimeStartDATE, KindString})
	}

	for _, ptn := range hdr.Positions {
		slots := []struct {
			declared *string
			name     string
			kind     Kind
		}{
			{ptn.North, ChanPositionNorth, KindInt32},
			{ptn.East, ChanPositionEast, KindInt32},
			{ptn.Up, ChanPositionUp, KindInt32},
			{ptn.Status, ChanPositionStatus, KindByte},
			{ptn.PDOP, ChanPDOP, KindUInt16},
			{ptn.HDOP, ChanHDOP, KindUInt16},
			{ptn.Satellites, ChanNumberOfSatellites, KindByte},
			{ptn.UTCTime, ChanGpsUtcTime, KindString},
			{ptn.UTCDate, ChanGpsUtcDate, KindString},
		}
		for _, slot := range slots {
			if slot.declared != nil {
				s.header = append(s.header, headerChannel{slot.name, slot.kind})
			}
		}
	}

	seen := make(map[Ref]bool)
	for _, dlv := range hdr.LogValues {
		ddi, err := isoxml.ParseDDI(dlv.DDI)
		if err != nil {
			logger.Warn("skipping data log value with malformed DDI",
				slog.String("ddi", dlv.DDI),
				slog.String("element", dlv.ElementIDRef))
			continue
		}
		ref := Ref{Element: dlv.ElementIDRef, DDI: ddi}
		if seen[ref] {
			continue
		}
		seen[ref] = true

		seed := 0
		if v, err := strconv.Atoi(dlv.Value); err == nil {
			seed = v
		}
		s.data = append(s.data, dataChannel{
			name: displayName(doc, ref, logger),
			ref:  ref,
			seed: int32(seed),
		})
	}

	return s
}

func displayName(doc *isoxml.TaskData, ref Ref, logger *slog.Logger) string {
	dvc, el, ok := doc.DeviceOwningElement(ref.Element)
	if ok {
		var designator string
		if pd, found := dvc.ProcessDataFor(el, ref.DDI); found {
			designator = pd.Designator
		} else if pt, found := dvc.PropertyFor(el, ref.DDI); found {
			designator = pt.Designator
		}
		if designator != "" {
			return fmt.Sprintf("%s_%s_%s", dvc.Designator, el.Designator, designator)
		}
	}

	logger.Warn("no process data definition matches logged value, using raw identifiers",
		slog.String("element", ref.Element),
		slog.Int("ddi", ref.DDI))
	return fmt.Sprintf("%s_%d", ref.Element, ref.DDI)
}
