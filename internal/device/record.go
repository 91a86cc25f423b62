package device

import "github.com/fieldtrace/isoxml-convert/internal/timelog"

// FallbackElement is the element id of the synthetic geometry record that
// collects channels which cannot be attributed to any resolved geometry. It
// is always present and doubles as the raw-antenna trajectory source when
// resolution fails.
const FallbackElement = "original"

// ConnectionType describes how an implement follows the towing vehicle.
type ConnectionType int

const (
	// Mounted implements share the tractor's heading instantaneously.
	Mounted ConnectionType = iota
	// Towed implements follow a hitch kinematic constraint.
	Towed
)

func (c ConnectionType) String() string {
	if c == Towed {
		return "towed"
	}
	return "mounted"
}

// GeometryRecord ties one instrumented device element to the GNSS antenna
// through a chain of frame offsets. Records are built once per task; decode
// and partition append channel data, and the simulator fills HeaderChannels
// with the synthesized trajectory.
type GeometryRecord struct {
	Element     string // device element id, or FallbackElement
	Description string
	Connection  ConnectionType

	// Offsets along the kinematic chain, each in its vehicle's local frame.
	TractorNavigation  Point3 // GNSS antenna relative to the tractor reference point
	TractorConnector   Point3 // hitch point on the tractor
	ImplementConnector Point3 // hitch point on the implement
	ImplementElement   Point3 // instrumented point on the implement

	// YawRef points at a directly measured heading channel (DDI 144) when
	// the tractor declares one. It is extracted but not consumed by the
	// simulator; heading is always estimated from the GNSS track. See the
	// simulator options for the wiring hook.
	YawRef *timelog.Ref

	HeaderChannels timelog.ChannelSet
	DataChannels   timelog.ChannelSet
}

// NewFallbackRecord returns the synthetic all-zero mounted record.
func NewFallbackRecord() *GeometryRecord {
	return &GeometryRecord{
		Element:     FallbackElement,
		Description: FallbackElement,
		Connection:  Mounted,
	}
}

// ClearChannels drops all channel data accumulated for one time log so the
// records can be reused for the next log of the same task.
func (g *GeometryRecord) ClearChannels() {
	g.HeaderChannels = timelog.ChannelSet{}
	g.DataChannels = timelog.ChannelSet{}
}

// Partition attributes each decoded data channel to the record whose element
// logged it, falling back to the synthetic record for channels without a
// matching geometry. With routeAllToFallback set (the -nosimulation mode)
// every channel lands in the fallback bucket.
func Partition(records []*GeometryRecord, data *timelog.ChannelSet, routeAllToFallback bool) {
	var fallback *GeometryRecord
	for _, r := range records {
		if r.Element == FallbackElement {
			fallback = r
		}
	}

	for _, col := range data.Columns {
		target := fallback
		if !routeAllToFallback && col.Ref != nil {
			for _, r := range records {
				if r.Element == col.Ref.Element {
					target = r
					break
				}
			}
		}
		if target != nil {
			target.DataChannels.Add(col)
		}
	}
}
