// Package isoxml models the parts of an ISO 11783-10 task data set that the
// converter consumes: tasks with their time logs and device connections, and
// the device description graph (devices, elements, object references,
// process data definitions). Attribute names follow the single-letter
// convention of the standard.
package isoxml

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// Device element types (DET attribute C).
const (
	ElementTypeDevice     = 1 // device reference point, the tree root
	ElementTypeFunction   = 2
	ElementTypeBin        = 3
	ElementTypeSection    = 4
	ElementTypeUnit       = 5
	ElementTypeConnector  = 6
	ElementTypeNavigation = 7 // carries the GNSS antenna
)

// Geometry and orientation DDIs used by the resolver.
const (
	DDIOffsetX = 134 // 0x86
	DDIOffsetY = 135 // 0x87
	DDIOffsetZ = 136 // 0x88
	DDIYaw     = 144 // 0x90
)

// TaskData is the root of a parsed, merged task data set.
type TaskData struct {
	XMLName    xml.Name          `xml:"ISO11783_TaskData"`
	Tasks      []Task            `xml:"TSK"`
	Devices    []Device          `xml:"DVC"`
	Farms      []Farm            `xml:"FRM"`
	Partfields []Partfield       `xml:"PFD"`
	External   []ExternalFileRef `xml:"XFR"`
}

// Task is one unit of field work, referencing time logs and connections.
type Task struct {
	ID            string       `xml:"A,attr"`
	Designator    string       `xml:"B,attr"`
	CustomerIDRef string       `xml:"C,attr"`
	FarmIDRef     string       `xml:"D,attr"`
	PartfieldRef  string       `xml:"E,attr"`
	Status        string       `xml:"G,attr"`
	TimeLogs      []TimeLogRef `xml:"TLG"`
	Connections   []Connection `xml:"CNN"`
}

// TimeLogRef names one binary time log and its header document.
type TimeLogRef struct {
	Filename string `xml:"A,attr"`
	Type     string `xml:"C,attr"`
}

// Connection pairs two devices' connector elements, modelling a physical
// hitch between a towing vehicle and an implement.
type Connection struct {
	DeviceIDRef0  string `xml:"A,attr"`
	ElementIDRef0 string `xml:"B,attr"`
	DeviceIDRef1  string `xml:"C,attr"`
	ElementIDRef1 string `xml:"D,attr"`
}

// Device is the top level of a device description: a tree of elements plus
// the process data definitions they reference.
type Device struct {
	ID             string          `xml:"A,attr"`
	Designator     string          `xml:"B,attr"`
	SoftwareVer    string          `xml:"C,attr"`
	ClientNAME     string          `xml:"D,attr"`
	SerialNumber   string          `xml:"E,attr"`
	StructureLabel string          `xml:"F,attr"`
	Elements       []DeviceElement `xml:"DET"`
	ProcessData    []ProcessData   `xml:"DPD"`
	Properties     []Property      `xml:"DPT"`
}

// DeviceElement is a node in the device tree. Elements reference process
// data objects through DOR children.
type DeviceElement struct {
	ID         string            `xml:"A,attr"`
	ObjectID   string            `xml:"B,attr"`
	Type       int               `xml:"C,attr"`
	Designator string            `xml:"D,attr"`
	Number     string            `xml:"E,attr"`
	ParentID   string            `xml:"F,attr"`
	References []ObjectReference `xml:"DOR"`
}

// ObjectReference links a device element to a process data object by id.
type ObjectReference struct {
	ObjectIDRef string `xml:"A,attr"`
}

// ProcessData (DPD) declares a dynamically logged value.
type ProcessData struct {
	ObjectID   string `xml:"A,attr"`
	DDI        string `xml:"B,attr"` // hex encoded
	Properties string `xml:"C,attr"`
	Trigger    string `xml:"D,attr"`
	Designator string `xml:"E,attr"`
}

// Property (DPT) declares a fixed constant value.
type Property struct {
	ObjectID   string `xml:"A,attr"`
	DDI        string `xml:"B,attr"` // hex encoded
	Value      string `xml:"C,attr"`
	Designator string `xml:"D,attr"`
}

// Farm metadata, used for output naming only.
type Farm struct {
	ID         string `xml:"A,attr"`
	Designator string `xml:"B,attr"`
}

// Partfield metadata, used for output naming only.
type Partfield struct {
	ID         string `xml:"A,attr"`
	Code       string `xml:"B,attr"`
	Designator string `xml:"C,attr"`
}

// ExternalFileRef points at a fragment file holding additional top level
// elements, merged into the task data set at load time.
type ExternalFileRef struct {
	Filename string `xml:"A,attr"`
	Type     string `xml:"B,attr"`
}

// externalFileContents is the root of an XFR fragment file.
type externalFileContents struct {
	XMLName    xml.Name    `xml:"XFC"`
	Tasks      []Task      `xml:"TSK"`
	Devices    []Device    `xml:"DVC"`
	Farms      []Farm      `xml:"FRM"`
	Partfields []Partfield `xml:"PFD"`
}

// TimeLogHeader is the per time log schema document (TLGxxxxx.XML). A
// declared-but-empty Start attribute means each binary record begins with a
// timestamp. Position templates declare which fix attributes are present,
// and DLV entries declare the process data channels.
type TimeLogHeader struct {
	XMLName   xml.Name           `xml:"TIM"`
	Start     *string            `xml:"A,attr"`
	Positions []PositionTemplate `xml:"PTN"`
	LogValues []DataLogValue     `xml:"DLV"`
}

// PositionTemplate declares presence of fix attributes by slot A-I. An
// attribute that appears in the document, even empty, declares its channel.
type PositionTemplate struct {
	North      *string `xml:"A,attr"`
	East       *string `xml:"B,attr"`
	Up         *string `xml:"C,attr"`
	Status     *string `xml:"D,attr"`
	PDOP       *string `xml:"E,attr"`
	HDOP       *string `xml:"F,attr"`
	Satellites *string `xml:"G,attr"`
	UTCTime    *string `xml:"H,attr"`
	UTCDate    *string `xml:"I,attr"`
}

// DataLogValue declares one logged process data channel.
type DataLogValue struct {
	DDI          string `xml:"A,attr"` // hex encoded
	Value        string `xml:"B,attr"` // first declared literal
	ElementIDRef string `xml:"C,attr"`
}

// ParseDDI parses a hex encoded DDI attribute such as "0086".
func ParseDDI(s string) (int, error) {
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing DDI %q: %w", s, err)
	}
	return int(v), nil
}

// DeviceByID returns the device with the given id.
func (t *TaskData) DeviceByID(id string) (*Device, bool) {
	for i := range t.Devices {
		if t.Devices[i].ID == id {
			return &t.Devices[i], true
		}
	}
	return nil, false
}

// DeviceOwningElement returns the device containing the element with the
// given id, along with the element itself.
func (t *TaskData) DeviceOwningElement(elementID string) (*Device, *DeviceElement, bool) {
	for i := range t.Devices {
		if el, ok := t.Devices[i].ElementByID(elementID); ok {
			return &t.Devices[i], el, true
		}
	}
	return nil, nil, false
}

// FarmByID returns the farm with the given id.
func (t *TaskData) FarmByID(id string) (*Farm, bool) {
	for i := range t.Farms {
		if t.Farms[i].ID == id {
			return &t.Farms[i], true
		}
	}
	return nil, false
}

// PartfieldByID returns the partfield with the given id.
func (t *TaskData) PartfieldByID(id string) (*Partfield, bool) {
	for i := range t.Partfields {
		if t.Partfields[i].ID == id {
			return &t.Partfields[i], true
		}
	}
	return nil, false
}

// ElementByID returns the element with the given id.
func (d *Device) ElementByID(id string) (*DeviceElement, bool) {
	for i := range d.Elements {
		if d.Elements[i].ID == id {
			return &d.Elements[i], true
		}
	}
	return nil, false
}

// ElementOfType returns the first element with the given type code.
func (d *Device) ElementOfType(elementType int) (*DeviceElement, bool) {
	for i := range d.Elements {
		if d.Elements[i].Type == elementType {
			return &d.Elements[i], true
		}
	}
	return nil, false
}

// ProcessDataFor returns the DPD referenced by the element that carries the
// given DDI, if any.
func (d *Device) ProcessDataFor(el *DeviceElement, ddi int) (*ProcessData, bool) {
	for _, ref := range el.References {
		for i := range d.ProcessData {
			pd := &d.ProcessData[i]
			if pd.ObjectID != ref.ObjectIDRef {
				continue
			}
			if v, err := ParseDDI(pd.DDI); err == nil && v == ddi {
				return pd, true
			}
		}
	}
	return nil, false
}

// PropertyFor returns the DPT referenced by the element that carries the
// given DDI, if any.
func (d *Device) PropertyFor(el *DeviceElement, ddi int) (*Property, bool) {
	for _, ref := range el.References {
		for i := range d.Properties {
			pt := &d.Properties[i]
			if pt.ObjectID != ref.ObjectIDRef {
				continue
			}
			if v, err := ParseDDI(pt.DDI); err == nil && v == ddi {
				return pt, true
			}
		}
	}
	return nil, false
}
