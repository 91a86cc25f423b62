// Package timelog decodes ISO 11783 binary time logs into typed channel
// tables. A time log consists of a per-record fixed header block, described
// by the TLG header document, followed by a delta-encoded block of process
// data values that only transmits channels which changed since the previous
// record.
package timelog

import (
	"fmt"
	"strconv"
)

// Kind enumerates the scalar types a channel column can hold. The set is
// closed: decoding dispatches over the kind, there is no reflection.
type Kind uint8

const (
	KindString Kind = iota
	KindByte
	KindInt16
	KindInt32
	KindUInt16
	KindUInt32
	KindUInt64
)

// Width returns the encoded size of one value in bytes. String kinds have no
// fixed width and return 0; their encoding is channel-name specific.
func (k Kind) Width() int {
	switch k {
	case KindByte:
		return 1
	case KindInt16, KindUInt16:
		return 2
	case KindInt32, KindUInt32:
		return 4
	case KindUInt64:
		return 8
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindByte:
		return "byte"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindUInt16:
		return "uint16"
	case KindUInt32:
		return "uint32"
	case KindUInt64:
		return "uint64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Ref identifies a process-data channel by the device element that logged it
// and the data dictionary identifier (DDI) of what was measured. Geometry
// offsets that are logged rather than constant carry a Ref instead of a
// value, and the simulator resolves them against the decoded channels.
type Ref struct {
	Element string // device element id, e.g. "DET-1"
	DDI     int    // data dictionary identifier
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Element, r.DDI)
}

// Column is a single named channel: a growable sequence of one scalar kind.
// Process-data columns additionally carry the Ref they were logged under.
// Only the slice matching Kind is ever populated.
type Column struct {
	Name string
	Kind Kind
	Ref  *Ref // nil for header channels

	strs []string
	u8s  []uint8
	i16s []int16
	i32s []int32
	u16s []uint16
	u32s []uint32
	u64s []uint64
}

// NewColumn returns an empty column of the given kind.
func NewColumn(name string, kind Kind) *Column {
	return &Column{Name: name, Kind: kind}
}

// NewDataColumn returns an empty process-data column. Process data values
// are 32-bit signed integers by format definition, so the kind is fixed.
func NewDataColumn(name string, ref Ref) *Column {
	return &Column{Name: name, Kind: KindInt32, Ref: &ref}
}

// Len returns the number of rows in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindString:
		return len(c.strs)
	case KindByte:
		return len(c.u8s)
	case KindInt16:
		return len(c.i16s)
	case KindInt32:
		return len(c.i32s)
	case KindUInt16:
		return len(c.u16s)
	case KindUInt32:
		return len(c.u32s)
	default:
		return len(c.u64s)
	}
}

// AppendString appends a value to a string column.
func (c *Column) AppendString(v string) { c.strs = append(c.strs, v) }

// AppendByte appends a value to a byte column.
func (c *Column) AppendByte(v uint8) { c.u8s = append(c.u8s, v) }

// AppendInt16 appends a value to an int16 column.
func (c *Column) AppendInt16(v int16) { c.i16s = append(c.i16s, v) }

// AppendInt32 appends a value to an int32 column.
func (c *Column) AppendInt32(v int32) { c.i32s = append(c.i32s, v) }

// AppendUInt16 appends a value to a uint16 column.
func (c *Column) AppendUInt16(v uint16) { c.u16s = append(c.u16s, v) }

// AppendUInt32 appends a value to a uint32 column.
func (c *Column) AppendUInt32(v uint32) { c.u32s = append(c.u32s, v) }

// AppendUInt64 appends a value to a uint64 column.
func (c *Column) AppendUInt64(v uint64) { c.u64s = append(c.u64s, v) }

// StringAt returns the value at row i of a string column.
func (c *Column) StringAt(i int) string { return c.strs[i] }

// Int32At returns the value at row i of an int32 column.
func (c *Column) Int32At(i int) int32 { return c.i32s[i] }

// LastInt32 returns the last value of an int32 column, or 0 when empty.
func (c *Column) LastInt32() int32 {
	if len(c.i32s) == 0 {
		return 0
	}
	return c.i32s[len(c.i32s)-1]
}

// DropFirst removes the first row. Used to discard the placeholder row that
// seeds every process-data column before decoding.
func (c *Column) DropFirst() {
	if c.Len() == 0 {
		return
	}
	switch c.Kind {
	case KindString:
		c.strs = c.strs[1:]
	case KindByte:
		c.u8s = c.u8s[1:]
	case KindInt16:
		c.i16s = c.i16s[1:]
	case KindInt32:
		c.i32s = c.i32s[1:]
	case KindUInt16:
		c.u16s = c.u16s[1:]
	case KindUInt32:
		c.u32s = c.u32s[1:]
	default:
		c.u64s = c.u64s[1:]
	}
}

// ValueString formats the value at row i using the natural formatting of the
// column's scalar kind.
func (c *Column) ValueString(i int) string {
	switch c.Kind {
	case KindString:
		return c.strs[i]
	case KindByte:
		return strconv.FormatUint(uint64(c.u8s[i]), 10)
	case KindInt16:
		return strconv.FormatInt(int64(c.i16s[i]), 10)
	case KindInt32:
		return strconv.FormatInt(int64(c.i32s[i]), 10)
	case KindUInt16:
		return strconv.FormatUint(uint64(c.u16s[i]), 10)
	case KindUInt32:
		return strconv.FormatUint(uint64(c.u32s[i]), 10)
	default:
		return strconv.FormatUint(c.u64s[i], 10)
	}
}

// Clone returns a deep copy of the column.
func (c *Column) Clone() *Column {
	d := &Column{Name: c.Name, Kind: c.Kind, Ref: c.Ref}
	d.strs = append([]string(nil), c.strs...)
	d.u8s = append([]uint8(nil), c.u8s...)
	d.i16s = append([]int16(nil), c.i16s...)
	d.i32s = append([]int32(nil), c.i32s...)
	d.u16s = append([]uint16(nil), c.u16s...)
	d.u32s = append([]uint32(nil), c.u32s...)
	d.u64s = append([]uint64(nil), c.u64s...)
	return d
}

// ChannelSet is an ordered collection of columns. After decoding completes
// all columns in a set have equal length, one row per decoded record.
type ChannelSet struct {
	Columns []*Column
}

// Add appends a column to the set.
func (s *ChannelSet) Add(c *Column) { s.Columns = append(s.Columns, c) }

// Rows returns the row count of the set, which is the length of its first
// column. An empty set has zero rows.
func (s *ChannelSet) Rows() int {
	if len(s.Columns) == 0 {
		return 0
	}
	return s.Columns[0].Len()
}

// ByName returns the first column with the given name, or nil.
func (s *ChannelSet) ByName(name string) *Column {
	for _, c := range s.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ByRef returns the columns whose Ref matches r. The simulator requires a
// unique match; callers decide how to treat zero or multiple results.
func (s *ChannelSet) ByRef(r Ref) []*Column {
	var out []*Column
	for _, c := range s.Columns {
		if c.Ref != nil && *c.Ref == r {
			out = append(out, c)
		}
	}
	return out
}
