package timelog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// ErrNoChannels is returned when a time log declares no header channels at
// all: the decoder cannot frame records and the log is unrecoverable.
var ErrNoChannels = errors.New("time log declares no header channels")

// Days in the GpsUtcDate and TimeStartDATE channels count from this epoch.
var dateEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Decode reads binary time log records according to the schema and returns
// the header and data channel tables. One record is one value per header
// channel in declaration order, followed by a delta block updating the data
// channels: a count byte, then (index, int32 value) pairs overwriting a
// carry-forward vector that is appended in full to every data channel.
//
// Decoding stops when the stream is exhausted; a record cut off mid-way is
// discarded so all columns keep equal lengths. The placeholder row seeding
// the data channels is removed before returning.
func Decode(schema *Schema, r io.Reader) (header, data *ChannelSet, err error) {
	if len(schema.header) == 0 {
		return nil, nil, ErrNoChannels
	}

	header = &ChannelSet{}
	for _, hc := range schema.header {
		header.Add(NewColumn(hc.name, hc.kind))
	}
	data = &ChannelSet{}
	last := make([]int32, len(schema.data))
	for i, dc := range schema.data {
		col := NewDataColumn(dc.name, dc.ref)
		col.AppendInt32(dc.seed)
		data.Add(col)
		last[i] = dc.seed
	}

	br := bufio.NewReader(r)
	scratch := make([]value, len(schema.header))

	for {
		if !readRecord(br, schema, scratch, last) {
			break
		}

		// Commit the record only once it has been read in full.
		for i, hc := range schema.header {
			scratch[i].appendTo(header.Columns[i], hc.kind)
		}
		for i, col := range data.Columns {
			col.AppendInt32(last[i])
		}
	}

	for _, col := range data.Columns {
		col.DropFirst()
	}
	return header, data, nil
}

// value is one decoded header scalar before it is committed to a column.
type value struct {
	s string
	u uint64
}

func (v value) appendTo(c *Column, kind Kind) {
	switch kind {
	case KindString:
		c.AppendString(v.s)
	case KindByte:
		c.AppendByte(uint8(v.u))
	case KindInt16:
		c.AppendInt16(int16(v.u))
	case KindInt32:
		c.AppendInt32(int32(v.u))
	case KindUInt16:
		c.AppendUInt16(uint16(v.u))
	case KindUInt32:
		c.AppendUInt32(uint32(v.u))
	default:
		c.AppendUInt64(v.u)
	}
}

// readRecord reads one full record into scratch and last, returning false
// when the stream ends before the record completes.
func readRecord(br *bufio.Reader, schema *Schema, scratch []value, last []int32) bool {
	for i, hc := range schema.header {
		v, ok := readHeaderValue(br, hc)
		if !ok {
			return false
		}
		scratch[i] = v
	}

	count, err := br.ReadByte()
	if err != nil {
		return false
	}
	var pair [5]byte
	for n := 0; n < int(count); n++ {
		if _, err := io.ReadFull(br, pair[:]); err != nil {
			return false
		}
		idx := int(pair[0])
		if idx < len(last) {
			last[idx] = int32(binary.LittleEndian.Uint32(pair[1:]))
		}
	}
	return true
}

func readHeaderValue(br *bufio.Reader, hc headerChannel) (value, bool) {
	switch hc.name {
	case ChanTimeStartDATE, ChanGpsUtcDate:
		// Unsigned day offset from 1980-01-01.
		days, ok := readUint(br, 2)
		if !ok {
			return value{}, false
		}
		return value{s: dateEpoch.AddDate(0, 0, int(days)).Format(time.DateOnly)}, true

	case ChanTimeStartTOFD, ChanGpsUtcTime:
		// Unsigned millisecond-of-day count.
		ms, ok := readUint(br, 4)
		if !ok {
			return value{}, false
		}
		return value{s: dateEpoch.Add(time.Duration(ms) * time.Millisecond).Format("15:04:05.000")}, true

	default:
		u, ok := readUint(br, hc.kind.Width())
		if !ok {
			return value{}, false
		}
		return value{u: u}, true
	}
}

func readUint(br *bufio.Reader, width int) (uint64, bool) {
	var buf [8]byte
	if _, err := io.ReadFull(br, buf[:width]); err != nil {
		return 0, false
	}
	return binary.LittleEndian.Uint64(buf[:]), true
}
