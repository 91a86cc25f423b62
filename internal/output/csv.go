// Package output serializes converted trajectories: a semicolon-delimited
// row writer, a GML point-feature writer, and the output naming scheme.
package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

// WriteCSV emits a `;`-delimited header row of channel names followed by
// one row per sample, header channels first, then data channels. Values use
// each channel's natural scalar formatting; no quoting or escaping is
// applied, which is why this does not go through encoding/csv.
func WriteCSV(w io.Writer, header, data *timelog.ChannelSet) error {
	cols := make([]*timelog.Column, 0, len(header.Columns)+len(data.Columns))
	cols = append(cols, header.Columns...)
	cols = append(cols, data.Columns...)
	if len(cols) == 0 {
		return nil
	}

	rows := header.Rows()
	if len(data.Columns) > 0 && data.Rows() != rows {
		return fmt.Errorf("row count mismatch: %d header rows, %d data rows", rows, data.Rows())
	}

	bw := bufio.NewWriter(w)
	for i, c := range cols {
		if i > 0 {
			bw.WriteByte(';')
		}
		bw.WriteString(c.Name)
	}
	bw.WriteByte('\n')

	for row := 0; row < rows; row++ {
		for i, c := range cols {
			if i > 0 {
				bw.WriteByte(';')
			}
			bw.WriteString(c.ValueString(row))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
