package output

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

// WriteGML emits one feature member per sample with a 3-D point in degrees
// and metres (longitude and latitude descaled by 1e-7, height by 1e-3) and
// every non-position channel as a sibling element. The header set must
// contain the three position channels.
func WriteGML(w io.Writer, header, data *timelog.ChannelSet) error {
	north := header.ByName(timelog.ChanPositionNorth)
	east := header.ByName(timelog.ChanPositionEast)
	up := header.ByName(timelog.ChanPositionUp)
	if north == nil || east == nil || up == nil {
		return fmt.Errorf("position channels missing, cannot write GML")
	}

	var siblings []*timelog.Column
	for _, c := range header.Columns {
		switch c.Name {
		case timelog.ChanPositionNorth, timelog.ChanPositionEast, timelog.ChanPositionUp:
			continue
		}
		siblings = append(siblings, c)
	}
	siblings = append(siblings, data.Columns...)

	rows := header.Rows()
	if len(data.Columns) > 0 && data.Rows() != rows {
		return fmt.Errorf("row count mismatch: %d header rows, %d data rows", rows, data.Rows())
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(xml.Header)
	bw.WriteString(`<gml:FeatureCollection xmlns:gml="http://www.opengis.net/gml">` + "\n")

	for row := 0; row < rows; row++ {
		lon := float64(east.Int32At(row)) * 1e-7
		lat := float64(north.Int32At(row)) * 1e-7
		height := float64(up.Int32At(row)) * 1e-3

		bw.WriteString("  <gml:featureMember>\n    <trackPoint>\n")
		fmt.Fprintf(bw, "      <gml:Point srsName=\"EPSG:4326\"><gml:coordinates>%g,%g,%g</gml:coordinates></gml:Point>\n",
			lon, lat, height)
		for _, c := range siblings {
			name := SanitizeName(c.Name)
			bw.WriteString("      <" + name + ">")
			xml.EscapeText(bw, []byte(c.ValueString(row)))
			bw.WriteString("</" + name + ">\n")
		}
		bw.WriteString("    </trackPoint>\n  </gml:featureMember>\n")
	}

	bw.WriteString("</gml:FeatureCollection>\n")
	return bw.Flush()
}

// SanitizeName makes a channel name usable as an XML element name: spaces,
// ampersands and parentheses become underscores and a leading digit gets an
// X prefix.
func SanitizeName(name string) string {
	r := strings.NewReplacer(" ", "_", "&", "_", "(", "_", ")", "_")
	name = r.Replace(name)
	if name == "" {
		return "X"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "X" + name
	}
	return name
}
