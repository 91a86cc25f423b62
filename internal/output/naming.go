package output

import (
	"strings"

	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

// invalid filename characters, the union of what the usual platforms
// reject.
const invalidFilenameChars = `/\:*?"<>|`

// BaseName builds the output file base name: farm, field and task names,
// the per-geometry description, and the first decoded date and time of the
// log, with colons replaced so the time survives as a filename.
func BaseName(farm, field, task, description string, header *timelog.ChannelSet) string {
	parts := []string{farm, field, task, description}

	if header != nil {
		if c := header.ByName(timelog.ChanTimeStartDATE); c != nil && c.Len() > 0 {
			parts = append(parts, c.StringAt(0))
		}
		if c := header.ByName(timelog.ChanTimeStartTOFD); c != nil && c.Len() > 0 {
			parts = append(parts, strings.ReplaceAll(c.StringAt(0), ":", "."))
		}
	}

	var keep []string
	for _, p := range parts {
		if p != "" {
			keep = append(keep, p)
		}
	}

	name := strings.Join(keep, "_")
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidFilenameChars, r) {
			return -1
		}
		return r
	}, name)
}
