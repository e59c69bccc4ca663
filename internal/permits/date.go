package permits

import (
	"strings"
	"time"
)

// applicationDateLayouts are tried in order. Fractional seconds are accepted
// after the seconds field by time.Parse even though the layouts omit them.
// Offsets may be written as Z, +hh:mm, +hhmm or +hh.
var applicationDateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04",
	"2006-01-02T15Z07:00",
	"2006-01-02T15Z0700",
	"2006-01-02T15Z07",
	"2006-01-02T15",
	"2006-01-02",

	// ISO-8601 basic format.
	"20060102T150405Z0700",
	"20060102T150405Z07",
	"20060102T150405",
	"20060102T1504Z0700",
	"20060102T1504",
	"20060102",
}

// ParseApplicationDate parses an ISO-8601 date or date-time in extended or
// basic format. The date and time may be separated by "T" or a space.
// Values without a zone are taken as UTC. A non-zero offset is kept on the
// returned time so the submitter's local reading survives; a zero offset
// yields a UTC time. Year 0000 is rejected.
func ParseApplicationDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if len(value) > 10 && value[10] == ' ' {
		value = value[:10] + "T" + value[11:]
	} else if len(value) > 8 && value[8] == ' ' {
		value = value[:8] + "T" + value[9:]
	}

	for _, layout := range applicationDateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if t.Year() < 1 {
			return time.Time{}, ErrInvalidDateFormat
		}
		return withFixedOffset(t), nil
	}
	return time.Time{}, ErrInvalidDateFormat
}

// withFixedOffset detaches t from any named location time.Parse may have
// matched, leaving only the numeric offset.
func withFixedOffset(t time.Time) time.Time {
	_, offset := t.Zone()
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}
