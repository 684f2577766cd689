package voting

import (
	"regexp"
	"strings"
	"time"
)

// ISOLayout matches the millisecond UTC form the portal writes.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// humanDate matches dates such as "August 24, 2025 at 12:15 PM UTC".
var humanDate = regexp.MustCompile(`^(\w+ \d+, \d+) at (\d+:\d+ (?:AM|PM)) UTC$`)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

var humanLayouts = []string{
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
}

// ParseTimestamp accepts an ISO timestamp or the human-readable UTC form.
// Values without a zone are read as UTC.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	if m := humanDate.FindStringSubmatch(raw); m != nil {
		for _, layout := range humanLayouts {
			if t, err := time.ParseInLocation(layout, m[1]+" "+m[2], time.UTC); err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}
