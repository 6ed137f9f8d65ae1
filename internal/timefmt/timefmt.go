// Package timefmt renders stored timestamps for display according to the
// user's persisted preferences.
package timefmt

import (
	"fmt"
	"strings"
	"time"

	"expensetrack/internal/config"
)

const defaultLayout = "2006-01-02 15:04:05 MST"

// Format renders ts per the display preferences: in UTC, in a chosen or
// system-local timezone, optionally through a custom layout, optionally with
// a short relative-time suffix. A zero ts renders as the empty string.
func Format(ts time.Time, prefs config.Preferences) string {
	if ts.IsZero() {
		return ""
	}

	var out time.Time
	layout := defaultLayout
	switch prefs.TimestampMode {
	case "utc":
		out = ts.UTC()
	case "custom":
		out = ts.In(location(prefs.Timezone))
		if prefs.CustomFormat != "" {
			layout = prefs.CustomFormat
		}
	default: // "local"
		out = ts.In(location(prefs.Timezone))
	}

	formatted := out.Format(layout)
	if prefs.ShowRelative {
		if rel := Relative(out, time.Now()); rel != "" {
			formatted = fmt.Sprintf("%s (%s)", formatted, rel)
		}
	}
	return formatted
}

// Relative returns a short humanized offset such as "5s ago", "3h ago" or
// "2d from now". A zero ts yields the empty string.
func Relative(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	delta := now.Sub(ts)
	past := delta >= 0
	if !past {
		delta = -delta
	}
	secs := int64(delta.Seconds())

	var span string
	switch {
	case secs < 60:
		span = fmt.Sprintf("%ds", secs)
	case secs < 3600:
		span = fmt.Sprintf("%dm", secs/60)
	case secs < 86400:
		span = fmt.Sprintf("%dh", secs/3600)
	default:
		span = fmt.Sprintf("%dd", secs/86400)
	}
	if past {
		return span + " ago"
	}
	return span + " from now"
}

// location resolves "system" (or an empty name) to the local zone and falls
// back to it when the IANA name is unknown.
func location(name string) *time.Location {
	if name == "" || name == "system" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// popularTimezones is a curated selection for quick pickers; the standard
// library has no way to enumerate the IANA database.
var popularTimezones = []string{
	"UTC",
	"Europe/London",
	"America/New_York",
	"Europe/Paris",
	"Asia/Tokyo",
	"Asia/Shanghai",
	"Australia/Sydney",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Sao_Paulo",
	"America/Mexico_City",
	"America/Toronto",
	"Europe/Berlin",
	"Europe/Madrid",
	"Europe/Rome",
	"Europe/Amsterdam",
	"Europe/Stockholm",
	"Europe/Moscow",
	"Europe/Istanbul",
	"Africa/Cairo",
	"Africa/Johannesburg",
	"Africa/Lagos",
	"Asia/Dubai",
	"Asia/Kolkata",
	"Asia/Singapore",
	"Asia/Hong_Kong",
	"Asia/Seoul",
	"Asia/Bangkok",
	"Asia/Jakarta",
	"Pacific/Auckland",
	"Australia/Melbourne",
	"Australia/Perth",
}

// SampleTimezones returns a short list for quick selection, with "system"
// first when requested.
func SampleTimezones(limit int, includeSystem bool) []string {
	zones := popularTimezones
	if limit > 0 && limit < len(zones) {
		zones = zones[:limit]
	}
	out := make([]string, 0, len(zones)+1)
	if includeSystem {
		out = append(out, "system")
	}
	return append(out, zones...)
}

// SearchTimezones ranks the known zones against a query: substring matches
// first, then looser in-order character matches. "system" and "UTC" always
// lead the result. An empty query falls back to the sample list.
func SearchTimezones(query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return SampleTimezones(limit, true)
	}

	var subs, fuzzy []string
	for _, tz := range popularTimezones {
		lower := strings.ToLower(tz)
		switch {
		case strings.Contains(lower, q):
			subs = append(subs, tz)
		case subsequenceMatch(lower, q):
			fuzzy = append(fuzzy, tz)
		}
	}

	out := []string{"system", "UTC"}
	for _, tz := range append(subs, fuzzy...) {
		if tz == "UTC" {
			continue
		}
		if limit > 0 && len(out) >= limit+2 {
			break
		}
		out = append(out, tz)
	}
	return out
}

// subsequenceMatch reports whether every rune of q appears in s in order.
func subsequenceMatch(s, q string) bool {
	i := 0
	for _, r := range s {
		if i < len(q) && rune(q[i]) == r {
			i++
		}
	}
	return i == len(q)
}
