// Package duration parses retention-style durations such as "30d" or
// "2 weeks" in addition to Go's standard duration syntax.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

// dayUnits maps day-scale unit spellings to a number of days.
var dayUnits = map[string]int64{
	"w": 7, "wk": 7, "wks": 7, "week": 7, "weeks": 7,
	"d": 1, "day": 1, "days": 1,
}

// wordUnits maps spelled-out units to the short form time.ParseDuration knows.
var wordUnits = map[string]string{
	"hour": "h", "hours": "h", "hr": "h", "hrs": "h",
	"minute": "m", "minutes": "m", "min": "m", "mins": "m",
	"second": "s", "seconds": "s", "sec": "s", "secs": "s",
}

var (
	dayPattern  = regexp.MustCompile(`(?i)(\d+)\s*(weeks?|wks?|w|days?|d)`)
	wordPattern = regexp.MustCompile(`(?i)(\d+)\s*(hours?|hrs?|minutes?|mins?|seconds?|secs?)`)
)

// Parse parses s as a duration. Day and week units are converted to hours
// before the remainder is handed to time.ParseDuration, so "1w2d12h" and
// "30 days" are both accepted.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = strings.TrimSpace(s[1:])
	}

	var days int64
	rest := dayPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := dayPattern.FindStringSubmatch(match)
		n, _ := strconv.ParseInt(m[1], 10, 64)
		days += n * dayUnits[strings.ToLower(m[2])]
		return ""
	})
	rest = wordPattern.ReplaceAllStringFunc(rest, func(match string) string {
		m := wordPattern.FindStringSubmatch(match)
		return m[1] + wordUnits[strings.ToLower(m[2])]
	})
	rest = strings.Join(strings.Fields(rest), "")

	expr := rest
	if days > 0 {
		expr = fmt.Sprintf("%dh", days*24) + rest
	}
	if expr == "" {
		expr = "0s"
	}

	d, err := time.ParseDuration(expr)
	if err != nil {
		return 0, fmt.Errorf("duration: %w", err)
	}
	if negative {
		d = -d
	}
	return d, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders d using week and day units where they apply, omitting zero
// components: 36h becomes "1d12h".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}

	var b strings.Builder
	if w := d / Week; w > 0 {
		fmt.Fprintf(&b, "%dw", w)
		d -= w * Week
	}
	if dd := d / Day; dd > 0 {
		fmt.Fprintf(&b, "%dd", dd)
		d -= dd * Day
	}
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&b, "%dh", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		fmt.Fprintf(&b, "%dm", m)
		d -= m * time.Minute
	}
	if d > 0 {
		b.WriteString(d.String())
	}
	return sign + b.String()
}
