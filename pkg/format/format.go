// Package format provides human-readable formatting for CLI and log output.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Number formats n with thousand separators.
// Example: Number(1234567) => "1,234,567"
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Count formats n followed by the singular or plural noun.
// Example: Count(1200, "session", "sessions") => "1,200 sessions"
func Count(n int64, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return Number(n) + " " + noun
}

// Percentage formats a percentage value.
// Example: Percentage(45.678, 1) => "45.7%"
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// CronDescription describes the common shapes of a 6-field cron expression
// (seconds minutes hours day-of-month month day-of-week). Expressions it does
// not recognise are returned unchanged.
// Example: CronDescription("0 */5 * * * *") => "Every 5 minutes"
func CronDescription(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 6 {
		return expr
	}
	sec, minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]
	if dom != "*" || month != "*" || dow != "*" {
		return expr
	}

	switch {
	case everyN(sec) > 0 && minute == "*" && hour == "*":
		return plural(everyN(sec), "second")
	case sec == "0" && minute == "*" && hour == "*":
		return "Every minute"
	case sec == "0" && everyN(minute) > 0 && hour == "*":
		return plural(everyN(minute), "minute")
	case sec == "0" && minute == "0" && everyN(hour) > 0:
		return plural(everyN(hour), "hour")
	case sec == "0" && isNumber(minute) && isNumber(hour):
		h, _ := strconv.Atoi(hour)
		m, _ := strconv.Atoi(minute)
		return fmt.Sprintf("Daily at %02d:%02d", h, m)
	}
	return expr
}

// everyN returns N for a "*/N" field and 0 otherwise.
func everyN(field string) int {
	rest, ok := strings.CutPrefix(field, "*/")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func plural(n int, unit string) string {
	if n == 1 {
		return "Every " + unit
	}
	return fmt.Sprintf("Every %d %ss", n, unit)
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
