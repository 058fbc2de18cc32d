package session

import (
	"fmt"
	"math"
)

// FormatPosition renders seconds as m:ss. Minutes are not wrapped into hours.
// Negative and non-finite values render as 0:00.
func FormatPosition(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
