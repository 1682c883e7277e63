package runner

import (
	"time"

	"github.com/driftstack/drift-monitor/internal/detect"
)

// Progress recomputes the processed duration for an outcome and decides
// whether it deserves a snapshot. Outcomes that did not advance the running
// window's end are suppressed, except confirmations: a confirmation carries a
// new drift even when the running window is unchanged.
func Progress(lastProcessed time.Duration, outcome detect.Outcome, startDate time.Time, timespan time.Duration) (emit bool, processed time.Duration, percent int) {
	processed = outcome.Running.End.Sub(startDate)
	emit = processed != lastProcessed || outcome.Level == detect.LevelConfirmed
	return emit, processed, Percent(processed, timespan)
}

// Percent converts a processed duration into a 0-100 progress value, rounding
// down.
func Percent(processed, timespan time.Duration) int {
	if timespan <= 0 {
		return 100
	}
	percent := int(int64(processed) * 100 / int64(timespan))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
