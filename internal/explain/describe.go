package explain

import (
	"fmt"
	"time"

	"github.com/driftstack/drift-monitor/internal/utils"
)

// Describe renders the human-readable change summary for a cause tree. The
// cycle-time sentence is always present; the waiting-time and processing-time
// sentences fall back to "no change" text when that sub-cause is absent.
func Describe(root *CauseNode) string {
	base := fmt.Sprintf(
		"Found a drift in the activity instances cycle time. Average time went from %s to %s.",
		meanPhrase(root.Reference.Mean),
		meanPhrase(root.Running.Mean),
	)

	waiting := "No change in the waiting time was detected."
	if node := root.Child(CauseWaitingTime); node != nil {
		waiting = fmt.Sprintf("Mean waiting time went from %s to %s.",
			meanPhrase(node.Reference.Mean), meanPhrase(node.Running.Mean))
	}

	processing := "No change in the processing time was detected."
	if node := root.Child(CauseProcessing); node != nil {
		processing = fmt.Sprintf("Mean processing time went from %s to %s.",
			meanPhrase(node.Reference.Mean), meanPhrase(node.Running.Mean))
	}

	return fmt.Sprintf("%s\nSpecifically:\n    %s\n    %s\n", base, processing, waiting)
}

func meanPhrase(seconds float64) string {
	return utils.HumanizeDuration(time.Duration(seconds * float64(time.Second)))
}
