package ingest

import (
	"sort"

	"github.com/driftstack/drift-monitor/internal/models"
)

// ComputeEnablement derives enablement timestamps from overlapping activity
// instances. Within a case, an event becomes enabled when the latest
// non-overlapping predecessor finishes; events running concurrently with all
// their predecessors, and the first event of a case, are enabled at their own
// start time. Returns the input slice with Enabled populated.
func ComputeEnablement(events []models.Event) []models.Event {
	byCase := make(map[string][]int)
	for i, event := range events {
		byCase[event.Case] = append(byCase[event.Case], i)
	}

	for _, indexes := range byCase {
		sort.SliceStable(indexes, func(a, b int) bool {
			return events[indexes[a]].Start.Before(events[indexes[b]].Start)
		})

		for pos, idx := range indexes {
			enabled := events[idx].Start
			found := false
			for _, prev := range indexes[:pos] {
				end := events[prev].End
				if end.After(events[idx].Start) {
					// Overlapping predecessor: it did not gate this event.
					continue
				}
				if !found || end.After(enabled) {
					enabled = end
					found = true
				}
			}
			events[idx].Enabled = enabled
		}
	}
	return events
}
