package ingest

import (
	"testing"
	"time"

	"github.com/driftstack/drift-monitor/internal/models"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

func TestComputeEnablementSequential(t *testing.T) {
	events := []models.Event{
		{Case: "c1", Activity: "a", Start: at(9, 0), End: at(10, 0)},
		{Case: "c1", Activity: "b", Start: at(11, 0), End: at(12, 0)},
		{Case: "c1", Activity: "c", Start: at(12, 30), End: at(13, 0)},
	}

	events = ComputeEnablement(events)

	if !events[0].Enabled.Equal(at(9, 0)) {
		t.Fatalf("first event Enabled = %s, want own start", events[0].Enabled)
	}
	if !events[1].Enabled.Equal(at(10, 0)) {
		t.Fatalf("b.Enabled = %s, want a's end", events[1].Enabled)
	}
	if !events[2].Enabled.Equal(at(12, 0)) {
		t.Fatalf("c.Enabled = %s, want b's end", events[2].Enabled)
	}
}

func TestComputeEnablementOverlapping(t *testing.T) {
	// b runs concurrently with a, so a cannot have gated it.
	events := []models.Event{
		{Case: "c1", Activity: "a", Start: at(9, 0), End: at(11, 0)},
		{Case: "c1", Activity: "b", Start: at(10, 0), End: at(12, 0)},
	}

	events = ComputeEnablement(events)

	if !events[1].Enabled.Equal(at(10, 0)) {
		t.Fatalf("b.Enabled = %s, want own start", events[1].Enabled)
	}
}

func TestComputeEnablementPicksLatestPredecessor(t *testing.T) {
	events := []models.Event{
		{Case: "c1", Activity: "a", Start: at(8, 0), End: at(9, 0)},
		{Case: "c1", Activity: "b", Start: at(8, 30), End: at(10, 0)},
		{Case: "c1", Activity: "c", Start: at(10, 30), End: at(11, 0)},
	}

	events = ComputeEnablement(events)

	if !events[2].Enabled.Equal(at(10, 0)) {
		t.Fatalf("c.Enabled = %s, want b's end", events[2].Enabled)
	}
}

func TestComputeEnablementIsolatesCases(t *testing.T) {
	events := []models.Event{
		{Case: "c1", Activity: "a", Start: at(9, 0), End: at(10, 0)},
		{Case: "c2", Activity: "b", Start: at(10, 30), End: at(11, 0)},
	}

	events = ComputeEnablement(events)

	if !events[1].Enabled.Equal(at(10, 30)) {
		t.Fatalf("other case leaked into enablement: %s", events[1].Enabled)
	}
}
