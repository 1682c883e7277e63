package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status tags for ExecutionStatus snapshots.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ProgressFailed is the progress sentinel carried by failure snapshots.
const ProgressFailed = -1

// TimeWindow is a [start, end) interval of the event log.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the window is unset.
func (w TimeWindow) IsZero() bool { return w.Start.IsZero() && w.End.IsZero() }

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// MarshalJSON renders the window as a [start, end] pair of ISO-8601
// timestamps, or [] when unset.
func (w TimeWindow) MarshalJSON() ([]byte, error) {
	if w.IsZero() {
		return []byte("[]"), nil
	}
	pair := [2]string{
		w.Start.UTC().Format(time.RFC3339),
		w.End.UTC().Format(time.RFC3339),
	}
	return json.Marshal(pair)
}

// UnmarshalJSON accepts the [start, end] pair form produced by MarshalJSON.
func (w *TimeWindow) UnmarshalJSON(data []byte) error {
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("decode time window: %w", err)
	}
	if len(parts) == 0 {
		*w = TimeWindow{}
		return nil
	}
	if len(parts) != 2 {
		return fmt.Errorf("time window needs two timestamps, got %d", len(parts))
	}
	start, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return fmt.Errorf("decode window start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return fmt.Errorf("decode window end: %w", err)
	}
	*w = TimeWindow{Start: start, End: end}
	return nil
}

// Status captures the externally visible phase of one run.
type Status struct {
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Progress   int        `json:"progress"`
	CurrentRef TimeWindow `json:"currentRef"`
	CurrentRun TimeWindow `json:"currentRun"`
}

// ExecutionStatus is the unit of notification and persistence. Every emission
// is a full, self-contained snapshot, never a delta.
type ExecutionStatus struct {
	Status         Status          `json:"status"`
	StartDate      time.Time       `json:"startDate"`
	LastUpdateDate time.Time       `json:"lastUpdateDate"`
	Drifts         []DriftOverview `json:"drifts"`
}
