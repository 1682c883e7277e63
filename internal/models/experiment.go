package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/driftstack/drift-monitor/internal/utils"
)

// EnablementDiscover is the sentinel mapping value requesting that enablement
// timestamps be computed by the concurrency oracle instead of read from a
// column.
const EnablementDiscover = "__DISCOVER__"

// AlgorithmConfiguration fixes the detection parameters for one experiment.
// Immutable after submission.
type AlgorithmConfiguration struct {
	WindowSize     time.Duration
	DriftMagnitude time.Duration
	Warnings       int
}

// EventMapping assigns column roles for log ingestion. It is opaque to the
// orchestration core and only interpreted by the ingestion layer.
type EventMapping struct {
	Case       string
	Activity   string
	Resource   string
	Start      string
	End        string
	Enablement string
	Attributes []string
}

// Experiment describes one drift-monitoring request. One Experiment drives
// exactly one runner execution.
type Experiment struct {
	ID        string
	Logs      []string
	Email     string
	Submitted time.Time
	Config    AlgorithmConfiguration
	Mapping   EventMapping
}

// DecodeExperiment parses an inbound request message. Durations arrive as
// human-readable strings such as "7d".
func DecodeExperiment(data []byte) (Experiment, error) {
	var raw struct {
		Logs      []string `json:"logs"`
		ID        string   `json:"id"`
		Email     string   `json:"email"`
		Submitted string   `json:"submitted"`
		Config    struct {
			WindowSize     string `json:"window_size"`
			DriftMagnitude string `json:"drift_magnitude"`
			Warnings       int    `json:"warnings"`
		} `json:"config"`
		Mapping struct {
			Case       string   `json:"case"`
			Activity   string   `json:"activity"`
			Resource   string   `json:"resource"`
			Start      string   `json:"start"`
			End        string   `json:"end"`
			Enablement string   `json:"enablement"`
			Attributes []string `json:"attributes"`
		} `json:"mapping"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return Experiment{}, fmt.Errorf("decode experiment: %w", err)
	}
	if raw.ID == "" {
		return Experiment{}, fmt.Errorf("experiment id is required")
	}
	if len(raw.Logs) == 0 {
		return Experiment{}, fmt.Errorf("experiment %s lists no log sources", raw.ID)
	}

	windowSize, err := utils.ParseHumanDuration(raw.Config.WindowSize)
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment %s: window size: %w", raw.ID, err)
	}
	magnitude, err := utils.ParseHumanDuration(raw.Config.DriftMagnitude)
	if err != nil {
		return Experiment{}, fmt.Errorf("experiment %s: drift magnitude: %w", raw.ID, err)
	}
	if raw.Config.Warnings < 1 {
		return Experiment{}, fmt.Errorf("experiment %s: warnings must be positive, got %d", raw.ID, raw.Config.Warnings)
	}

	var submitted time.Time
	if raw.Submitted != "" {
		submitted, err = utils.ParseRFC3339(raw.Submitted)
		if err != nil {
			return Experiment{}, fmt.Errorf("experiment %s: submitted: %w", raw.ID, err)
		}
	}

	return Experiment{
		ID:        raw.ID,
		Logs:      raw.Logs,
		Email:     raw.Email,
		Submitted: submitted,
		Config: AlgorithmConfiguration{
			WindowSize:     windowSize,
			DriftMagnitude: magnitude,
			Warnings:       raw.Config.Warnings,
		},
		Mapping: EventMapping{
			Case:       raw.Mapping.Case,
			Activity:   raw.Mapping.Activity,
			Resource:   raw.Mapping.Resource,
			Start:      raw.Mapping.Start,
			End:        raw.Mapping.End,
			Enablement: raw.Mapping.Enablement,
			Attributes: raw.Mapping.Attributes,
		},
	}, nil
}
