package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTimeWindowMarshalEmpty(t *testing.T) {
	data, err := json.Marshal(TimeWindow{})
	if err != nil {
		t.Fatalf("marshal empty window: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("empty window = %s, want []", data)
	}

	var w TimeWindow
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal empty window: %v", err)
	}
	if !w.IsZero() {
		t.Fatalf("expected zero window, got %+v", w)
	}
}

func TestTimeWindowRoundTrip(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	original := TimeWindow{Start: start, End: start.Add(7 * 24 * time.Hour)}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal window: %v", err)
	}

	var decoded TimeWindow
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal window: %v", err)
	}
	if !decoded.Start.Equal(original.Start) || !decoded.End.Equal(original.End) {
		t.Fatalf("round trip mismatch: %+v != %+v", decoded, original)
	}
}

func TestExecutionStatusSerialization(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := ExecutionStatus{
		Status: Status{
			Status:     StatusRunning,
			Progress:   42,
			CurrentRef: TimeWindow{Start: start, End: start.Add(time.Hour)},
			CurrentRun: TimeWindow{Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)},
		},
		StartDate:      start,
		LastUpdateDate: start.Add(time.Minute),
		Drifts: []DriftOverview{
			{Index: 0, Experiment: "exp-1", Description: "first"},
			{Index: 1, Experiment: "exp-1", Description: "second"},
		},
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	for _, field := range []string{`"status"`, `"progress"`, `"currentRef"`, `"currentRun"`, `"startDate"`, `"lastUpdateDate"`, `"drifts"`} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("serialized snapshot misses %s: %s", field, data)
		}
	}
	if strings.Contains(string(data), `"error"`) {
		t.Fatalf("running snapshot should omit error field: %s", data)
	}

	var decoded ExecutionStatus
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if decoded.Status.Progress != 42 || decoded.Status.Status != StatusRunning {
		t.Fatalf("status mismatch: %+v", decoded.Status)
	}
	if len(decoded.Drifts) != 2 || decoded.Drifts[0].Index != 0 || decoded.Drifts[1].Index != 1 {
		t.Fatalf("drift order lost: %+v", decoded.Drifts)
	}
}

func TestFailedStatusCarriesError(t *testing.T) {
	snapshot := ExecutionStatus{
		Status: Status{
			Status:   StatusFailed,
			Error:    "event log is empty",
			Progress: ProgressFailed,
		},
		Drifts: []DriftOverview{},
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal failed snapshot: %v", err)
	}

	payload := string(data)
	if !strings.Contains(payload, `"error":"event log is empty"`) {
		t.Fatalf("missing error field: %s", payload)
	}
	if !strings.Contains(payload, `"progress":-1`) {
		t.Fatalf("missing failure progress: %s", payload)
	}
	if !strings.Contains(payload, `"currentRef":[]`) || !strings.Contains(payload, `"currentRun":[]`) {
		t.Fatalf("failure windows should be empty: %s", payload)
	}
	if !strings.Contains(payload, `"drifts":[]`) {
		t.Fatalf("drifts should serialize as an empty list: %s", payload)
	}
}
