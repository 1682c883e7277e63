package models

import (
	"testing"
	"time"
)

const sampleRequest = `{
	"id": "exp-42",
	"logs": ["treatment.csv", "control.csv"],
	"email": "analyst@example.com",
	"submitted": "2024-06-01T09:30:00Z",
	"config": {
		"window_size": "7d",
		"drift_magnitude": "30m",
		"warnings": 3
	},
	"mapping": {
		"case": "case_id",
		"activity": "activity",
		"resource": "resource",
		"start": "start_time",
		"end": "end_time",
		"enablement": "__DISCOVER__",
		"attributes": ["team"]
	}
}`

func TestDecodeExperiment(t *testing.T) {
	exp, err := DecodeExperiment([]byte(sampleRequest))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if exp.ID != "exp-42" {
		t.Fatalf("id = %q", exp.ID)
	}
	if len(exp.Logs) != 2 || exp.Logs[0] != "treatment.csv" {
		t.Fatalf("logs = %v", exp.Logs)
	}
	if exp.Config.WindowSize != 7*24*time.Hour {
		t.Fatalf("window size = %s", exp.Config.WindowSize)
	}
	if exp.Config.DriftMagnitude != 30*time.Minute {
		t.Fatalf("drift magnitude = %s", exp.Config.DriftMagnitude)
	}
	if exp.Config.Warnings != 3 {
		t.Fatalf("warnings = %d", exp.Config.Warnings)
	}
	if exp.Mapping.Enablement != EnablementDiscover {
		t.Fatalf("enablement = %q", exp.Mapping.Enablement)
	}
	if exp.Submitted.IsZero() {
		t.Fatal("submitted timestamp lost")
	}
}

func TestDecodeExperimentRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing id":     `{"logs":["a.csv"],"config":{"window_size":"7d","drift_magnitude":"1m","warnings":1}}`,
		"no logs":        `{"id":"x","logs":[],"config":{"window_size":"7d","drift_magnitude":"1m","warnings":1}}`,
		"zero warnings":  `{"id":"x","logs":["a.csv"],"config":{"window_size":"7d","drift_magnitude":"1m","warnings":0}}`,
		"bad window":     `{"id":"x","logs":["a.csv"],"config":{"window_size":"soon","drift_magnitude":"1m","warnings":1}}`,
		"not valid json": `{`,
	}

	for name, payload := range cases {
		if _, err := DecodeExperiment([]byte(payload)); err == nil {
			t.Fatalf("%s: expected decode error", name)
		}
	}
}
