package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftstack/drift-monitor/internal/models"
)

const (
	firstActivity = "__SYNTHETIC_START_EVENT__"
	lastActivity  = "__SYNTHETIC_END_EVENT__"
)

func writeLog(t *testing.T, dir, name, content string) {
	t.Helper()
	logsDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(logsDir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func defaultMapping() models.EventMapping {
	return models.EventMapping{
		Case:       "case_id",
		Activity:   "activity",
		Resource:   "resource",
		Start:      "start_time",
		End:        "end_time",
		Enablement: models.EnablementDiscover,
	}
}

func TestReadAndMerge(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "a.csv", `case_id,activity,resource,start_time,end_time
c1,review,alice,2024-01-01 09:00:00,2024-01-01 10:00:00
c1,approve,bob,2024-01-01 10:30:00,2024-01-01 11:00:00
`)
	writeLog(t, dir, "b.csv", `case_id,activity,resource,start_time,end_time
c2,review,carol,2024-01-01 09:15:00,2024-01-01 09:45:00
`)

	reader := NewReader(nil, dir, firstActivity, lastActivity)
	events, err := reader.ReadAndMerge(context.Background(), []string{"a.csv", "b.csv"}, defaultMapping())
	if err != nil {
		t.Fatalf("read and merge: %v", err)
	}

	// 3 rows plus two boundary events per case.
	if len(events) != 7 {
		t.Fatalf("event count = %d, want 7", len(events))
	}

	for i := 1; i < len(events); i++ {
		if events[i].End.Before(events[i-1].End) {
			t.Fatalf("events not ordered by end time at %d: %s < %s",
				i, events[i].End, events[i-1].End)
		}
	}

	boundaries := 0
	for _, event := range events {
		if event.Activity == firstActivity || event.Activity == lastActivity {
			boundaries++
			if !event.Start.Equal(event.End) {
				t.Fatalf("boundary event should be zero length: %+v", event)
			}
		}
	}
	if boundaries != 4 {
		t.Fatalf("boundary events = %d, want 4", boundaries)
	}
}

func TestReadAndMergeDiscoversEnablement(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "seq.csv", `case_id,activity,resource,start_time,end_time
c1,first,alice,2024-01-01 09:00:00,2024-01-01 10:00:00
c1,second,bob,2024-01-01 11:00:00,2024-01-01 12:00:00
`)

	reader := NewReader(nil, dir, firstActivity, lastActivity)
	events, err := reader.ReadAndMerge(context.Background(), []string{"seq.csv"}, defaultMapping())
	if err != nil {
		t.Fatalf("read and merge: %v", err)
	}

	var second models.Event
	for _, event := range events {
		if event.Activity == "second" {
			second = event
		}
	}
	wantEnabled := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !second.Enabled.Equal(wantEnabled) {
		t.Fatalf("second.Enabled = %s, want %s", second.Enabled, wantEnabled)
	}
}

func TestReadAndMergeExplicitEnablementColumn(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "col.csv", `case_id,activity,resource,start_time,end_time,enabled_at
c1,task,alice,2024-01-01 09:30:00,2024-01-01 10:00:00,2024-01-01 09:00:00
`)

	mapping := defaultMapping()
	mapping.Enablement = "enabled_at"

	reader := NewReader(nil, dir, firstActivity, lastActivity)
	events, err := reader.ReadAndMerge(context.Background(), []string{"col.csv"}, mapping)
	if err != nil {
		t.Fatalf("read and merge: %v", err)
	}

	for _, event := range events {
		if event.Activity != "task" {
			continue
		}
		want := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
		if !event.Enabled.Equal(want) {
			t.Fatalf("Enabled = %s, want %s", event.Enabled, want)
		}
		return
	}
	t.Fatal("task event not found")
}

func TestReadAndMergeFailures(t *testing.T) {
	dir := t.TempDir()
	reader := NewReader(nil, dir, firstActivity, lastActivity)

	if _, err := reader.ReadAndMerge(context.Background(), []string{"missing.csv"}, defaultMapping()); err == nil {
		t.Fatal("expected error for missing source")
	}

	writeLog(t, dir, "nocase.csv", `activity,start_time,end_time
review,2024-01-01 09:00:00,2024-01-01 10:00:00
`)
	if _, err := reader.ReadAndMerge(context.Background(), []string{"nocase.csv"}, defaultMapping()); err == nil {
		t.Fatal("expected error for missing case column")
	}

	writeLog(t, dir, "inverted.csv", `case_id,activity,resource,start_time,end_time
c1,review,alice,2024-01-01 10:00:00,2024-01-01 09:00:00
`)
	if _, err := reader.ReadAndMerge(context.Background(), []string{"inverted.csv"}, defaultMapping()); err == nil {
		t.Fatal("expected error for event ending before it starts")
	}
}
