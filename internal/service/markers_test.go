package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftstack/drift-monitor/internal/cache"
)

type failingProvider struct {
	cache.MemoryProvider
}

func (f *failingProvider) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestMarkersRoundTrip(t *testing.T) {
	ctx := context.Background()
	markers := NewMarkers(cache.NewMemoryProvider(), time.Hour)

	done, err := markers.Completed(ctx, "exp-1")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if done {
		t.Fatal("unknown experiment reported as completed")
	}

	if err := markers.MarkCompleted(ctx, "exp-1"); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	done, err = markers.Completed(ctx, "exp-1")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if !done {
		t.Fatal("marked experiment reported as not completed")
	}

	// Markers are namespaced per experiment.
	done, err = markers.Completed(ctx, "exp-2")
	if err != nil {
		t.Fatalf("completed: %v", err)
	}
	if done {
		t.Fatal("marker leaked to another experiment")
	}
}

func TestMarkersSurfaceStoreErrors(t *testing.T) {
	markers := NewMarkers(&failingProvider{}, time.Hour)

	done, err := markers.Completed(context.Background(), "exp-1")
	if err == nil {
		t.Fatal("expected store error to surface")
	}
	if done {
		t.Fatal("failed lookup must not report completion")
	}
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	markers := NewMarkers(cache.NewMemoryProvider(), time.Hour)

	if err := markers.MarkCompleted(ctx, "exp-1"); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := markers.MarkCompleted(ctx, "exp-1"); err != nil {
		t.Fatalf("second mark: %v", err)
	}
}
