package service

import (
	"context"
	"errors"
	"time"

	"github.com/driftstack/drift-monitor/internal/cache"
	"github.com/driftstack/drift-monitor/internal/utils"
)

const markerKeyPrefix = "driftmon:completed:"

// Markers tracks which experiments already ran to termination. Together with
// ack-after-completion on the inbound queue, a marker turns broker
// re-delivery into a cheap skip instead of a duplicate run.
type Markers struct {
	provider cache.Provider
	ttl      time.Duration
}

// NewMarkers wraps a cache provider as a completion-marker store.
func NewMarkers(provider cache.Provider, ttl time.Duration) *Markers {
	return &Markers{provider: provider, ttl: ttl}
}

// Completed reports whether a completion marker exists for the experiment.
// Store errors are surfaced so the caller can decide to run anyway.
func (m *Markers) Completed(ctx context.Context, experimentID string) (bool, error) {
	_, err := m.provider.Get(ctx, markerKeyPrefix+experimentID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	return false, utils.UpstreamError("read completion marker", err)
}

// MarkCompleted records that the experiment reached a terminal snapshot.
func (m *Markers) MarkCompleted(ctx context.Context, experimentID string) error {
	_, err := m.provider.SetNX(ctx, markerKeyPrefix+experimentID, []byte("1"), m.ttl)
	if err != nil {
		return utils.UpstreamError("write completion marker", err)
	}
	return nil
}
