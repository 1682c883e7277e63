package notify

import (
	"context"
	"log/slog"

	"github.com/driftstack/drift-monitor/internal/metrics"
	"github.com/driftstack/drift-monitor/internal/models"
)

// StatusPublisher pushes a snapshot to live subscribers.
type StatusPublisher interface {
	Publish(ctx context.Context, experimentID string, status models.ExecutionStatus) error
}

// ResultWriter persists snapshots and drift details durably.
type ResultWriter interface {
	SaveStatus(experimentID string, status models.ExecutionStatus) error
	SaveDriftDetails(experimentID string, details models.DriftDetails) error
}

// Emitter fans every snapshot out to the broker and the result store. The two
// effects are independent: a failing broker never blocks persistence and vice
// versa. Failures are counted and logged, not propagated, so a degraded
// emission path cannot fail the run itself.
type Emitter struct {
	publisher StatusPublisher
	store     ResultWriter
	logger    *slog.Logger
}

// NewEmitter constructs an Emitter.
func NewEmitter(publisher StatusPublisher, store ResultWriter, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{publisher: publisher, store: store, logger: logger}
}

// EmitStatus persists the snapshot and publishes it to subscribers.
func (e *Emitter) EmitStatus(ctx context.Context, experimentID string, status models.ExecutionStatus) {
	if err := e.store.SaveStatus(experimentID, status); err != nil {
		metrics.PersistError()
		e.logger.Warn("status persistence failed",
			slog.String("experiment_id", experimentID), slog.Any("error", err))
	}

	if err := e.publisher.Publish(ctx, experimentID, status); err != nil {
		metrics.PublishError()
		e.logger.Warn("status publish failed",
			slog.String("experiment_id", experimentID), slog.Any("error", err))
	} else {
		metrics.SnapshotEmitted()
	}
}

// EmitDriftDetails persists a confirmed drift's detail record.
func (e *Emitter) EmitDriftDetails(ctx context.Context, experimentID string, details models.DriftDetails) {
	metrics.DriftConfirmed()

	if err := e.store.SaveDriftDetails(experimentID, details); err != nil {
		metrics.PersistError()
		e.logger.Warn("drift details persistence failed",
			slog.String("experiment_id", experimentID),
			slog.Int("index", details.Index),
			slog.Any("error", err))
	}
}
