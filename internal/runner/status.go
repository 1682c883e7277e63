package runner

import (
	"time"

	"github.com/driftstack/drift-monitor/internal/models"
)

// Builder assembles the immutable ExecutionStatus snapshots of one run. The
// start date is fixed at construction; every snapshot gets a fresh update
// timestamp and its own copy of the drift list.
type Builder struct {
	started time.Time
	now     func() time.Time
}

// NewBuilder creates a Builder for a run that started at the given time.
func NewBuilder(started time.Time, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{started: started, now: now}
}

// Running builds an in-progress snapshot.
func (b *Builder) Running(progress int, ref, run models.TimeWindow, drifts []models.DriftOverview) models.ExecutionStatus {
	return b.snapshot(models.Status{
		Status:     models.StatusRunning,
		Progress:   progress,
		CurrentRef: ref,
		CurrentRun: run,
	}, drifts)
}

// Finished builds the terminal success snapshot.
func (b *Builder) Finished(ref, run models.TimeWindow, drifts []models.DriftOverview) models.ExecutionStatus {
	return b.snapshot(models.Status{
		Status:     models.StatusFinished,
		Progress:   100,
		CurrentRef: ref,
		CurrentRun: run,
	}, drifts)
}

// Failed builds the terminal failure snapshot. The drifts confirmed before
// the failure are kept so subscribers do not lose already-published findings.
func (b *Builder) Failed(err error, drifts []models.DriftOverview) models.ExecutionStatus {
	return b.snapshot(models.Status{
		Status:   models.StatusFailed,
		Error:    err.Error(),
		Progress: models.ProgressFailed,
	}, drifts)
}

func (b *Builder) snapshot(status models.Status, drifts []models.DriftOverview) models.ExecutionStatus {
	// Copy so later confirmations never mutate an already-emitted snapshot.
	copied := make([]models.DriftOverview, len(drifts))
	copy(copied, drifts)

	return models.ExecutionStatus{
		Status:         status,
		StartDate:      b.started,
		LastUpdateDate: b.now(),
		Drifts:         copied,
	}
}
