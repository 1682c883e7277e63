package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/driftstack/drift-monitor/internal/detect"
	"github.com/driftstack/drift-monitor/internal/explain"
	"github.com/driftstack/drift-monitor/internal/models"
	"github.com/driftstack/drift-monitor/internal/utils"
)

// Ingestor loads and merges the experiment's event-log sources into a finite,
// time-ordered sequence.
type Ingestor interface {
	ReadAndMerge(ctx context.Context, sources []string, mapping models.EventMapping) ([]models.Event, error)
}

// StreamFactory opens the window-comparison stream for a prepared log.
type StreamFactory interface {
	Open(log []models.Event, cfg detect.Config) (detect.Stream, error)
}

// Explainer derives the causal attribution tree for a confirmed outcome.
type Explainer interface {
	Explain(log []models.Event, outcome detect.Outcome, magnitude time.Duration) (*explain.CauseNode, error)
}

// Emitter fans a snapshot out to subscribers and durable storage. Both
// effects are best effort; the runner never learns about their failures.
type Emitter interface {
	EmitStatus(ctx context.Context, experimentID string, status models.ExecutionStatus)
	EmitDriftDetails(ctx context.Context, experimentID string, details models.DriftDetails)
}

// Options tunes a Runner beyond its collaborators.
type Options struct {
	// Significance for the statistical test, 0.05 when unset.
	Significance float64
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Runner owns the lifecycle of a single experiment execution: ingest, stream
// window comparisons, track progress, explain confirmations, emit snapshots.
// It is the only component mutating the run's drift list and status.
type Runner struct {
	logger       *slog.Logger
	ingestor     Ingestor
	streams      StreamFactory
	explainer    Explainer
	emitter      Emitter
	significance float64
	clock        func() time.Time
}

// New constructs a Runner.
func New(logger *slog.Logger, ingestor Ingestor, streams StreamFactory, explainer Explainer, emitter Emitter, opts Options) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Significance <= 0 {
		opts.Significance = 0.05
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Runner{
		logger:       logger,
		ingestor:     ingestor,
		streams:      streams,
		explainer:    explainer,
		emitter:      emitter,
		significance: opts.Significance,
		clock:        opts.Clock,
	}
}

// Run executes one experiment to termination. It emits at least one running
// snapshot and exactly one terminal snapshot; every emission triggers one
// publish and one durable write. The terminal snapshot is returned.
func (r *Runner) Run(ctx context.Context, exp models.Experiment) models.ExecutionStatus {
	logger := r.logger.With(
		slog.String("experiment_id", exp.ID),
		slog.String("run_id", uuid.NewString()))
	logger.Info("experiment execution starting",
		slog.Int("sources", len(exp.Logs)),
		slog.Duration("window_size", exp.Config.WindowSize))

	builder := NewBuilder(r.clock(), r.clock)
	drifts := make([]models.DriftOverview, 0)

	terminal, err := r.run(ctx, exp, builder, &drifts)
	if err != nil {
		logger.Error("experiment execution failed", slog.Any("error", err))
		terminal = builder.Failed(err, drifts)
	}

	r.emitter.EmitStatus(ctx, exp.ID, terminal)
	return terminal
}

func (r *Runner) run(ctx context.Context, exp models.Experiment, builder *Builder, drifts *[]models.DriftOverview) (models.ExecutionStatus, error) {
	log, err := r.ingestor.ReadAndMerge(ctx, exp.Logs, exp.Mapping)
	if err != nil {
		return models.ExecutionStatus{}, err
	}
	if len(log) == 0 {
		return models.ExecutionStatus{}, utils.ErrEmptyLog
	}

	startDate, endDate := logBounds(log)
	timespan := endDate.Sub(startDate)
	if timespan <= 0 {
		return models.ExecutionStatus{}, utils.IngestionError("log spans a single instant", nil)
	}

	windowSize := exp.Config.WindowSize

	// The initial snapshot covers the first reference+running pair.
	processed := 2 * windowSize
	r.emitter.EmitStatus(ctx, exp.ID, builder.Running(
		Percent(processed, timespan),
		models.TimeWindow{Start: startDate, End: startDate.Add(windowSize)},
		models.TimeWindow{Start: startDate.Add(windowSize), End: startDate.Add(2*windowSize)},
		*drifts,
	))

	stream, err := r.streams.Open(log, detect.Config{
		WindowSize:        windowSize,
		WarmUp:            0,
		WarningsToConfirm: exp.Config.Warnings,
		Threshold:         exp.Config.DriftMagnitude,
		Significance:      r.significance,
	})
	if err != nil {
		return models.ExecutionStatus{}, utils.AlgorithmError("open outcome stream", err)
	}

	for {
		if ctx.Err() != nil {
			return models.ExecutionStatus{}, utils.ErrCancelled
		}

		outcome, ok, err := stream.Next()
		if err != nil {
			return models.ExecutionStatus{}, utils.AlgorithmError("pull outcome", err)
		}
		if !ok {
			break
		}

		emit, newProcessed, percent := Progress(processed, outcome, startDate, timespan)
		if !emit {
			continue
		}
		processed = newProcessed

		if outcome.Level == detect.LevelConfirmed {
			if err := r.confirmDrift(ctx, exp, log, outcome, drifts); err != nil {
				return models.ExecutionStatus{}, err
			}
		}

		r.emitter.EmitStatus(ctx, exp.ID, builder.Running(percent, outcome.Reference, outcome.Running, *drifts))
	}

	finished := builder.Finished(
		models.TimeWindow{Start: endDate.Add(-2 * windowSize), End: endDate.Add(-windowSize)},
		models.TimeWindow{Start: endDate.Add(-windowSize), End: endDate},
		*drifts,
	)
	return finished, nil
}

// confirmDrift explains a confirmation, appends its overview, and persists the
// detail record before the status snapshot is published, so the record is
// available to any subscriber reacting to the notification.
func (r *Runner) confirmDrift(ctx context.Context, exp models.Experiment, log []models.Event, outcome detect.Outcome, drifts *[]models.DriftOverview) error {
	root, err := r.explainer.Explain(log, outcome, exp.Config.DriftMagnitude)
	if err != nil {
		return utils.AlgorithmError("explain drift", err)
	}

	overview := models.DriftOverview{
		Index:           len(*drifts),
		Experiment:      exp.ID,
		Description:     explain.Describe(root),
		ReferenceWindow: outcome.Reference,
		RunningWindow:   outcome.Running,
	}
	*drifts = append(*drifts, overview)

	r.logger.Info("drift confirmed",
		slog.String("experiment_id", exp.ID),
		slog.Int("index", overview.Index),
		slog.Time("running_end", outcome.Running.End))

	r.emitter.EmitDriftDetails(ctx, exp.ID, models.DriftDetails{
		DriftOverview: overview,
		Causes:        explain.Flatten(root),
	})
	return nil
}

func logBounds(log []models.Event) (start, end time.Time) {
	start = log[0].Enabled
	end = log[0].End
	for _, event := range log[1:] {
		if event.Enabled.Before(start) {
			start = event.Enabled
		}
		if event.End.After(end) {
			end = event.End
		}
	}
	return start, end
}
