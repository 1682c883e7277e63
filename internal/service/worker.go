package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/driftstack/drift-monitor/internal/config"
	"github.com/driftstack/drift-monitor/internal/metrics"
	"github.com/driftstack/drift-monitor/internal/models"
	"github.com/driftstack/drift-monitor/internal/utils"
)

// ExperimentRunner executes one experiment to termination.
type ExperimentRunner interface {
	Run(ctx context.Context, exp models.Experiment) models.ExecutionStatus
}

// Service consumes experiment submissions from the durable JetStream queue
// and fans them out to a fixed pool of workers. A message is acknowledged
// only after its run reached a terminal snapshot and the completion marker
// was written, so a crash mid-run leads to re-delivery rather than a lost
// experiment.
type Service struct {
	logger     *slog.Logger
	js         nats.JetStreamContext
	cfg        config.BrokerConfig
	runner     ExperimentRunner
	markers    *Markers
	workers    int
	runTimeout time.Duration

	latencies *utils.LatencyTracker
	runs      atomic.Uint64
}

// NewService wires the service and provisions the stream and durable
// consumer on the broker.
func NewService(logger *slog.Logger, conn *nats.Conn, cfg config.BrokerConfig, runner ExperimentRunner, markers *Markers, workers int, runTimeout time.Duration) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, utils.UpstreamError("obtain jetstream context", err)
	}

	s := &Service{
		logger:     logger,
		js:         js,
		cfg:        cfg,
		runner:     runner,
		markers:    markers,
		workers:    workers,
		runTimeout: runTimeout,
		latencies:  utils.NewLatencyTracker(256),
	}
	if err := s.provision(); err != nil {
		return nil, err
	}
	return s, nil
}

// provision creates the experiments stream and its durable pull consumer if
// they do not exist yet.
func (s *Service) provision() error {
	_, err := s.js.StreamInfo(s.cfg.ExperimentsStream)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:      s.cfg.ExperimentsStream,
			Subjects:  []string{s.cfg.ExperimentsSubject},
			Storage:   nats.FileStorage,
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			return utils.UpstreamError("create experiments stream", err)
		}
		s.logger.Info("created experiments stream",
			slog.String("stream", s.cfg.ExperimentsStream))
	} else if err != nil {
		return utils.UpstreamError("inspect experiments stream", err)
	}

	_, err = s.js.ConsumerInfo(s.cfg.ExperimentsStream, s.cfg.ConsumerName)
	if errors.Is(err, nats.ErrConsumerNotFound) {
		_, err = s.js.AddConsumer(s.cfg.ExperimentsStream, &nats.ConsumerConfig{
			Durable:       s.cfg.ConsumerName,
			AckPolicy:     nats.AckExplicitPolicy,
			AckWait:       s.cfg.AckWait,
			MaxDeliver:    s.cfg.MaxDeliver,
			FilterSubject: s.cfg.ExperimentsSubject,
			MaxAckPending: s.workers,
		})
		if err != nil {
			return utils.UpstreamError("create experiments consumer", err)
		}
		s.logger.Info("created experiments consumer",
			slog.String("consumer", s.cfg.ConsumerName))
	} else if err != nil {
		return utils.UpstreamError("inspect experiments consumer", err)
	}
	return nil
}

// Run blocks consuming experiments until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("experiment worker pool starting",
		slog.Int("workers", s.workers),
		slog.String("subject", s.cfg.ExperimentsSubject))

	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		worker := i
		group.Go(func() error {
			return s.consume(ctx, worker)
		})
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) consume(ctx context.Context, worker int) error {
	sub, err := s.js.PullSubscribe(s.cfg.ExperimentsSubject, s.cfg.ConsumerName)
	if err != nil {
		return utils.UpstreamError(fmt.Sprintf("worker %d subscribe", worker), err)
	}
	defer sub.Unsubscribe()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(s.cfg.FetchTimeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			s.logger.Error("fetch failed",
				slog.Int("worker", worker), slog.Any("error", err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			s.handle(ctx, worker, msg)
		}
	}
}

// handle processes one submission. Undecodable payloads are terminated so
// the broker stops re-delivering them; everything else is acknowledged only
// after the run terminated and its marker was stored.
func (s *Service) handle(ctx context.Context, worker int, msg *nats.Msg) {
	exp, err := models.DecodeExperiment(msg.Data)
	if err != nil {
		s.logger.Error("discarding malformed experiment",
			slog.Int("worker", worker), slog.Any("error", err))
		if termErr := msg.Term(); termErr != nil {
			s.logger.Error("terminate failed", slog.Any("error", termErr))
		}
		return
	}

	logger := s.logger.With(
		slog.String("experiment_id", exp.ID), slog.Int("worker", worker))

	done, err := s.markers.Completed(ctx, exp.ID)
	if err != nil {
		logger.Warn("marker lookup failed, running anyway", slog.Any("error", err))
	}
	if done {
		logger.Info("experiment already completed, skipping")
		s.ack(msg, logger)
		return
	}

	runCtx := ctx
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	started := time.Now()
	terminal := s.runner.Run(runCtx, exp)
	elapsed := time.Since(started)

	metrics.ObserveRun(elapsed, terminal.Status.Status)
	s.latencies.Observe(elapsed)
	if count := s.runs.Add(1); count%20 == 0 {
		logger.Info("run latency",
			slog.Uint64("runs", count),
			slog.Duration("p95", s.latencies.Percentile(95)))
	}

	logger.Info("experiment terminated",
		slog.String("status", terminal.Status.Status),
		slog.Int("drifts", len(terminal.Drifts)),
		slog.Duration("elapsed", elapsed))

	if err := s.markers.MarkCompleted(ctx, exp.ID); err != nil {
		logger.Warn("marker write failed", slog.Any("error", err))
	}
	s.ack(msg, logger)
}

func (s *Service) ack(msg *nats.Msg, logger *slog.Logger) {
	if err := msg.Ack(); err != nil {
		logger.Error("ack failed", slog.Any("error", err))
	}
}
