package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driftstack/drift-monitor/internal/cache"
	"github.com/driftstack/drift-monitor/internal/config"
	"github.com/driftstack/drift-monitor/internal/detect"
	"github.com/driftstack/drift-monitor/internal/explain"
	"github.com/driftstack/drift-monitor/internal/ingest"
	"github.com/driftstack/drift-monitor/internal/metrics"
	"github.com/driftstack/drift-monitor/internal/notify"
	"github.com/driftstack/drift-monitor/internal/runner"
	"github.com/driftstack/drift-monitor/internal/service"
	"github.com/driftstack/drift-monitor/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting drift-monitor", slog.String("broker", cfg.Broker.URL))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var markerStore cache.Provider = cache.NewMemoryProvider()
	if cfg.Markers.Enabled && cfg.Markers.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Markers.Addr,
			Username:     cfg.Markers.Username,
			Password:     cfg.Markers.Password,
			DialTimeout:  cfg.Markers.DialTimeout,
			ReadTimeout:  cfg.Markers.ReadTimeout,
			WriteTimeout: cfg.Markers.WriteTimeout,
			MaxRetries:   cfg.Markers.MaxRetries,
		})
		if err != nil {
			logger.Warn("valkey marker store unavailable, using in-process markers", slog.Any("error", err))
		} else {
			markerStore = provider
		}
	}
	defer markerStore.Close()

	natsOpts := []nats.Option{
		nats.Name(cfg.Broker.ClientName),
		nats.Timeout(cfg.Broker.ConnectTimeout),
		nats.ReconnectWait(cfg.Broker.ReconnectWait),
		nats.MaxReconnects(cfg.Broker.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("broker disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("broker reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.Broker.Username != "" {
		natsOpts = append(natsOpts, nats.UserInfo(cfg.Broker.Username, cfg.Broker.Password))
	}

	conn, err := nats.Connect(cfg.Broker.URL, natsOpts...)
	if err != nil {
		logger.Error("failed to connect to broker", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	reader := ingest.NewReader(logger, cfg.Storage.BasePath,
		cfg.Explainer.FirstActivity, cfg.Explainer.LastActivity)

	explainer := explain.NewExplainer(explain.Config{
		FirstActivity:     cfg.Explainer.FirstActivity,
		LastActivity:      cfg.Explainer.LastActivity,
		CalendarThreshold: cfg.Explainer.CalendarThreshold,
	}, logger)

	emitter := notify.NewEmitter(
		notify.NewPublisher(conn, cfg.Broker.StatusTopic, logger),
		notify.NewResultStore(cfg.Storage.BasePath, logger),
		logger,
	)

	experimentRunner := runner.New(logger, reader, detect.Factory{}, explainer, emitter,
		runner.Options{Significance: cfg.Detector.Significance})

	markers := service.NewMarkers(markerStore, cfg.Markers.TTL)
	worker, err := service.NewService(logger, conn, cfg.Broker,
		experimentRunner, markers, cfg.Runner.Workers, cfg.Runner.RunTimeout)
	if err != nil {
		logger.Error("failed to create worker service", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Metrics.Address != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Metrics.Address,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Metrics.Address))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if runErr := worker.Run(ctx); runErr != nil {
			logger.Error("worker service exited", slog.Any("error", runErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give in-flight runs time to reach their terminal snapshot logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("drift-monitor stopped")
}
