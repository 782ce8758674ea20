package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flood-risk-service/internal/alert"
	"github.com/kjstillabower/flood-risk-service/internal/areas"
	"github.com/kjstillabower/flood-risk-service/internal/cache"
	"github.com/kjstillabower/flood-risk-service/internal/circuitbreaker"
	"github.com/kjstillabower/flood-risk-service/internal/client"
	"github.com/kjstillabower/flood-risk-service/internal/config"
	"github.com/kjstillabower/flood-risk-service/internal/engine"
	"github.com/kjstillabower/flood-risk-service/internal/history"
	httphandler "github.com/kjstillabower/flood-risk-service/internal/http"
	"github.com/kjstillabower/flood-risk-service/internal/lifecycle"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
	"github.com/kjstillabower/flood-risk-service/internal/scheduler"
	"github.com/kjstillabower/flood-risk-service/internal/scoring"
	"github.com/kjstillabower/flood-risk-service/internal/source"
	"github.com/kjstillabower/flood-risk-service/internal/traffic"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	shutdownTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: "flood-risk-service",
		Exporter:    "stdout",
		SampleRatio: cfg.TracingSampleRatio,
	}, logger)
	if err != nil {
		logger.Fatal("tracing", zap.Error(err))
	}

	catalog, err := areas.Load(cfg.AreasFile)
	if err != nil {
		logger.Fatal("areas", zap.Error(err))
	}
	logger.Info("areas loaded", zap.Int("count", catalog.Len()), zap.String("file", cfg.AreasFile))

	apac, err := client.NewAPACClient(client.Config{
		BaseURL:        cfg.APACBaseURL,
		Timeout:        cfg.APACTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	})
	if err != nil {
		logger.Fatal("apac client", zap.Error(err))
	}

	providers := []source.Provider{client.NewMeteorologyProvider(apac, newBreaker(cfg, client.ProviderMeteorology, logger))}
	if cfg.CEMADENEnabled {
		providers = append(providers, client.NewCEMADENProvider(apac, newBreaker(cfg, client.ProviderCEMADEN, logger)))
	}
	fetcher := source.NewFetcher(providers, source.NewSimulator(rand.New(rand.NewSource(time.Now().UnixNano()))),
		source.WithCallTimeout(cfg.ProviderCallTimeout),
		source.WithLogger(logger))
	logger.Info("providers configured", zap.Strings("providers", fetcher.ProviderNames()))

	var store cache.SnapshotStore
	var memcacheCloser *cache.MemcachedStore
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcacheCloser = mc
		store = mc
		logger.Info("snapshot store: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		store = cache.NewInMemoryStore(nil)
		logger.Info("snapshot store: in_memory")
	}
	sourceCache := cache.New(fetcher,
		cache.WithTTL(cfg.CacheTTL),
		cache.WithRetryBackoff(cfg.CacheRetryBackoff),
		cache.WithCoalesceTimeout(cfg.CacheCoalesceTimeout),
		cache.WithStore(store),
		cache.WithLogger(logger))

	var sinks []history.Sink
	var memStore *history.MemoryStore
	if cfg.HistoryMemoryEnabled {
		memStore = history.NewMemoryStore(cfg.HistoryMaxPerArea, cfg.HistoryRetention, nil)
		sinks = append(sinks, memStore)
		observability.RegisterGaugeFunc("historyMemoryRecords", "Assessment records retained in the memory history store",
			func() float64 { return float64(memStore.Len()) })
	}
	var kafkaSink *history.KafkaSink
	if cfg.KafkaEnabled {
		kafkaSink = history.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, kafkaSink)
		logger.Info("history sink: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxStationKM(cfg.MaxStationKM),
	}
	if len(sinks) > 0 {
		engineOpts = append(engineOpts, engine.WithSink(history.NewFanout(logger, sinks...)))
	}
	eng := engine.New(catalog.All(), sourceCache,
		scoring.NewScorer(cfg.ScoringConfig()),
		alert.NewClassifier(cfg.Thresholds),
		engineOpts...)

	var pruner *scheduler.Scheduler
	if memStore != nil && cfg.HistoryRetention > 0 {
		pruner = scheduler.New(memStore, cfg.HistoryPruneInterval, logger)
		if err := pruner.Start(); err != nil {
			logger.Fatal("history pruner", zap.Error(err))
		}
	}

	// The handler takes an interface; a nil *MemoryStore must stay a nil interface.
	var stats httphandler.HistoryReader
	if memStore != nil {
		stats = memStore
	}
	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		StartTime:            time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}
	tracker := traffic.New(nil)
	handler := httphandler.NewHandler(eng, catalog, stats, tracker, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	refresh := func(ctx context.Context, force bool) error {
		if err := eng.Refresh(ctx, force); err != nil {
			return err
		}
		lifecycle.SetReady(true)
		return nil
	}
	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		if !cfg.RefreshEnabled {
			if err := refresh(refreshCtx, false); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("initial assessment failed", zap.Error(err))
			}
			return
		}
		refresher := cache.NewRefresher(refresh, clockwork.NewRealClock(), logger)
		if err := refresher.Run(refreshCtx, sourceCache.TTL()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("background refresh stopped", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	stopRefresh()
	<-refreshDone
	eng.Wait()
	if pruner != nil {
		pruner.Stop()
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			logger.Error("kafka close", zap.Error(err))
		}
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}

	observability.ShutdownTracing(shutdownCtx, shutdownTracing, logger)
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newBreaker returns the circuit breaker for one provider, or nil when breakers are disabled.
func newBreaker(cfg *config.Config, component string, logger *zap.Logger) *circuitbreaker.CircuitBreaker {
	if !cfg.BreakerEnabled {
		return nil
	}
	observability.CircuitBreakerState.WithLabelValues(component).Set(float64(circuitbreaker.StateClosed))
	logger.Info("circuit breaker enabled",
		zap.String("component", component),
		zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
		zap.Duration("timeout", cfg.BreakerTimeout))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
		Component:        component,
		OnStateChange: func(from, to circuitbreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(component).Set(float64(to))
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}
