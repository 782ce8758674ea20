// Package source polls every upstream provider concurrently and consolidates
// the results into one snapshot.
package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kjstillabower/flood-risk-service/internal/client"
	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
)

// ErrAllProvidersFailed is returned with a simulated snapshot when no provider
// contributed any data.
var ErrAllProvidersFailed = errors.New("all providers failed")

// DefaultCallTimeout bounds each provider call.
const DefaultCallTimeout = 30 * time.Second

const tracerName = "github.com/kjstillabower/flood-risk-service/internal/source"

// Provider abstracts one upstream data source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context) (models.Batch, error)
}

// Fetcher runs providers concurrently and merges their batches.
type Fetcher struct {
	providers   []Provider
	simulator   *Simulator
	callTimeout time.Duration
	clock       clockwork.Clock
	logger      *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCallTimeout sets the per-provider timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.callTimeout = d
		}
	}
}

// WithClock sets the clock used to stamp snapshots.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher returns a Fetcher over providers. sim supplies the snapshot used
// when every provider fails and must not be nil.
func NewFetcher(providers []Provider, sim *Simulator, opts ...Option) *Fetcher {
	f := &Fetcher{
		providers:   providers,
		simulator:   sim,
		callTimeout: DefaultCallTimeout,
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type outcome struct {
	batch  models.Batch
	status models.ProviderStatus
}

// FetchAll polls every provider once. One provider failing never aborts the
// others. When nothing was received it returns a simulated snapshot together
// with ErrAllProvidersFailed.
func (f *Fetcher) FetchAll(ctx context.Context) (*models.Snapshot, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "source.FetchAll")
	defer span.End()

	outcomes := make([]outcome, len(f.providers))
	var wg sync.WaitGroup
	for i, p := range f.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			outcomes[i] = f.fetchOne(ctx, p)
		}(i, p)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	snap := &models.Snapshot{
		Provenance: models.SnapshotLive,
		FetchedAt:  f.clock.Now(),
		Providers:  make([]models.ProviderStatus, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		snap.Stations = append(snap.Stations, o.batch.Stations...)
		snap.Alerts = append(snap.Alerts, o.batch.Alerts...)
		snap.Providers = append(snap.Providers, o.status)
	}
	span.SetAttributes(
		attribute.Int("stations", len(snap.Stations)),
		attribute.Int("alerts", len(snap.Alerts)),
	)

	if len(snap.Stations) == 0 && len(snap.Alerts) == 0 {
		sim := f.simulator.Snapshot(snap.FetchedAt)
		sim.Providers = snap.Providers
		f.logger.Warn("no provider returned data; using simulated snapshot",
			zap.Int("providers", len(f.providers)))
		span.SetStatus(codes.Error, ErrAllProvidersFailed.Error())
		return sim, ErrAllProvidersFailed
	}
	return snap, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, p Provider) outcome {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	start := time.Now()
	batch, err := p.Fetch(callCtx)
	status := models.ProviderStatus{
		Name:     p.Name(),
		Duration: time.Since(start),
	}
	if err != nil {
		category := client.CategorizeError(err)
		status.ErrorCategory = string(category)
		observability.ProviderErrorsTotal.WithLabelValues(p.Name(), string(category)).Inc()
		f.logger.Warn("provider fetch failed",
			zap.String("provider", p.Name()),
			zap.String("category", string(category)),
			zap.Duration("duration", status.Duration),
			zap.Error(err))
		return outcome{status: status}
	}
	status.OK = true
	status.Items = len(batch.Stations) + len(batch.Alerts)
	return outcome{batch: batch, status: status}
}

// ProviderNames lists the configured providers in polling order.
func (f *Fetcher) ProviderNames() []string {
	names := make([]string, 0, len(f.providers))
	for _, p := range f.providers {
		names = append(names, p.Name())
	}
	return names
}
