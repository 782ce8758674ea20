package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/flood-risk-service/internal/client"
	"github.com/kjstillabower/flood-risk-service/internal/models"
)

type stubProvider struct {
	name  string
	batch models.Batch
	err   error
	delay time.Duration
	calls int32
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(ctx context.Context) (models.Batch, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return models.Batch{}, fmt.Errorf("request timeout: %w", ctx.Err())
		case <-time.After(p.delay):
		}
	}
	return p.batch, p.err
}

var (
	fixedNow = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	station  = models.Station{ID: "1", Name: "Recife", Location: models.LatLng{Lat: -8.05, Lng: -34.9}}
	alert    = models.HazardAlert{Municipality: "Recife", Level: "ALTO", Location: models.LatLng{Lat: -8.05, Lng: -34.9}}
)

func newFetcher(providers ...Provider) *Fetcher {
	return NewFetcher(providers, NewSimulator(rand.New(rand.NewSource(7))),
		WithClock(clockwork.NewFakeClockAt(fixedNow)),
		WithCallTimeout(200*time.Millisecond))
}

func TestFetchAll_AllSucceed(t *testing.T) {
	met := &stubProvider{name: "met", batch: models.Batch{Stations: []models.Station{station}}}
	cem := &stubProvider{name: "cem", batch: models.Batch{Alerts: []models.HazardAlert{alert}}}

	snap, err := newFetcher(met, cem).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotLive, snap.Provenance)
	assert.True(t, snap.Live())
	assert.Equal(t, fixedNow, snap.FetchedAt)
	assert.Len(t, snap.Stations, 1)
	assert.Len(t, snap.Alerts, 1)
	require.Len(t, snap.Providers, 2)
	assert.Equal(t, "met", snap.Providers[0].Name)
	assert.True(t, snap.Providers[0].OK)
	assert.Equal(t, 1, snap.Providers[1].Items)
}

func TestFetchAll_PartialSuccessIsLive(t *testing.T) {
	met := &stubProvider{name: "met", batch: models.Batch{Stations: []models.Station{station}}}
	cem := &stubProvider{name: "cem", err: fmt.Errorf("exhausted retries: %w", client.ErrUpstreamFailure)}

	snap, err := newFetcher(met, cem).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotLive, snap.Provenance)
	assert.Len(t, snap.Stations, 1)
	assert.Empty(t, snap.Alerts)
	assert.False(t, snap.Providers[1].OK)
	assert.Equal(t, string(client.ErrorCategoryUpstream5xx), snap.Providers[1].ErrorCategory)
}

func TestFetchAll_AllFailedReturnsSimulated(t *testing.T) {
	met := &stubProvider{name: "met", err: errors.New("dial tcp: connection refused")}
	cem := &stubProvider{name: "cem", delay: time.Second}

	start := time.Now()
	snap, err := newFetcher(met, cem).FetchAll(context.Background())
	assert.Less(t, time.Since(start), 900*time.Millisecond, "per-call timeout must bound slow providers")

	require.ErrorIs(t, err, ErrAllProvidersFailed)
	require.NotNil(t, snap)
	assert.Equal(t, models.SnapshotSimulated, snap.Provenance)
	assert.False(t, snap.Live())
	assert.Len(t, snap.Stations, len(SimulatedStations))
	require.Len(t, snap.Providers, 2)
	assert.Equal(t, string(client.ErrorCategoryNetwork), snap.Providers[0].ErrorCategory)
	assert.Equal(t, string(client.ErrorCategoryTimeout), snap.Providers[1].ErrorCategory)
}

func TestFetchAll_EmptyBatchesCountAsFailure(t *testing.T) {
	_, err := newFetcher(&stubProvider{name: "met"}).FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestFetchAll_NoProviders(t *testing.T) {
	snap, err := newFetcher().FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, models.SnapshotSimulated, snap.Provenance)
}

func TestFetchAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := newFetcher(&stubProvider{name: "met", delay: time.Second}).FetchAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snap)
}

func TestFetchAll_ProvidersRunConcurrently(t *testing.T) {
	slow := func(name string) *stubProvider {
		return &stubProvider{name: name, delay: 100 * time.Millisecond, batch: models.Batch{Stations: []models.Station{station}}}
	}
	start := time.Now()
	snap, err := newFetcher(slow("a"), slow("b"), slow("c")).FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Stations, 3)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestFetcher_ProviderNames(t *testing.T) {
	f := newFetcher(&stubProvider{name: "apac_meteorology"}, &stubProvider{name: "cemaden"})
	assert.Equal(t, []string{"apac_meteorology", "cemaden"}, f.ProviderNames())
}

func TestSimulator_Ranges(t *testing.T) {
	sim := NewSimulator(rand.New(rand.NewSource(1)))
	for i := 0; i < 200; i++ {
		snap := sim.Snapshot(fixedNow)
		require.Len(t, snap.Stations, 4)
		assert.Equal(t, models.SnapshotSimulated, snap.Provenance)

		alertsAt := map[models.LatLng]string{}
		for _, a := range snap.Alerts {
			alertsAt[a.Location] = a.Level
		}
		for _, st := range snap.Stations {
			r := st.Reading
			assert.True(t, r.RainfallMM >= 0 && r.RainfallMM <= 80, "rainfall %v", r.RainfallMM)
			assert.True(t, r.Accumulated24hMM >= r.RainfallMM || r.Accumulated24hMM == 150, "accumulated %v < rain %v", r.Accumulated24hMM, r.RainfallMM)
			assert.LessOrEqual(t, r.Accumulated24hMM, 150.0)
			assert.True(t, r.IntensityMMH >= 0 && r.IntensityMMH <= r.RainfallMM/1.5+1e-9, "intensity %v", r.IntensityMMH)
			assert.True(t, r.HumidityPct >= 65 && r.HumidityPct <= 95, "humidity %v", r.HumidityPct)
			assert.True(t, r.PressureHPA >= 1005 && r.PressureHPA <= 1020, "pressure %v", r.PressureHPA)
			assert.True(t, r.RiverLevelM >= 0.5 && r.RiverLevelM <= 4.5, "river %v", r.RiverLevelM)

			level, hasAlert := alertsAt[st.Location]
			switch {
			case r.RiverLevelM > RiverHighLevelM:
				assert.Equal(t, "ALTO", level)
			case r.RiverLevelM > RiverMediumLevelM:
				assert.Equal(t, "MÉDIO", level)
			default:
				assert.False(t, hasAlert, "river %v must not alert", r.RiverLevelM)
			}
		}
	}
}

func TestSimulator_SeededIsReproducible(t *testing.T) {
	a := NewSimulator(rand.New(rand.NewSource(42))).Snapshot(fixedNow)
	b := NewSimulator(rand.New(rand.NewSource(42))).Snapshot(fixedNow)
	assert.Equal(t, a, b)
	assert.Equal(t, "Estação Centro", a.Stations[0].Name)
	assert.Equal(t, models.LatLng{Lat: -8.0631, Lng: -34.8713}, a.Stations[0].Location)
}

func TestSimulator_DoesNotMutateFixedStations(t *testing.T) {
	NewSimulator(nil).Snapshot(fixedNow)
	for _, st := range SimulatedStations {
		assert.Zero(t, st.Reading)
	}
}
