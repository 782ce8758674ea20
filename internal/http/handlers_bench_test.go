package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flood-risk-service/internal/alert"
	"github.com/kjstillabower/flood-risk-service/internal/areas"
	"github.com/kjstillabower/flood-risk-service/internal/cache"
	"github.com/kjstillabower/flood-risk-service/internal/engine"
	"github.com/kjstillabower/flood-risk-service/internal/lifecycle"
	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/scoring"
	"github.com/kjstillabower/flood-risk-service/internal/source"
	"github.com/kjstillabower/flood-risk-service/internal/traffic"
)

// benchSource always returns the same live snapshot, so the engine reuses
// its result after the first call.
type benchSource struct {
	snap *models.Snapshot
}

func (s benchSource) Get(ctx context.Context, force bool) (cache.Result, error) {
	return cache.Result{Snapshot: s.snap, Source: cache.SourceHit}, nil
}

func setupBenchmarkRouter(b *testing.B, limiter *rate.Limiter) http.Handler {
	b.Helper()
	snap := &models.Snapshot{
		Stations:   append([]models.Station(nil), source.SimulatedStations...),
		Provenance: models.SnapshotLive,
		FetchedAt:  time.Now(),
	}
	eng := engine.New(areas.Recife(), benchSource{snap: snap},
		scoring.NewScorer(scoring.DefaultConfig()),
		alert.NewClassifier(alert.DefaultThresholds()),
		engine.WithClock(clockwork.NewFakeClock()))
	catalog, err := areas.NewCatalog(areas.Recife())
	if err != nil {
		b.Fatalf("NewCatalog: %v", err)
	}
	tracker := traffic.New(nil)
	h := NewHandler(eng, catalog, nil, tracker, &HealthConfig{OverloadWindow: time.Minute, OverloadThresholdPct: 50}, zap.NewNop())
	return NewRouter(h, RouterConfig{Limiter: limiter, Tracker: tracker}, zap.NewNop())
}

func runBenchmark(b *testing.B, router http.Handler, method, path string) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	}
}

func BenchmarkHandler_GetRisk(b *testing.B) {
	runBenchmark(b, setupBenchmarkRouter(b, nil), "GET", "/risk")
}

func BenchmarkHandler_GetArea(b *testing.B) {
	runBenchmark(b, setupBenchmarkRouter(b, nil), "GET", "/risk/areas/"+areas.Recife()[0].ID)
}

func BenchmarkHandler_GetRisk_RateLimited(b *testing.B) {
	router := setupBenchmarkRouter(b, rate.NewLimiter(rate.Limit(0.001), 1))
	runBenchmark(b, router, "GET", "/risk")
}

func BenchmarkHandler_GetHealth(b *testing.B) {
	lifecycle.SetReady(true)
	defer lifecycle.SetReady(false)
	router := setupBenchmarkRouter(b, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/risk", nil))
	runBenchmark(b, router, "GET", "/health")
}
