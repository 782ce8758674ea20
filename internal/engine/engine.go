// Package engine runs one flood-risk assessment cycle: it takes the current
// source snapshot, matches every area to its nearest station, scores and
// classifies each area in parallel, and rolls the results up into a
// city-wide alert.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kjstillabower/flood-risk-service/internal/alert"
	"github.com/kjstillabower/flood-risk-service/internal/areas"
	"github.com/kjstillabower/flood-risk-service/internal/cache"
	"github.com/kjstillabower/flood-risk-service/internal/geo"
	"github.com/kjstillabower/flood-risk-service/internal/matcher"
	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
	"github.com/kjstillabower/flood-risk-service/internal/scoring"
)

const tracerName = "github.com/kjstillabower/flood-risk-service/internal/engine"

// ErrAreaNotFound is returned by Assessment for an unknown area ID.
var ErrAreaNotFound = errors.New("area not found")

// DefaultSinkTimeout bounds one asynchronous sink emission.
const DefaultSinkTimeout = 5 * time.Second

// Run outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
)

// SnapshotSource is the part of the source cache the engine reads from.
// *cache.SourceCache implements it.
type SnapshotSource interface {
	Get(ctx context.Context, force bool) (cache.Result, error)
}

// Sink receives every newly computed result. Emit is called from its own
// goroutine and must not modify res.
type Sink interface {
	Emit(ctx context.Context, res *models.Result) error
}

// Engine is safe for concurrent use.
type Engine struct {
	areas       []models.Area
	source      SnapshotSource
	scorer      *scoring.Scorer
	classifier  *alert.Classifier
	sink        Sink
	clock       clockwork.Clock
	logger      *zap.Logger
	maxKM       float64
	sinkTimeout time.Duration

	index       map[string]int

	mu        sync.RWMutex
	last      *models.Result
	lastSnap  *models.Snapshot
	lastStale bool
	flights   map[cycleKey]*cycleFlight
	sinkWG    sync.WaitGroup
}

// cycleKey identifies the input of one cycle. A stale flag change rescores
// the same snapshot on the fallback path.
type cycleKey struct {
	snap  *models.Snapshot
	stale bool
}

// cycleFlight is a cycle other callers for the same key wait on.
type cycleFlight struct {
	done chan struct{}
	res  *models.Result
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets where new results are emitted.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock sets the clock used for timestamps and durations.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMaxStationKM rejects station matches farther than km. 0 is unlimited.
func WithMaxStationKM(km float64) Option {
	return func(e *Engine) {
		if km >= 0 {
			e.maxKM = km
		}
	}
}

// WithSinkTimeout bounds each sink emission.
func WithSinkTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.sinkTimeout = d
		}
	}
}

// New creates an Engine over a fixed list of areas.
func New(list []models.Area, source SnapshotSource, scorer *scoring.Scorer, classifier *alert.Classifier, opts ...Option) *Engine {
	e := &Engine{
		areas:       append([]models.Area(nil), list...),
		source:      source,
		scorer:      scorer,
		classifier:  classifier,
		clock:       clockwork.NewRealClock(),
		logger:      zap.NewNop(),
		sinkTimeout: DefaultSinkTimeout,
		index:       make(map[string]int, len(list)),
		flights:     make(map[cycleKey]*cycleFlight),
	}
	for i, a := range e.areas {
		e.index[a.ID] = i
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetAssessments returns the assessment of every area for the current
// snapshot. force refreshes the snapshot first. A snapshot that has not
// changed since the last call yields the previous result unchanged, so
// repeated calls within the cache TTL are identical and emit nothing.
// Concurrent callers on the same snapshot share one cycle.
// An error is returned only when ctx ends before any snapshot exists.
func (e *Engine) GetAssessments(ctx context.Context, force bool) (*models.Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "engine.GetAssessments")
	defer span.End()
	span.SetAttributes(attribute.Bool("force", force))

	snapRes, err := e.source.Get(ctx, force)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if snapRes.Snapshot == nil {
		err := errors.New("source returned no snapshot")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	key := cycleKey{snap: snapRes.Snapshot, stale: snapRes.Stale}
	e.mu.Lock()
	if e.last != nil && e.lastSnap == key.snap && e.lastStale == key.stale {
		prev := e.last
		e.mu.Unlock()
		span.SetAttributes(attribute.Bool("reused", true))
		return withSnapshotAge(prev, snapRes), nil
	}
	if f, ok := e.flights[key]; ok {
		e.mu.Unlock()
		// run never blocks on I/O, so waiting on it is bounded.
		<-f.done
		span.SetAttributes(attribute.Bool("reused", true))
		return withSnapshotAge(f.res, snapRes), nil
	}
	f := &cycleFlight{done: make(chan struct{})}
	e.flights[key] = f
	e.mu.Unlock()

	res := e.run(ctx, snapRes)
	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("global_level", string(res.GlobalAlert.Level)),
		attribute.String("snapshot_provenance", snapRes.Snapshot.Provenance),
		attribute.Bool("snapshot_stale", snapRes.Stale),
	)

	e.mu.Lock()
	// A concurrent caller may have published a result for a newer snapshot.
	if e.lastSnap == nil || e.lastSnap == snapRes.Snapshot || !snapRes.Snapshot.FetchedAt.Before(e.lastSnap.FetchedAt) {
		e.last = res
		e.lastSnap = snapRes.Snapshot
		e.lastStale = snapRes.Stale
	}
	f.res = res
	delete(e.flights, key)
	e.mu.Unlock()
	close(f.done)

	e.emit(res)
	return res, nil
}

// Assessment returns the current assessment for one area.
func (e *Engine) Assessment(ctx context.Context, areaID string) (models.RiskAssessment, error) {
	idx, ok := e.index[areaID]
	if !ok {
		return models.RiskAssessment{}, fmt.Errorf("%w: %s", ErrAreaNotFound, areaID)
	}
	res, err := e.GetAssessments(ctx, false)
	if err != nil {
		return models.RiskAssessment{}, err
	}
	// Assessments keep the area order.
	return res.Assessments[idx], nil
}

// Refresh runs one cycle; force bypasses the cache TTL. It satisfies
// cache.RefreshFunc so the background refresher also scores and records
// every new snapshot.
func (e *Engine) Refresh(ctx context.Context, force bool) error {
	_, err := e.GetAssessments(ctx, force)
	return err
}

// Last returns the most recent result without triggering a cycle.
func (e *Engine) Last() (*models.Result, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.last != nil
}

// Wait blocks until pending sink emissions finish.
func (e *Engine) Wait() {
	e.sinkWG.Wait()
}

// withSnapshotAge returns a shallow copy of res whose snapshot age reflects r.
func withSnapshotAge(res *models.Result, r cache.Result) *models.Result {
	out := *res
	out.Stats.SnapshotAgeSeconds = r.Age.Seconds()
	return &out
}

func (e *Engine) run(ctx context.Context, r cache.Result) *models.Result {
	start := e.clock.Now()
	snap := r.Snapshot
	in := cycleInput{
		alerts:    snap.Alerts,
		stations:  snap.Stations,
		live:      snap.Live() && !r.Stale,
		simulated: snap.Provenance == models.SnapshotSimulated,
		cycle:     snap.FetchedAt.UnixNano(),
		now:       start,
	}

	assessments := make([]models.RiskAssessment, len(e.areas))
	var wg sync.WaitGroup
	for i := range e.areas {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			assessments[idx] = e.assess(e.areas[idx], in)
		}(i)
	}
	wg.Wait()

	res := &models.Result{
		RunID:       uuid.NewString(),
		GlobalAlert: alert.Aggregate(assessments),
		Assessments: assessments,
		GeneratedAt: start,
		Stats:       buildStats(assessments, r),
	}

	elapsed := e.clock.Since(start)
	e.observe(res, elapsed)

	logger := observability.LoggerFromContext(ctx, e.logger)
	outcome := OutcomeSuccess
	if !in.live {
		outcome = OutcomeDegraded
		logger.Warn("assessment cycle degraded",
			zap.String("run_id", res.RunID),
			zap.String("snapshot_provenance", snap.Provenance),
			zap.Bool("snapshot_stale", r.Stale),
			zap.Int("stations", len(snap.Stations)))
	}
	logger.Debug("assessment cycle complete",
		zap.String("run_id", res.RunID),
		zap.String("outcome", outcome),
		zap.Int("areas", len(assessments)),
		zap.Int("live", res.Stats.ByProvenance[models.ProvenanceLive]),
		zap.String("global_level", string(res.GlobalAlert.Level)),
		zap.Duration("duration", elapsed))
	return res
}

type cycleInput struct {
	stations  []models.Station
	alerts    []models.HazardAlert
	live      bool
	simulated bool
	cycle     int64
	now       time.Time
}

func (e *Engine) assess(area models.Area, in cycleInput) models.RiskAssessment {
	var (
		station *models.Station
		dist    float64
	)
	if len(area.Polygon) > 0 {
		center := geo.Centroid(area.Polygon, geo.DefaultCenter)
		if st, d, ok := matcher.Nearest(center, in.stations, e.maxKM); ok {
			station, dist = &st, d
		}
	}

	score := e.scorer.Score(scoring.Input{
		Area:       area,
		Station:    station,
		DistanceKM: dist,
		Alerts:     in.alerts,
		Live:       in.live,
		Simulated:  in.simulated,
		Cycle:      in.cycle,
	})
	class := e.classifier.Classify(score.Value)

	var rainProb float64
	if score.Path == scoring.PathLive {
		rainProb = rainProbability(station.Reading.RainfallMM)
	}

	out := models.RiskAssessment{
		AreaID:           area.ID,
		AreaName:         area.Name,
		Region:           area.Region,
		RiskScore:        score.Value,
		Level:            class.Level,
		Color:            class.Color,
		Provenance:       score.Provenance,
		Factors:          score.Factors,
		Recommendations:  e.classifier.Recommend(class.Level, score.Factors, rainProb, areas.Advice(area)),
		RainProbability:  rainProb,
		FloodProbability: score.Value * 100,
		AreaKM2:          geo.PlanarArea(area.Polygon, geo.DefaultMinAreaKM2),
		CriticalPoints:   area.CriticalPoints,
		AssessedAt:       in.now,
	}
	if station != nil {
		out.StationID = station.ID
		out.StationName = station.Name
		out.StationDistanceKM = dist
	}
	out.Description = describe(area, out, station)
	return out
}

func rainProbability(rainfallMM float64) float64 {
	if rainfallMM <= 0 {
		return 0
	}
	return min(100, rainfallMM*10)
}

func describe(area models.Area, a models.RiskAssessment, station *models.Station) string {
	var base string
	switch a.Provenance {
	case models.ProvenanceLive:
		r := station.Reading
		base = fmt.Sprintf("Risco %s: %.1f mm de chuva, %.1f mm acumulados em 24h (%s, %.1f km)",
			a.Level, r.RainfallMM, r.Accumulated24hMM, station.Name, a.StationDistanceKM)
	case models.ProvenanceSimulated:
		base = fmt.Sprintf("Risco %s estimado com dados simulados: fontes indisponíveis", a.Level)
	default:
		base = fmt.Sprintf("Risco %s estimado pela vulnerabilidade da área", a.Level)
	}
	if rt, ok := areas.RiskTypes[area.RiskType]; ok {
		base += ". " + rt.Description
	}
	return base
}

func buildStats(list []models.RiskAssessment, r cache.Result) models.Stats {
	s := models.Stats{
		TotalAreas:         len(list),
		ByLevel:            map[models.Level]int{models.LevelLow: 0, models.LevelModerate: 0, models.LevelHigh: 0},
		ByProvenance:       map[models.Provenance]int{},
		StationsAvailable:  len(r.Snapshot.Stations),
		HazardAlerts:       len(r.Snapshot.Alerts),
		SnapshotProvenance: r.Snapshot.Provenance,
		SnapshotAgeSeconds: r.Age.Seconds(),
		SnapshotStale:      r.Stale,
		Providers:          r.Snapshot.Providers,
	}
	var sum float64
	for _, a := range list {
		s.ByLevel[a.Level]++
		s.ByProvenance[a.Provenance]++
		sum += a.RiskScore
		if a.RiskScore > s.MaxScore || s.MaxScoreArea == "" {
			s.MaxScore = a.RiskScore
			s.MaxScoreArea = a.AreaID
		}
	}
	if len(list) > 0 {
		s.AverageScore = sum / float64(len(list))
	}
	return s
}

func (e *Engine) observe(res *models.Result, elapsed time.Duration) {
	observability.AssessmentRunDuration.Observe(elapsed.Seconds())
	for _, a := range res.Assessments {
		observability.AssessmentsTotal.WithLabelValues(string(a.Level), string(a.Provenance)).Inc()
		observability.AreaRiskScore.WithLabelValues(a.AreaID).Set(a.RiskScore)
	}
	observability.GlobalAlertLevel.Set(float64(tierRank(res.GlobalAlert.Level)))
}

func tierRank(l models.GlobalLevel) int {
	switch l {
	case models.GlobalEmergency:
		return 3
	case models.GlobalWarning:
		return 2
	case models.GlobalAttention:
		return 1
	default:
		return 0
	}
}

// emit hands res to the sink without blocking the caller.
func (e *Engine) emit(res *models.Result) {
	if e.sink == nil {
		return
	}
	e.sinkWG.Add(1)
	go func() {
		defer e.sinkWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.sinkTimeout)
		defer cancel()
		if err := e.sink.Emit(ctx, res); err != nil {
			e.logger.Warn("history sink failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}()
}
