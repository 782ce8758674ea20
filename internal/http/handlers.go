package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/flood-risk-service/internal/areas"
	"github.com/kjstillabower/flood-risk-service/internal/engine"
	"github.com/kjstillabower/flood-risk-service/internal/history"
	"github.com/kjstillabower/flood-risk-service/internal/lifecycle"
	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
	"github.com/kjstillabower/flood-risk-service/internal/traffic"
	"github.com/kjstillabower/flood-risk-service/internal/validation"
)

// Assessor is the part of the engine the handlers use. *engine.Engine implements it.
type Assessor interface {
	GetAssessments(ctx context.Context, force bool) (*models.Result, error)
	Assessment(ctx context.Context, areaID string) (models.RiskAssessment, error)
	Last() (*models.Result, bool)
}

// HistoryReader serves retained assessment history. *history.MemoryStore implements it.
type HistoryReader interface {
	Stats() []history.AreaStats
	History(areaID string) ([]history.Record, error)
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	StartTime            time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine       Assessor
	catalog      *areas.Catalog
	history      HistoryReader
	traffic      *traffic.Tracker
	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. stats may be nil when the memory
// store is disabled; tracker may be nil to disable overload detection.
func NewHandler(
	assessor Assessor,
	catalog *areas.Catalog,
	stats HistoryReader,
	tracker *traffic.Tracker,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		engine:       assessor,
		catalog:      catalog,
		history:      stats,
		traffic:      tracker,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetRisk handles GET /risk.
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.GetAssessments(r.Context(), false)
	if err != nil {
		h.recordError()
		writeEngineError(w, r, err)
		return
	}
	h.recordServed()
	writeJSON(w, http.StatusOK, res)
}

// GetArea handles GET /risk/areas/{id}.
func (h *Handler) GetArea(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ValidateAreaID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_AREA", err.Error())
		return
	}
	a, err := h.engine.Assessment(r.Context(), id)
	if errors.Is(err, engine.ErrAreaNotFound) {
		writeError(w, r, http.StatusNotFound, "AREA_NOT_FOUND", "unknown area: "+id)
		return
	}
	if err != nil {
		h.recordError()
		writeEngineError(w, r, err)
		return
	}
	h.recordServed()
	writeJSON(w, http.StatusOK, a)
}

// PostRefresh handles POST /risk/refresh. It bypasses the cache TTL.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.GetAssessments(r.Context(), true)
	if err != nil {
		h.recordError()
		writeEngineError(w, r, err)
		return
	}
	h.recordServed()
	observability.LoggerFromContext(r.Context(), h.logger).Info("forced refresh",
		zap.String("run_id", res.RunID),
		zap.String("global_level", string(res.GlobalAlert.Level)))
	writeJSON(w, http.StatusOK, res)
}

// GetHistoryStats handles GET /history/stats.
func (h *Handler) GetHistoryStats(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, r, http.StatusNotFound, "HISTORY_DISABLED", "assessment history is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"areas": h.history.Stats(),
	})
}

// GetAreaHistory handles GET /history/areas/{id}. A known area with no
// retained records yields an empty list.
func (h *Handler) GetAreaHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, r, http.StatusNotFound, "HISTORY_DISABLED", "assessment history is not enabled")
		return
	}
	id, err := validation.ValidateAreaID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_AREA", err.Error())
		return
	}
	known := true
	if h.catalog != nil {
		_, known = h.catalog.ByID(id)
	}
	records, err := h.history.History(id)
	switch {
	case errors.Is(err, history.ErrNotFound) && !known:
		writeError(w, r, http.StatusNotFound, "AREA_NOT_FOUND", "unknown area: "+id)
		return
	case errors.Is(err, history.ErrNotFound):
		records = []history.Record{}
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "HISTORY_UNAVAILABLE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"areaId":  id,
		"records": records,
	})
}

// GetAreas handles GET /areas. Optional filters: severity, neighborhood, region.
func (h *Handler) GetAreas(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, r, http.StatusNotFound, "CATALOG_UNAVAILABLE", "area catalog is not loaded")
		return
	}
	q := r.URL.Query()
	list := h.catalog.All()
	switch {
	case q.Get("severity") != "":
		list = h.catalog.BySeverity(q.Get("severity"))
	case q.Get("neighborhood") != "":
		list = h.catalog.ByNeighborhood(q.Get("neighborhood"))
	}
	resp := map[string]interface{}{
		"summary": h.catalog.Summary(),
		"areas":   list,
	}
	if region := strings.TrimSpace(q.Get("region")); region != "" {
		resp["criticalPoints"] = h.catalog.CriticalPointsByRegion(region)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAreaInfo handles GET /areas/{id}: the static record of one area with
// its critical neighborhoods and the advice for its risk type.
func (h *Handler) GetAreaInfo(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeError(w, r, http.StatusNotFound, "CATALOG_UNAVAILABLE", "area catalog is not loaded")
		return
	}
	id, err := validation.ValidateAreaID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_AREA", err.Error())
		return
	}
	a, ok := h.catalog.ByID(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "AREA_NOT_FOUND", "unknown area: "+id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"area":                  a,
		"criticalNeighborhoods": areas.CriticalNeighborhoodsIn(a),
		"advice":                areas.Advice(a),
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	last, _ := h.engine.Last()
	result := h.computeHealthStatus(last)

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"upstream": "unknown"}
	if last != nil {
		checks["upstream"] = "healthy"
		if last.Stats.SnapshotProvenance != models.SnapshotLive || last.Stats.SnapshotStale {
			checks["upstream"] = "unhealthy"
		}
		for _, p := range last.Stats.Providers {
			if p.OK {
				checks[p.Name] = "healthy"
			} else {
				checks[p.Name] = "unhealthy"
			}
		}
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "flood-risk-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	if last != nil {
		resp["lastRunId"] = last.RunID
		resp["globalLevel"] = last.GlobalAlert.Level
		resp["snapshotAgeSeconds"] = last.Stats.SnapshotAgeSeconds
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus(last *models.Result) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if !lifecycle.IsReady() || last == nil {
		return healthResult{"starting", http.StatusServiceUnavailable, "no_snapshot"}
	}
	if h.traffic != nil && h.healthConfig != nil && h.healthConfig.OverloadWindow > 0 && h.healthConfig.OverloadThresholdPct > 0 {
		c := h.traffic.Window(h.healthConfig.OverloadWindow)
		if c.Total() > 0 && c.DeniedPct() >= float64(h.healthConfig.OverloadThresholdPct) {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if last.Stats.SnapshotStale {
		return healthResult{"degraded", http.StatusOK, "stale_snapshot"}
	}
	if last.Stats.SnapshotProvenance != models.SnapshotLive {
		return healthResult{"degraded", http.StatusOK, "simulated_snapshot"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) recordServed() {
	if h.traffic != nil {
		h.traffic.RecordServed()
	}
}

func (h *Handler) recordError() {
	if h.traffic != nil {
		h.traffic.RecordError()
	}
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeEngineError maps an engine failure. The engine only fails when the
// request ends before any snapshot exists, so both cases are about time.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context(), nil).Debug("assessment failed", zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "Risk assessment timed out")
		return
	}
	writeError(w, r, http.StatusServiceUnavailable, "SNAPSHOT_UNAVAILABLE", "No flood-risk data available yet")
}
