package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/flood-risk-service/internal/observability"
	"github.com/kjstillabower/flood-risk-service/internal/traffic"
)

// RouterConfig holds the per-route middleware settings.
type RouterConfig struct {
	Limiter        *rate.Limiter // nil disables rate limiting
	Tracker        *traffic.Tracker
	RequestTimeout time.Duration
}

// NewRouter wires every route. /risk routes are rate limited and carry the
// request timeout; /health and /metrics are never limited.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")
	router.HandleFunc("/areas", h.GetAreas).Methods("GET")
	router.HandleFunc("/areas/{id}", h.GetAreaInfo).Methods("GET")
	router.HandleFunc("/history/stats", h.GetHistoryStats).Methods("GET")
	router.HandleFunc("/history/areas/{id}", h.GetAreaHistory).Methods("GET")

	riskRouter := router.PathPrefix("/risk").Subrouter()
	riskRouter.Use(RateLimitMiddleware(cfg.Limiter, cfg.Tracker))
	if cfg.RequestTimeout > 0 {
		riskRouter.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	riskRouter.HandleFunc("", h.GetRisk).Methods("GET")
	riskRouter.HandleFunc("/areas/{id}", h.GetArea).Methods("GET")
	riskRouter.HandleFunc("/refresh", h.PostRefresh).Methods("POST")
	return router
}
