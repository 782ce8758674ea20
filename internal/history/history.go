// Package history records assessment results after each cycle. Sinks are
// fed asynchronously by the engine and never affect the response path.
package history

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/flood-risk-service/internal/models"
	"github.com/kjstillabower/flood-risk-service/internal/observability"
)

// Sink persists results. Implementations must be safe for concurrent use.
type Sink interface {
	Name() string
	Emit(ctx context.Context, res *models.Result) error
}

// Record is one area's assessment as stored in history.
type Record struct {
	RunID      string             `json:"runId"`
	AreaID     string             `json:"areaId"`
	AreaName   string             `json:"areaName"`
	Score      float64            `json:"score"`
	Level      models.Level       `json:"level"`
	Provenance models.Provenance  `json:"provenance"`
	StationID  string             `json:"stationId,omitempty"`
	Global     models.GlobalLevel `json:"globalLevel"`
	AssessedAt time.Time          `json:"assessedAt"`
}

// Records flattens res into one record per area.
func Records(res *models.Result) []Record {
	out := make([]Record, 0, len(res.Assessments))
	for _, a := range res.Assessments {
		out = append(out, Record{
			RunID:      res.RunID,
			AreaID:     a.AreaID,
			AreaName:   a.AreaName,
			Score:      a.RiskScore,
			Level:      a.Level,
			Provenance: a.Provenance,
			StationID:  a.StationID,
			Global:     res.GlobalAlert.Level,
			AssessedAt: a.AssessedAt,
		})
	}
	return out
}

// Fanout emits to every sink and joins their errors. One failing sink does
// not stop the others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout returns a Fanout over sinks. Nil sinks are skipped.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Emit(ctx context.Context, res *models.Result) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Emit(ctx, res); err != nil {
			observability.HistoryEventsTotal.WithLabelValues(s.Name(), "error").Inc()
			f.logger.Warn("history emit failed",
				zap.String("sink", s.Name()),
				zap.String("run_id", res.RunID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		observability.HistoryEventsTotal.WithLabelValues(s.Name(), "success").Inc()
	}
	return errors.Join(errs...)
}
