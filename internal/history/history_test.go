package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/flood-risk-service/internal/models"
)

var t0 = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

func result(runID string, at time.Time, scores map[string]float64) *models.Result {
	res := &models.Result{RunID: runID, GeneratedAt: at, GlobalAlert: models.GlobalAlert{Level: models.GlobalNormal}}
	for _, id := range []string{"1", "2", "3"} {
		score, ok := scores[id]
		if !ok {
			continue
		}
		level := models.LevelLow
		if score >= 0.7 {
			level = models.LevelHigh
		} else if score >= 0.4 {
			level = models.LevelModerate
		}
		res.Assessments = append(res.Assessments, models.RiskAssessment{
			AreaID:     id,
			AreaName:   "Área " + id,
			RiskScore:  score,
			Level:      level,
			Provenance: models.ProvenanceLive,
			AssessedAt: at,
		})
	}
	return res
}

func TestRecords(t *testing.T) {
	res := result("run-1", t0, map[string]float64{"1": 0.8, "2": 0.3})
	res.GlobalAlert.Level = models.GlobalAttention

	got := Records(res)
	require.Len(t, got, 2)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.Equal(t, "1", got[0].AreaID)
	assert.Equal(t, models.LevelHigh, got[0].Level)
	assert.Equal(t, models.GlobalAttention, got[1].Global)
}

func TestMemoryStore_EmitAndStats(t *testing.T) {
	s := NewMemoryStore(0, 0, clockwork.NewFakeClockAt(t0))
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, result("a", t0, map[string]float64{"1": 0.2, "2": 0.5})))
	require.NoError(t, s.Emit(ctx, result("b", t0.Add(time.Minute), map[string]float64{"1": 0.8, "2": 0.3})))

	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "1", stats[0].AreaID)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 0.5, stats[0].MeanScore, 1e-9)
	assert.Equal(t, 0.8, stats[0].MaxScore)
	assert.Equal(t, models.LevelHigh, stats[0].LastLevel)
	assert.Equal(t, t0.Add(time.Minute), stats[0].LastAt)
	assert.Equal(t, models.LevelLow, stats[1].LastLevel)
	assert.Equal(t, 4, s.Len())
}

func TestMemoryStore_MaxPerArea(t *testing.T) {
	s := NewMemoryStore(2, 0, nil)
	ctx := context.Background()
	for i, score := range []float64{0.1, 0.2, 0.3} {
		require.NoError(t, s.Emit(ctx, result("r", t0.Add(time.Duration(i)*time.Minute), map[string]float64{"1": score})))
	}

	list, err := s.History("1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0.2, list[0].Score)
	assert.Equal(t, 0.3, list[1].Score)
}

func TestMemoryStore_Prune(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	s := NewMemoryStore(0, time.Hour, clock)
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, result("old", t0, map[string]float64{"1": 0.1, "2": 0.1})))
	require.NoError(t, s.Emit(ctx, result("new", t0.Add(50*time.Minute), map[string]float64{"1": 0.9})))

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 0, s.Prune())

	clock.Advance(40 * time.Minute)
	assert.Equal(t, 2, s.Prune())

	list, err := s.History("1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].RunID)

	_, err = s.History("2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_PruneDisabled(t *testing.T) {
	s := NewMemoryStore(0, 0, nil)
	require.NoError(t, s.Emit(context.Background(), result("r", t0, map[string]float64{"1": 0.1})))
	assert.Equal(t, 0, s.Prune())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_EmitCancelled(t *testing.T) {
	s := NewMemoryStore(0, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Emit(ctx, result("r", t0, map[string]float64{"1": 0.1})), context.Canceled)
	assert.Equal(t, 0, s.Len())
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }

func (failingSink) Emit(context.Context, *models.Result) error {
	return errors.New("broker unavailable")
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	mem := NewMemoryStore(0, 0, nil)
	f := NewFanout(zap.New(core), failingSink{}, nil, mem)
	assert.Equal(t, 2, f.Len())

	err := f.Emit(context.Background(), result("r", t0, map[string]float64{"1": 0.5}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, 1, mem.Len(), "memory store still receives the result")

	entries := logs.FilterMessage("history emit failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "broken", entries[0].ContextMap()["sink"])
}

func TestRecordMessage(t *testing.T) {
	r := Record{RunID: "run-9", AreaID: "4", Level: models.LevelModerate, Provenance: models.ProvenanceFallback, AssessedAt: t0}

	msg, err := recordMessage(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("4"), msg.Key)

	var back Record
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, "run-9", back.RunID)

	require.Len(t, msg.Headers, 4)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("MODERADO"), msg.Headers[1].Value)
	assert.Equal(t, []byte("FALLBACK"), msg.Headers[2].Value)
	assert.Equal(t, []byte(t0.Format(time.RFC3339)), msg.Headers[3].Value)
}

func TestKafkaSink_EmptyResultWritesNothing(t *testing.T) {
	k := NewKafkaSink([]string{"127.0.0.1:1"}, "")
	t.Cleanup(func() { _ = k.Close() })
	assert.NoError(t, k.Emit(context.Background(), &models.Result{RunID: "empty"}))
	assert.Equal(t, DefaultTopic, k.writer.Topic)
}
