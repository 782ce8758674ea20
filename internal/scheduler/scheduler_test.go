package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPruner struct{ calls atomic.Int32 }

func (p *countingPruner) Prune() int {
	p.calls.Add(1)
	return 3
}

func TestScheduler_RunsPruneOnInterval(t *testing.T) {
	p := &countingPruner{}
	s := New(p, 20*time.Millisecond, nil)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_WaitsForFirstInterval(t *testing.T) {
	p := &countingPruner{}
	s := New(p, time.Hour, nil)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, p.calls.Load())
}

func TestScheduler_NilPrunerIsNoop(t *testing.T) {
	s := New(nil, 0, nil)
	assert.Equal(t, DefaultPruneInterval, s.interval)
	assert.NoError(t, s.Start())
	s.Stop()
}
