package cache

import (
	"context"
	"sync"
	"time"
)

// inFlightRequest tracks a single refresh that multiple callers may wait for.
type inFlightRequest struct {
	done   chan struct{}
	result Result
	err    error
}

// requestCoalescer prevents refresh stampedes by coalescing concurrent callers per key.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// Do runs fn once per key across concurrent callers. Callers that joined an
// existing flight get shared=true. fn runs in its own goroutine and is not
// cancelled when a waiter gives up; each waiter is bounded by its ctx and the
// coalescer timeout.
func (rc *requestCoalescer) Do(ctx context.Context, key string, fn func() (Result, error)) (res Result, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
		go func() {
			req.result, req.err = fn()
			rc.cleanup(key)
			close(req.done)
		}()
	}
	rc.mu.Unlock()

	waitCtx := ctx
	if rc.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}
	select {
	case <-req.done:
		return req.result, exists, req.err
	case <-waitCtx.Done():
		return Result{}, exists, waitCtx.Err()
	}
}

// cleanup removes the in-flight request for key. Must be called after the request completes.
func (rc *requestCoalescer) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}

// inFlightCount reports how many keys have a refresh running.
func (rc *requestCoalescer) inFlightCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.inFlight)
}
