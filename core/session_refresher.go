package core

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/scoutme/client/internal/logging"
)

// SessionRefresher calls SessionStore.FetchUser on a jittered interval so
// profile changes and server-side revocations are picked up while the
// client stays open.
type SessionRefresher struct {
	store    *SessionStore
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	isActive bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSessionRefresher creates a stopped refresher. Each refresh is bounded
// by timeout.
func NewSessionRefresher(store *SessionStore, interval, timeout time.Duration, logger *slog.Logger) *SessionRefresher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SessionRefresher{
		store:    store,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("component", "refresher"),
	}
}

// Start launches the refresh loop. A non-positive interval disables it.
func (r *SessionRefresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isActive || r.interval <= 0 {
		return
	}
	r.isActive = true
	r.stopChan = make(chan struct{})
	r.wg.Add(1)
	go r.loop(r.stopChan)
}

// Stop ends the loop and waits for an in-flight refresh. It is idempotent.
func (r *SessionRefresher) Stop() {
	r.mu.Lock()
	if !r.isActive {
		r.mu.Unlock()
		return
	}
	close(r.stopChan)
	r.isActive = false
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *SessionRefresher) loop(stop <-chan struct{}) {
	defer r.wg.Done()

	timer := time.NewTimer(r.jittered())
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			r.refresh(stop)
			timer.Reset(r.jittered())
		}
	}
}

func (r *SessionRefresher) refresh(stop <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.store.FetchUser(ctx); err != nil {
		r.logger.Debug("session refresh failed", "error", err)
	}
}

// jittered spreads refreshes over +/-20% of the interval.
func (r *SessionRefresher) jittered() time.Duration {
	lo := float64(r.interval) * 0.8
	hi := float64(r.interval) * 1.2
	return time.Duration(lo + rand.Float64()*(hi-lo))
}
