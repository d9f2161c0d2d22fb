package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ezlevup/supportdesk/internal/kafka"
	"github.com/ezlevup/supportdesk/internal/timers"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

// Reaper periodically force-ends active sessions that have exceeded the
// configured timeout. It goes through the same End transition as manual
// termination, so the two paths can never disagree on the state machine.
type Reaper interface {
	Start(ctx context.Context) error
	Stop() error
	Status() ReaperStatus
}

type ReaperStatus struct {
	IsRunning   bool      `json:"is_running"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	LastSweep   time.Time `json:"last_sweep,omitempty"`
	TotalReaped int64     `json:"total_reaped"`
	ErrorCount  int64     `json:"error_count"`
}

type ReaperConfig struct {
	Interval        time.Duration // how often to sweep
	Timeout         time.Duration // max session duration
	ShutdownTimeout time.Duration // max time to wait for graceful stop
}

type reaper struct {
	ssSvc SessionService
	tm    *timers.Registry
	prod  kafka.Producer
	l     logger.Logger

	config ReaperConfig

	mu        sync.RWMutex
	isRunning bool
	startedAt time.Time
	stopCh    chan struct{}
	ticker    *time.Ticker
	wg        sync.WaitGroup

	lastSweep   time.Time
	totalReaped int64
	errorCount  int64
}

func NewReaper(
	ssSvc SessionService,
	tm *timers.Registry,
	prod kafka.Producer,
	cfg ReaperConfig,
	l logger.Logger,
) Reaper {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &reaper{
		ssSvc:  ssSvc,
		tm:     tm,
		prod:   prod,
		l:      l,
		config: cfg,
		stopCh: make(chan struct{}),
	}
}

func (r *reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return errors.New("reaper is already running")
	}

	r.l.Infof(ctx, "Starting session reaper: interval=%s timeout=%s",
		r.config.Interval, r.config.Timeout)

	r.isRunning = true
	r.startedAt = time.Now()
	r.ticker = time.NewTicker(r.config.Interval)

	r.wg.Add(1)
	go r.sweepLoop(ctx)

	return nil
}

func (r *reaper) Stop() error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return errors.New("reaper is not running")
	}

	close(r.stopCh)
	if r.ticker != nil {
		r.ticker.Stop()
	}
	r.isRunning = false

	// An in-flight sweep takes r.mu to update its counters, so the wait
	// must happen with the mutex released or the sweep can never finish.
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.l.Info(context.Background(), "Session reaper stopped")
	case <-time.After(r.config.ShutdownTimeout):
		r.l.Warn(context.Background(), "Session reaper shutdown timeout exceeded")
	}

	return nil
}

func (r *reaper) sweepLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.l.Info(ctx, "Session reaper stopped: context cancelled")
			return
		case <-r.stopCh:
			return
		case <-r.ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep snapshots the timer registry, then re-checks each expired candidate
// against the store before ending it: a session may have been ended manually
// between the snapshot and now. One session's failure never aborts the rest
// of the batch.
func (r *reaper) sweep(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.lastSweep = time.Now()
		r.mu.Unlock()
	}()

	snapshot := r.tm.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	now := time.Now()
	for ssID, startedAt := range snapshot {
		if now.Sub(startedAt) < r.config.Timeout {
			continue
		}
		r.reapSession(ctx, ssID)
	}
}

func (r *reaper) reapSession(ctx context.Context, ssID string) {
	ss, err := r.ssSvc.Get(ctx, ssID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			// Registry entry with no backing record; drop it so it does not
			// come back every sweep.
			r.tm.Stop(ssID)
			r.l.Warnf(ctx, "Dropped timer entry for missing session: session_id=%s", ssID)
			return
		}
		r.incrementErrorCount()
		r.l.Errorf(ctx, "reaper.reapSession: %v", err)
		return
	}

	if !ss.IsActive() {
		// Already ended elsewhere; the registry entry goes with it.
		r.tm.Stop(ssID)
		return
	}

	ended, err := r.ssSvc.End(ctx, ssID)
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			// A manual end won the race. Not an error.
			return
		}
		r.incrementErrorCount()
		r.l.Errorf(ctx, "reaper.reapSession: session_id=%s: %v", ssID, err)
		return
	}

	r.mu.Lock()
	r.totalReaped++
	r.mu.Unlock()

	r.l.Warnf(ctx, "Expired session force-ended: session_id=%s operator=%s",
		ssID, ended.OperatorID)

	if r.prod != nil {
		if err := r.prod.PublishSessionEnded(ctx, kafka.SessionEndedEvent{
			SessionID:  ended.ID,
			CustomerID: ended.CustomerID,
			OperatorID: ended.OperatorID,
			Reason:     kafka.EndReasonTimeout,
			EndedAt:    *ended.EndedAt,
		}); err != nil {
			r.l.Errorf(ctx, "Failed to publish session ended event: session_id=%s: %v", ssID, err)
		}
	}
}

func (r *reaper) incrementErrorCount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorCount++
}

func (r *reaper) Status() ReaperStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return ReaperStatus{
		IsRunning:   r.isRunning,
		StartedAt:   r.startedAt,
		LastSweep:   r.lastSweep,
		TotalReaped: r.totalReaped,
		ErrorCount:  r.errorCount,
	}
}
