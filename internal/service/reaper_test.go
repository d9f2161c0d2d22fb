package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezlevup/supportdesk/internal/kafka"
	"github.com/ezlevup/supportdesk/internal/models"
	"github.com/ezlevup/supportdesk/pkg/logger"
)

type reaperFixture struct {
	*sessionFixture
	rp   *reaper
	prod *fakeProducer
}

func newReaperFixture(t *testing.T, cfg ReaperConfig) *reaperFixture {
	t.Helper()
	sf := newSessionFixture(cfg.Timeout)
	prod := &fakeProducer{}
	rp := NewReaper(sf.svc, sf.tm, prod, cfg, logger.InitializeTestZapLogger())
	return &reaperFixture{
		sessionFixture: sf,
		rp:             rp.(*reaper),
		prod:           prod,
	}
}

func TestSweepEndsExpiredSessions(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{Interval: time.Minute, Timeout: 30 * time.Minute})
	ctx := context.Background()
	f.seedActive(t, "sess_aaaa0001", "customer_1a2b3c4d", "dr_smith", time.Now().Add(-31*time.Minute))

	f.rp.sweep(ctx)

	stored, err := f.repo.Get(ctx, "sess_aaaa0001")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, stored.Status)
	require.NotNil(t, stored.EndedAt)

	_, ok := f.tm.StartedAt("sess_aaaa0001")
	assert.False(t, ok)

	ended := f.prod.endedEvents()
	require.Len(t, ended, 1)
	assert.Equal(t, kafka.EndReasonTimeout, ended[0].Reason)
	assert.Equal(t, "sess_aaaa0001", ended[0].SessionID)

	st := f.rp.Status()
	assert.Equal(t, int64(1), st.TotalReaped)
	assert.Equal(t, int64(0), st.ErrorCount)
	assert.False(t, st.LastSweep.IsZero())
}

func TestSweepSkipsFreshSessions(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{Interval: time.Minute, Timeout: 30 * time.Minute})
	ctx := context.Background()
	f.seedActive(t, "sess_aaaa0001", "customer_1a2b3c4d", "dr_smith", time.Now().Add(-10*time.Minute))

	f.rp.sweep(ctx)

	stored, err := f.repo.Get(ctx, "sess_aaaa0001")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, stored.Status)

	_, ok := f.tm.StartedAt("sess_aaaa0001")
	assert.True(t, ok, "fresh sessions keep their timer entry")
	assert.Empty(t, f.prod.endedEvents())
}

func TestSweepDropsOrphanTimerEntries(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{Interval: time.Minute, Timeout: 30 * time.Minute})

	// Entry with no backing session record.
	f.tm.Start("sess_ghost000", time.Now().Add(-time.Hour))

	f.rp.sweep(context.Background())

	_, ok := f.tm.StartedAt("sess_ghost000")
	assert.False(t, ok, "orphan entries are dropped, not retried forever")
	assert.Empty(t, f.prod.endedEvents())
}

func TestSweepToleratesManualEndRace(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{Interval: time.Minute, Timeout: 30 * time.Minute})
	ctx := context.Background()

	// Session already ended in the store but the timer entry survived,
	// as if a manual end landed between snapshot and re-check.
	now := time.Now()
	endedAt := now.Add(-time.Minute)
	require.NoError(t, f.repo.Create(ctx, &models.Session{
		ID:         "sess_aaaa0001",
		CustomerID: "customer_1a2b3c4d",
		OperatorID: "dr_smith",
		Status:     models.SessionStatusEnded,
		CreatedAt:  now.Add(-time.Hour),
		EndedAt:    &endedAt,
		UpdatedAt:  endedAt,
	}))
	f.tm.Start("sess_aaaa0001", now.Add(-time.Hour))

	f.rp.sweep(ctx)

	_, ok := f.tm.StartedAt("sess_aaaa0001")
	assert.False(t, ok, "stale entry cleaned up")
	assert.Empty(t, f.prod.endedEvents(), "no duplicate ended event")

	st := f.rp.Status()
	assert.Equal(t, int64(0), st.TotalReaped)
	assert.Equal(t, int64(0), st.ErrorCount)
}

func TestSweepIsolatesPerSessionFailures(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{Interval: time.Minute, Timeout: 30 * time.Minute})
	ctx := context.Background()

	f.tm.Start("sess_ghost000", time.Now().Add(-time.Hour))
	f.seedActive(t, "sess_aaaa0001", "customer_1a2b3c4d", "dr_smith", time.Now().Add(-time.Hour))

	f.rp.sweep(ctx)

	stored, err := f.repo.Get(ctx, "sess_aaaa0001")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusEnded, stored.Status, "one bad entry never blocks the rest")
}

func TestReaperStartStop(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{
		Interval:        time.Minute,
		Timeout:         30 * time.Minute,
		ShutdownTimeout: time.Second,
	})
	ctx := context.Background()

	require.NoError(t, f.rp.Start(ctx))
	assert.True(t, f.rp.Status().IsRunning)
	assert.Error(t, f.rp.Start(ctx), "double start rejected")

	require.NoError(t, f.rp.Stop())
	assert.False(t, f.rp.Status().IsRunning)
	assert.Error(t, f.rp.Stop(), "double stop rejected")
}

// slowSessionService parks Get on a gate so a test can hold a sweep
// mid-flight at a known point.
type slowSessionService struct {
	SessionService
	gate    chan struct{}
	entered chan struct{}
}

func (s *slowSessionService) Get(ctx context.Context, ssID string) (*models.Session, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.gate
	return s.SessionService.Get(ctx, ssID)
}

func TestStopFinishesWithInFlightSweep(t *testing.T) {
	sf := newSessionFixture(30 * time.Minute)
	sf.seedActive(t, "sess_aaaa0001", "customer_1a2b3c4d", "dr_smith", time.Now().Add(-time.Hour))

	slow := &slowSessionService{
		SessionService: sf.svc,
		gate:           make(chan struct{}),
		entered:        make(chan struct{}, 1),
	}
	rp := NewReaper(slow, sf.tm, nil, ReaperConfig{
		Interval:        5 * time.Millisecond,
		Timeout:         30 * time.Minute,
		ShutdownTimeout: 2 * time.Second,
	}, logger.InitializeTestZapLogger()).(*reaper)

	require.NoError(t, rp.Start(context.Background()))

	select {
	case <-slow.entered:
	case <-time.After(time.Second):
		t.Fatal("sweep never reached the store")
	}

	// Release the sweep shortly after Stop starts waiting on it.
	go func() {
		time.Sleep(30 * time.Millisecond)
		close(slow.gate)
	}()

	start := time.Now()
	require.NoError(t, rp.Stop())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second,
		"stop returns when the sweep finishes, not after the shutdown timeout")

	ss, err := sf.repo.Get(context.Background(), "sess_aaaa0001")
	require.NoError(t, err)
	assert.True(t, ss.IsEnded(), "the in-flight sweep ran to completion before stop returned")
}

func TestReaperTickerDrivesSweeps(t *testing.T) {
	f := newReaperFixture(t, ReaperConfig{
		Interval:        10 * time.Millisecond,
		Timeout:         30 * time.Minute,
		ShutdownTimeout: time.Second,
	})
	ctx := context.Background()
	f.seedActive(t, "sess_aaaa0001", "customer_1a2b3c4d", "dr_smith", time.Now().Add(-time.Hour))

	require.NoError(t, f.rp.Start(ctx))
	defer f.rp.Stop()

	require.Eventually(t, func() bool {
		ss, err := f.repo.Get(ctx, "sess_aaaa0001")
		return err == nil && ss.IsEnded()
	}, time.Second, 5*time.Millisecond)
}
