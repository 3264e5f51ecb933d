package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"shift-staffing-client/config"
	"shift-staffing-client/logger"
)

// UnreadPoller is the part of the notification center the job polls.
type UnreadPoller interface {
	LoadCounts(ctx context.Context) error
	ClearExpired(now time.Time) int
}

// DashboardRefresher is the part of the dashboard the job refreshes.
type DashboardRefresher interface {
	Refresh()
	EnsureLoaded(ctx context.Context) error
}

// RefreshJob keeps unread counts and the dashboard warm while the client
// is running.
type RefreshJob struct {
	notifications UnreadPoller
	dashboard     DashboardRefresher
	cfg           config.JobsConfig
	logger        *zap.Logger
	now           func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefreshJob creates a job. Either target may be nil; zero intervals
// disable the matching loop.
func NewRefreshJob(notifications UnreadPoller, dashboard DashboardRefresher, cfg config.JobsConfig, l *zap.Logger) *RefreshJob {
	return &RefreshJob{
		notifications: notifications,
		dashboard:     dashboard,
		cfg:           cfg,
		logger:        logger.OrNop(l).Named("jobs"),
		now:           time.Now,
	}
}

// Start begins polling until ctx is cancelled or Stop is called. Calling
// Start on a running job does nothing.
func (j *RefreshJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	var wg sync.WaitGroup
	if j.notifications != nil && j.cfg.UnreadPollInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.run(ctx, j.cfg.UnreadPollInterval, j.pollUnread)
		}()
	}
	if j.dashboard != nil && j.cfg.DashboardInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.run(ctx, j.cfg.DashboardInterval, j.refreshDashboard)
		}()
	}

	done := j.done
	go func() {
		wg.Wait()
		close(done)
	}()
	j.logger.Info("refresh job started",
		zap.Duration("unread_every", j.cfg.UnreadPollInterval),
		zap.Duration("dashboard_every", j.cfg.DashboardInterval))
}

// Stop cancels the loops and waits for them to return.
func (j *RefreshJob) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	j.logger.Info("refresh job stopped")
}

func (j *RefreshJob) run(ctx context.Context, every time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (j *RefreshJob) pollUnread(ctx context.Context) {
	if n := j.notifications.ClearExpired(j.now()); n > 0 {
		j.logger.Debug("dropped expired notifications", zap.Int("count", n))
	}
	if err := j.notifications.LoadCounts(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("unread poll failed", zap.Error(err))
	}
	// picks up schedule invalidations from pushes and mutations
	if j.dashboard != nil {
		if err := j.dashboard.EnsureLoaded(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn("dashboard reload failed", zap.Error(err))
		}
	}
}

func (j *RefreshJob) refreshDashboard(ctx context.Context) {
	j.dashboard.Refresh()
	if err := j.dashboard.EnsureLoaded(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("dashboard refresh failed", zap.Error(err))
	}
}
