package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shift-staffing-client/config"
	"shift-staffing-client/models"
	"shift-staffing-client/utils"
)

const (
	DefaultUrgentAlertLimit = 3
	DefaultUpcomingDays     = 7
)

type scheduleSource interface {
	LoadSchedule(ctx context.Context, from, to time.Time) error
	EnsureSchedule(ctx context.Context, from, to time.Time) error
	Schedule() []models.Shift
	InvalidateShifts()
	Loading() bool
}

type alertSource interface {
	EnsureLoaded(ctx context.Context) error
	UnreadUrgent() []models.Notification
	UnreadCount() (int, bool)
	Refresh()
	Loading() bool
}

type profileSource interface {
	Nurse(ctx context.Context) (*models.Nurse, error)
	CachedNurse() (*models.Nurse, bool)
	InvalidateProfile()
	Loading() bool
}

// DashboardView is the home screen state derived at one instant.
type DashboardView struct {
	TodayShift       *models.Shift            `json:"today_shift"`
	TodayAssignments []models.ShiftAssignment `json:"today_assignments"`
	CurrentShift     *models.Shift            `json:"current_shift"`
	UpcomingShifts   []models.Shift           `json:"upcoming_shifts"`
	UrgentAlerts     []models.Notification    `json:"urgent_alerts"`
	UnreadCount      int                      `json:"unread_count"`
	UnreadEstimated  bool                     `json:"unread_estimated"`
	Nurse            *models.Nurse            `json:"nurse"`
	Loading          bool                     `json:"loading"`
	Err              error                    `json:"-"`
	GeneratedAt      time.Time                `json:"generated_at"`
}

// DashboardAggregator composes the schedule, urgent notifications and the
// nurse profile into one view. It owns no entity state of its own; every
// view is derived from its constituents when requested.
type DashboardAggregator struct {
	componentBase

	schedule      scheduleSource
	notifications alertSource
	profile       profileSource
	cfg           config.DashboardConfig

	mu       sync.Mutex
	err      error
	stale    bool
	inFlight int
	closed   bool
}

// NewDashboardAggregator builds the aggregator; zero config values take the
// defaults.
func NewDashboardAggregator(schedule scheduleSource, notifications alertSource, profile profileSource, cfg config.DashboardConfig, opts ...Option) *DashboardAggregator {
	if cfg.UrgentAlertLimit <= 0 {
		cfg.UrgentAlertLimit = DefaultUrgentAlertLimit
	}
	if cfg.UpcomingDays <= 0 {
		cfg.UpcomingDays = DefaultUpcomingDays
	}
	return &DashboardAggregator{
		componentBase: newComponentBase("dashboard", opts),
		schedule:      schedule,
		notifications: notifications,
		profile:       profile,
		cfg:           cfg,
		stale:         true,
	}
}

// Load fetches the constituents concurrently. Each part keeps whatever it
// loaded even if another fails; the first error is returned and recorded.
func (d *DashboardAggregator) Load(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.inFlight++
	d.mu.Unlock()

	today, until := d.window()

	var g errgroup.Group
	g.Go(func() error { return d.schedule.LoadSchedule(ctx, today, until) })
	g.Go(func() error { return d.notifications.EnsureLoaded(ctx) })
	g.Go(func() error {
		_, err := d.profile.Nurse(ctx)
		return err
	})
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.inFlight--
	if d.closed {
		return err
	}
	d.err = err
	if err != nil {
		d.logger.Warn("dashboard load incomplete", zap.Error(err))
		return err
	}
	d.stale = false
	return nil
}

// EnsureLoaded loads everything after an invalidation of the dashboard.
// Otherwise it reloads only the constituents invalidated on their own, such
// as the schedule after an accepted swap or a pushed shift update.
func (d *DashboardAggregator) EnsureLoaded(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	stale := d.stale
	d.mu.Unlock()
	if stale {
		return d.Load(ctx)
	}

	today, until := d.window()
	var g errgroup.Group
	g.Go(func() error { return d.schedule.EnsureSchedule(ctx, today, until) })
	g.Go(func() error { return d.notifications.EnsureLoaded(ctx) })
	err := g.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return err
	}
	d.err = err
	if err != nil {
		d.logger.Warn("dashboard reload incomplete", zap.Error(err))
	}
	return err
}

// window is the schedule range the dashboard shows, today onwards.
func (d *DashboardAggregator) window() (from, to time.Time) {
	from = utils.StartOfDay(d.now())
	return from, from.AddDate(0, 0, d.cfg.UpcomingDays)
}

// Refresh invalidates the shift, notification and profile caches. Calling
// it repeatedly has the same effect as calling it once.
func (d *DashboardAggregator) Refresh() {
	d.schedule.InvalidateShifts()
	d.notifications.Refresh()
	d.profile.InvalidateProfile()
	d.Invalidate()
}

// Invalidate marks the dashboard and the schedule it shows stale.
func (d *DashboardAggregator) Invalidate() {
	d.schedule.InvalidateShifts()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stale = true
}

// View derives the dashboard at the current time.
func (d *DashboardAggregator) View() DashboardView {
	now := d.now()
	schedule := d.schedule.Schedule()

	view := DashboardView{
		UpcomingShifts:   d.upcoming(schedule, now),
		TodayAssignments: []models.ShiftAssignment{},
		UrgentAlerts:     d.urgentAlerts(now),
		GeneratedAt:      now,
	}
	if s, ok := TodayShift(schedule, now); ok {
		view.TodayShift = &s
		if s.Assignments != nil {
			view.TodayAssignments = s.Assignments
		}
	}
	if s, ok := CurrentShift(schedule, now); ok {
		view.CurrentShift = &s
	}
	view.UnreadCount, view.UnreadEstimated = d.notifications.UnreadCount()
	if n, ok := d.profile.CachedNurse(); ok {
		view.Nurse = n
	}

	d.mu.Lock()
	view.Err = d.err
	own := d.inFlight > 0
	d.mu.Unlock()
	view.Loading = own || d.schedule.Loading() || d.notifications.Loading() || d.profile.Loading()
	return view
}

// CurrentShift returns the schedule shift in progress at now.
func (d *DashboardAggregator) CurrentShift(now time.Time) (models.Shift, bool) {
	return CurrentShift(d.schedule.Schedule(), now)
}

func (d *DashboardAggregator) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *DashboardAggregator) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *DashboardAggregator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = nil
	d.stale = true
}

// upcoming keeps non-cancelled shifts starting from today within the
// configured window, earliest first.
func (d *DashboardAggregator) upcoming(schedule []models.Shift, now time.Time) []models.Shift {
	from := utils.StartOfDay(now)
	until := from.AddDate(0, 0, d.cfg.UpcomingDays)

	out := make([]models.Shift, 0, len(schedule))
	for _, s := range schedule {
		if s.Status == models.ShiftStatusCancelled {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(until) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (d *DashboardAggregator) urgentAlerts(now time.Time) []models.Notification {
	out := make([]models.Notification, 0, d.cfg.UrgentAlertLimit)
	for _, n := range d.notifications.UnreadUrgent() {
		if len(out) == d.cfg.UrgentAlertLimit {
			break
		}
		if n.IsRead || !n.IsUrgent() || n.Expired(now) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// TodayShift returns the earliest non-cancelled shift starting on now's day.
func TodayShift(schedule []models.Shift, now time.Time) (models.Shift, bool) {
	var best *models.Shift
	for i := range schedule {
		s := &schedule[i]
		if s.Status == models.ShiftStatusCancelled || !utils.SameDay(now, s.StartTime) {
			continue
		}
		if best == nil || s.StartTime.Before(best.StartTime) {
			best = s
		}
	}
	if best == nil {
		return models.Shift{}, false
	}
	return *best, true
}

// CurrentShift returns the non-cancelled shift whose window contains now.
func CurrentShift(schedule []models.Shift, now time.Time) (models.Shift, bool) {
	for _, s := range schedule {
		if s.Status != models.ShiftStatusCancelled && s.ActiveAt(now) {
			return s, true
		}
	}
	return models.Shift{}, false
}
