package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shift-staffing-client/models"
)

const (
	// NotificationPageSize is the size of the "all" projection.
	NotificationPageSize = 20
	// reconcileTimeout bounds the background reload after a bulk mark.
	reconcileTimeout = 15 * time.Second
)

// projection is one server query result held by the center.
type projection struct {
	items  []models.Notification
	total  int
	exact  bool // total came from the server's pagination
	loaded bool
	gen    generation
}

// NotificationCenter reconciles three overlapping queries (the first page of
// all notifications, unread only, unread and urgent) into one read-state
// view with unread and urgent counters.
type NotificationCenter struct {
	componentBase

	api      NotificationAPI
	identity Identity

	mu     sync.Mutex
	all    projection
	unread projection
	urgent projection

	unreadCount int
	urgentCount int
	estimated   bool

	stale    bool
	inFlight int
	err      error
	closed   bool

	background sync.WaitGroup
}

func NewNotificationCenter(api NotificationAPI, identity Identity, opts ...Option) *NotificationCenter {
	return &NotificationCenter{
		componentBase: newComponentBase("notification_center", opts),
		api:           api,
		identity:      identity,
		stale:         true,
	}
}

func (nc *NotificationCenter) begin() error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.closed {
		return ErrClosed
	}
	nc.inFlight++
	return nil
}

func (nc *NotificationCenter) end() {
	nc.mu.Lock()
	nc.inFlight--
	nc.mu.Unlock()
}

// Load fetches all three projections concurrently. A failing query does not
// blank the others; the first error is returned and recorded.
func (nc *NotificationCenter) Load(ctx context.Context) error {
	if err := nc.begin(); err != nil {
		return err
	}
	defer nc.end()

	var g errgroup.Group
	g.Go(func() error { return nc.loadAll(ctx) })
	g.Go(func() error { return nc.loadUnread(ctx) })
	g.Go(func() error { return nc.loadUrgent(ctx) })
	err := g.Wait()

	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.closed {
		return err
	}
	if err != nil {
		nc.err = err
		nc.logger.Warn("notification load failed", zap.Error(err))
		return err
	}
	nc.stale = false
	nc.err = nil
	return nil
}

// EnsureLoaded loads only when the projections were invalidated.
func (nc *NotificationCenter) EnsureLoaded(ctx context.Context) error {
	nc.mu.Lock()
	stale := nc.stale
	nc.mu.Unlock()
	if !stale {
		return nil
	}
	return nc.Load(ctx)
}

// LoadCounts refreshes the unread and urgent projections only, which is
// what periodic polling needs.
func (nc *NotificationCenter) LoadCounts(ctx context.Context) error {
	if err := nc.begin(); err != nil {
		return err
	}
	defer nc.end()

	var g errgroup.Group
	g.Go(func() error { return nc.loadUnread(ctx) })
	g.Go(func() error { return nc.loadUrgent(ctx) })
	err := g.Wait()
	if err != nil {
		nc.mu.Lock()
		if !nc.closed {
			nc.err = err
		}
		nc.mu.Unlock()
	}
	return err
}

func (nc *NotificationCenter) loadAll(ctx context.Context) error {
	return nc.fetch(ctx, &nc.all, NotificationQuery{Page: 1, Limit: NotificationPageSize})
}

func (nc *NotificationCenter) loadUnread(ctx context.Context) error {
	return nc.fetch(ctx, &nc.unread, NotificationQuery{UnreadOnly: true})
}

func (nc *NotificationCenter) loadUrgent(ctx context.Context) error {
	return nc.fetch(ctx, &nc.urgent, NotificationQuery{UnreadOnly: true, Priority: models.PriorityUrgent})
}

func (nc *NotificationCenter) fetch(ctx context.Context, p *projection, q NotificationQuery) error {
	nc.mu.Lock()
	gen := p.gen.next()
	nc.mu.Unlock()

	page, err := nc.api.ListNotifications(ctx, q)
	if err != nil {
		return err
	}

	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.closed || !p.gen.accept(gen) {
		return nil
	}
	items := make([]models.Notification, len(page.Data))
	for i, n := range page.Data {
		n.Sync = models.SyncConfirmed
		items[i] = n
	}
	p.items = items
	p.loaded = true
	if page.Pagination != nil {
		p.total = page.Pagination.Total
		p.exact = true
	} else {
		p.total = len(items)
		p.exact = false
	}
	nc.recount()
	return nil
}

// recount derives the counters from the projections. Server totals win over
// anything applied optimistically before.
func (nc *NotificationCenter) recount() {
	switch {
	case nc.unread.loaded:
		nc.unreadCount = nc.unread.total
		nc.estimated = !nc.unread.exact
	case nc.all.loaded:
		nc.unreadCount = countUnread(nc.all.items)
		nc.estimated = true
	default:
		nc.unreadCount = 0
		nc.estimated = false
	}
	if nc.urgent.loaded {
		nc.urgentCount = nc.urgent.total
	}
}

// MarkAsRead marks one notification read. Counters drop immediately; on
// failure the optimistic change is rolled back, the item is tagged failed
// and the counters are reloaded from the server. Marking a read
// notification again is a no-op.
func (nc *NotificationCenter) MarkAsRead(ctx context.Context, notificationID uint) error {
	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		return ErrClosed
	}
	item, known := nc.find(notificationID)
	if known && item.IsRead && item.Sync != models.SyncFailed {
		nc.mu.Unlock()
		return nil
	}
	var undo *readUndo
	if known {
		undo = nc.captureUndo()
		nc.applyRead(notificationID, nc.now(), models.SyncTentative)
		undo.settle(nc)
	}
	nc.inFlight++
	nc.mu.Unlock()
	defer nc.end()

	err := nc.api.MarkNotificationRead(ctx, notificationID)

	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		return err
	}
	if err != nil {
		if known {
			nc.rollback(undo)
			nc.tag(notificationID, models.SyncFailed, false)
		}
		nc.err = err
		nc.mu.Unlock()
		nc.logger.Warn("mark read failed, reloading counts", zap.Uint("notification_id", notificationID), zap.Error(err))
		if rerr := nc.LoadCounts(ctx); rerr != nil {
			nc.logger.Warn("reload counts failed", zap.Error(rerr))
		}
		return err
	}
	if known {
		nc.tag(notificationID, models.SyncConfirmed, true)
	}
	nc.err = nil
	nc.mu.Unlock()

	if !known {
		// nothing local to adjust; ask the server for the new totals
		if rerr := nc.LoadCounts(ctx); rerr != nil {
			nc.logger.Warn("reload counts failed", zap.Error(rerr))
		}
	}
	return nil
}

// MarkAllAsRead marks every notification, or those of one category, read.
// Matching unread items leave the counters before the request is sent; a
// background reload reconciles with the server afterwards.
func (nc *NotificationCenter) MarkAllAsRead(ctx context.Context, category string) error {
	userID := nc.identity.UserID()
	if userID == 0 {
		return newValidationError("user_id", "is required to mark notifications read")
	}

	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		return ErrClosed
	}
	undo := nc.captureUndo()
	marked := nc.applyReadAll(category, nc.now())
	undo.settle(nc)
	nc.inFlight++
	nc.mu.Unlock()
	defer nc.end()

	err := nc.api.MarkAllNotificationsRead(ctx, models.MarkAllReadRequest{UserID: userID, Category: category})

	nc.mu.Lock()
	if nc.closed {
		nc.mu.Unlock()
		return err
	}
	if err != nil {
		nc.rollback(undo)
	}
	for _, id := range marked {
		if err != nil {
			nc.tag(id, models.SyncFailed, false)
		} else {
			nc.tag(id, models.SyncConfirmed, true)
		}
	}
	nc.err = err
	nc.background.Add(1)
	nc.mu.Unlock()

	if err != nil {
		nc.background.Done()
		nc.logger.Warn("mark all read failed, reloading", zap.String("category", category), zap.Error(err))
		if rerr := nc.Load(ctx); rerr != nil {
			nc.logger.Warn("reload after failed mark all", zap.Error(rerr))
		}
		return err
	}

	go func() {
		defer nc.background.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileTimeout)
		defer cancel()
		if rerr := nc.Load(rctx); rerr != nil && !errors.Is(rerr, ErrClosed) {
			nc.logger.Warn("reconcile after mark all", zap.Error(rerr))
		}
	}()
	return nil
}

// MarkAllUrgentAsRead is MarkAllAsRead scoped to the urgent category.
func (nc *NotificationCenter) MarkAllUrgentAsRead(ctx context.Context) error {
	return nc.MarkAllAsRead(ctx, string(models.PriorityUrgent))
}

// Refresh invalidates every projection; the next EnsureLoaded refetches.
func (nc *NotificationCenter) Refresh() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.stale = true
}

// Receive merges a pushed notification into the view.
func (nc *NotificationCenter) Receive(n models.Notification) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if nc.closed {
		return
	}
	if _, known := nc.find(n.NotificationID); known {
		return
	}
	n.Sync = models.SyncConfirmed
	nc.all.items = append([]models.Notification{n}, nc.all.items...)
	if n.IsRead {
		return
	}
	nc.unread.items = append([]models.Notification{n}, nc.unread.items...)
	nc.unreadCount++
	if n.IsUrgent() {
		nc.urgent.items = append([]models.Notification{n}, nc.urgent.items...)
		nc.urgentCount++
	}
}

// ClearExpired drops notifications whose expiry has passed from the local
// view and returns how many were removed. Server totals are untouched.
func (nc *NotificationCenter) ClearExpired(now time.Time) int {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	removed := 0
	for _, p := range []*projection{&nc.all, &nc.unread, &nc.urgent} {
		kept := p.items[:0:0]
		for _, n := range p.items {
			if n.Expired(now) {
				if p == &nc.all {
					removed++
				}
				continue
			}
			kept = append(kept, n)
		}
		p.items = kept
	}
	if nc.estimated && !nc.unread.loaded {
		nc.unreadCount = countUnread(nc.all.items)
	}
	return removed
}

// Reset discards every projection, as on logout.
func (nc *NotificationCenter) Reset() {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	for _, p := range []*projection{&nc.all, &nc.unread, &nc.urgent} {
		p.items = nil
		p.total = 0
		p.exact = false
		p.loaded = false
		p.gen.reset()
	}
	nc.unreadCount = 0
	nc.urgentCount = 0
	nc.estimated = false
	nc.stale = true
	nc.err = nil
}

// Close rejects new calls and waits for background reconciliation.
func (nc *NotificationCenter) Close() {
	nc.mu.Lock()
	nc.closed = true
	nc.mu.Unlock()
	nc.background.Wait()
}

// Notifications is the first page of all notifications.
func (nc *NotificationCenter) Notifications() []models.Notification {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return append([]models.Notification{}, nc.all.items...)
}

func (nc *NotificationCenter) Unread() []models.Notification {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return append([]models.Notification{}, nc.unread.items...)
}

func (nc *NotificationCenter) UnreadUrgent() []models.Notification {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return append([]models.Notification{}, nc.urgent.items...)
}

// UnreadCount returns the unread total. estimated is true when the server
// total was unavailable and the count comes from loaded pages, which can
// undercount.
func (nc *NotificationCenter) UnreadCount() (count int, estimated bool) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.unreadCount, nc.estimated
}

func (nc *NotificationCenter) UrgentUnreadCount() int {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.urgentCount
}

func (nc *NotificationCenter) Loading() bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.inFlight > 0
}

func (nc *NotificationCenter) Err() error {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.err
}

// find looks the notification up in any projection.
func (nc *NotificationCenter) find(id uint) (models.Notification, bool) {
	for _, p := range []*projection{&nc.all, &nc.unread, &nc.urgent} {
		for _, n := range p.items {
			if n.NotificationID == id {
				return n, true
			}
		}
	}
	return models.Notification{}, false
}

// applyRead flips one item to read everywhere and adjusts the counters.
// Caller holds nc.mu.
func (nc *NotificationCenter) applyRead(id uint, at time.Time, state models.SyncState) {
	item, _ := nc.find(id)
	wasUnread := !item.IsRead || item.Sync == models.SyncFailed

	for _, p := range []*projection{&nc.all, &nc.unread, &nc.urgent} {
		for i := range p.items {
			if p.items[i].NotificationID == id {
				p.items[i].IsRead = true
				p.items[i].ReadAt = &at
				p.items[i].Sync = state
			}
		}
	}
	if !wasUnread {
		return
	}
	nc.unread.items = removeNotification(nc.unread.items, id)
	nc.urgent.items = removeNotification(nc.urgent.items, id)
	nc.unreadCount = max(0, nc.unreadCount-1)
	if item.IsUrgent() {
		nc.urgentCount = max(0, nc.urgentCount-1)
	}
}

// applyReadAll marks every unread item matching category as read and returns
// their ids. An empty category matches everything and zeroes the counters.
// Caller holds nc.mu.
func (nc *NotificationCenter) applyReadAll(category string, at time.Time) []uint {
	matches := func(n models.Notification) bool {
		return category == "" || n.Category == category ||
			(category == string(models.PriorityUrgent) && n.IsUrgent())
	}

	seen := make(map[uint]bool)
	var ids []uint
	for _, p := range []*projection{&nc.all, &nc.unread, &nc.urgent} {
		for i := range p.items {
			n := &p.items[i]
			if n.IsRead || !matches(*n) {
				continue
			}
			n.IsRead = true
			n.ReadAt = &at
			n.Sync = models.SyncTentative
			if !seen[n.NotificationID] {
				seen[n.NotificationID] = true
				ids = append(ids, n.NotificationID)
			}
		}
	}

	if category == "" {
		nc.unread.items = nil
		nc.urgent.items = nil
		nc.unreadCount = 0
		nc.urgentCount = 0
		return ids
	}

	urgentDropped := 0
	for _, n := range nc.urgent.items {
		if matches(n) {
			urgentDropped++
		}
	}
	nc.unread.items = filterNotifications(nc.unread.items, func(n models.Notification) bool { return !matches(n) })
	nc.urgent.items = filterNotifications(nc.urgent.items, func(n models.Notification) bool { return !matches(n) })
	nc.unreadCount = max(0, nc.unreadCount-len(ids))
	nc.urgentCount = max(0, nc.urgentCount-urgentDropped)
	return ids
}

// readUndo is what an optimistic read took out of the unread and urgent
// projections, kept until the server confirms or rejects it.
type readUndo struct {
	unread      []models.Notification
	urgent      []models.Notification
	unreadGen   uint64
	urgentGen   uint64
	unreadDelta int
	urgentDelta int
}

// captureUndo records the projections before an optimistic read. Caller
// holds nc.mu and calls settle once the read is applied.
func (nc *NotificationCenter) captureUndo() *readUndo {
	return &readUndo{
		unread:      append([]models.Notification(nil), nc.unread.items...),
		urgent:      append([]models.Notification(nil), nc.urgent.items...),
		unreadGen:   nc.unread.gen.applied,
		urgentGen:   nc.urgent.gen.applied,
		unreadDelta: nc.unreadCount,
		urgentDelta: nc.urgentCount,
	}
}

func (u *readUndo) settle(nc *NotificationCenter) {
	u.unreadDelta -= nc.unreadCount
	u.urgentDelta -= nc.urgentCount
}

// rollback puts back the items and counts an optimistic read removed. A
// projection reloaded in the meantime already holds the server's view and is
// left alone. Caller holds nc.mu.
func (nc *NotificationCenter) rollback(u *readUndo) {
	if u == nil {
		return
	}
	if nc.unread.gen.applied == u.unreadGen {
		nc.unread.items = reinstate(nc.unread.items, u.unread)
		nc.unreadCount += u.unreadDelta
	}
	if nc.urgent.gen.applied == u.urgentGen {
		nc.urgent.items = reinstate(nc.urgent.items, u.urgent)
		nc.urgentCount += u.urgentDelta
	}
}

// reinstate returns the earlier items with anything received since kept in
// front, as Receive orders them.
func reinstate(current, before []models.Notification) []models.Notification {
	earlier := make(map[uint]bool, len(before))
	for _, n := range before {
		earlier[n.NotificationID] = true
	}
	out := make([]models.Notification, 0, len(current)+len(before))
	for _, n := range current {
		if !earlier[n.NotificationID] {
			out = append(out, n)
		}
	}
	return append(out, before...)
}

// tag sets the sync state of id in every projection. When read is false the
// optimistic read flag is rolled back. Caller holds nc.mu.
func (nc *NotificationCenter) tag(id uint, state models.SyncState, read bool) {
	for _, p := range []*projection{&nc.all, &nc.unread, &nc.urgent} {
		for i := range p.items {
			if p.items[i].NotificationID != id {
				continue
			}
			p.items[i].Sync = state
			if !read {
				p.items[i].IsRead = false
				p.items[i].ReadAt = nil
			}
		}
	}
}

func countUnread(items []models.Notification) int {
	n := 0
	for _, item := range items {
		if !item.IsRead {
			n++
		}
	}
	return n
}

func removeNotification(items []models.Notification, id uint) []models.Notification {
	return filterNotifications(items, func(n models.Notification) bool { return n.NotificationID != id })
}

func filterNotifications(items []models.Notification, keep func(models.Notification) bool) []models.Notification {
	out := items[:0:0]
	for _, n := range items {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}
