package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shift-staffing-client/database"
	"shift-staffing-client/models"
)

// CatalogStorageKey names the persisted bookings and filters record.
const CatalogStorageKey = "shifts-storage"

type persistedCatalog struct {
	Bookings []models.Booking `json:"bookings"`
	Filters  Filters          `json:"filters"`
}

// ShiftCatalog owns the available shifts, the nurse's own schedule and
// bookings, and the filtered view derived from them.
type ShiftCatalog struct {
	componentBase

	api         ShiftAPI
	departments DepartmentResolver
	identity    Identity
	store       database.Store

	mu        sync.Mutex
	available []models.Shift
	filtered  []models.Shift
	schedule  []models.Shift
	bookings  []models.Booking
	filters   Filters
	search    string

	shiftsGen   generation
	scheduleGen generation
	bookingsGen generation

	shiftsStale   bool
	scheduleStale bool
	scheduleFrom  time.Time
	scheduleTo    time.Time
	inFlight      int
	err           error
	closed        bool

	// serialises store writes so the newest snapshot lands last
	persistMu sync.Mutex
}

// NewShiftCatalog builds an empty catalog. departments and store may be nil.
func NewShiftCatalog(api ShiftAPI, departments DepartmentResolver, identity Identity, store database.Store, opts ...Option) *ShiftCatalog {
	return &ShiftCatalog{
		componentBase: newComponentBase("shift_catalog", opts),
		api:           api,
		departments:   departments,
		identity:      identity,
		store:         store,
		available:     []models.Shift{},
		filtered:      []models.Shift{},
		schedule:      []models.Shift{},
		bookings:      []models.Booking{},
		filters:       DefaultFilters(),
		shiftsStale:   true,
		scheduleStale: true,
	}
}

// begin registers an in-flight call; it fails once the catalog is closed.
func (c *ShiftCatalog) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.inFlight++
	return nil
}

func (c *ShiftCatalog) end() {
	c.mu.Lock()
	c.inFlight--
	c.mu.Unlock()
}

// LoadAvailableShifts fetches open shifts and replaces the catalog in one
// step. On failure the previous catalog stays visible and Err is set.
func (c *ShiftCatalog) LoadAvailableShifts(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	gen := c.shiftsGen.next()
	c.mu.Unlock()

	page, err := c.api.ListShifts(ctx, ShiftQuery{})
	if err != nil {
		c.recordError(func() bool { return c.shiftsGen.current(gen) }, err)
		return err
	}

	shifts := make([]models.Shift, 0, len(page.Data))
	for _, s := range page.Data {
		if s.Status == models.ShiftStatusCancelled {
			continue
		}
		shifts = append(shifts, s)
	}
	c.resolveDepartments(ctx, shifts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.shiftsGen.accept(gen) {
		c.logger.Debug("dropping stale shift list", zap.Uint64("generation", gen))
		return nil
	}
	c.available = shifts
	c.filtered = filterShifts(c.available, c.filters, c.search)
	c.shiftsStale = false
	c.err = nil
	c.logger.Debug("shift catalog replaced", zap.Int("shifts", len(shifts)), zap.Int("visible", len(c.filtered)))
	return nil
}

// LoadSchedule fetches the nurse's own shifts starting within [from, to],
// sorted by start time.
func (c *ShiftCatalog) LoadSchedule(ctx context.Context, from, to time.Time) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	nurseID := c.identity.NurseID()
	if nurseID == 0 {
		return newValidationError("nurse_id", "is required to load a schedule")
	}

	c.mu.Lock()
	gen := c.scheduleGen.next()
	c.mu.Unlock()

	page, err := c.api.ListShifts(ctx, ShiftQuery{
		NurseID:   nurseID,
		StartDate: from.Format(models.DateLayout),
		EndDate:   to.Format(models.DateLayout),
	})
	if err != nil {
		c.recordError(func() bool { return c.scheduleGen.current(gen) }, err)
		return err
	}

	shifts := append([]models.Shift{}, page.Data...)
	c.resolveDepartments(ctx, shifts)
	sort.SliceStable(shifts, func(i, j int) bool {
		return shifts[i].StartTime.Before(shifts[j].StartTime)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.scheduleGen.accept(gen) {
		return nil
	}
	c.schedule = shifts
	c.scheduleStale = false
	c.scheduleFrom, c.scheduleTo = from, to
	c.err = nil
	return nil
}

// EnsureLoaded reloads the available shifts when they were invalidated.
func (c *ShiftCatalog) EnsureLoaded(ctx context.Context) error {
	c.mu.Lock()
	stale := c.shiftsStale
	c.mu.Unlock()
	if !stale {
		return nil
	}
	return c.LoadAvailableShifts(ctx)
}

// EnsureSchedule reloads the schedule when it was invalidated or last
// loaded for a different window.
func (c *ShiftCatalog) EnsureSchedule(ctx context.Context, from, to time.Time) error {
	c.mu.Lock()
	stale := c.scheduleStale || !c.scheduleFrom.Equal(from) || !c.scheduleTo.Equal(to)
	c.mu.Unlock()
	if !stale {
		return nil
	}
	return c.LoadSchedule(ctx, from, to)
}

// LoadMyBookings replaces the booking list with the server's. Local
// tentative bookings are kept unless the server already holds an active
// booking for the same shift.
func (c *ShiftCatalog) LoadMyBookings(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	nurseID := c.identity.NurseID()
	if nurseID == 0 {
		return newValidationError("nurse_id", "is required to load bookings")
	}

	c.mu.Lock()
	gen := c.bookingsGen.next()
	c.mu.Unlock()

	remote, err := c.api.ListBookings(ctx, nurseID)
	if err != nil {
		c.recordError(func() bool { return c.bookingsGen.current(gen) }, err)
		return err
	}

	c.mu.Lock()
	if c.closed || !c.bookingsGen.accept(gen) {
		c.mu.Unlock()
		return nil
	}
	bookings := make([]models.Booking, 0, len(remote))
	known := make(map[uint]bool, len(remote))
	for _, b := range remote {
		b.Sync = models.SyncConfirmed
		bookings = append(bookings, b)
		if !b.IsTerminal() {
			known[b.ShiftID] = true
		}
	}
	for _, b := range c.bookings {
		if b.Sync == models.SyncTentative && !known[b.ShiftID] {
			bookings = append(bookings, b)
		}
	}
	c.bookings = bookings
	c.err = nil
	c.mu.Unlock()

	c.persist(ctx)
	return nil
}

// ApplyForShift asks the server for a booking on shiftID. Only a successful
// response adds a booking; a 409 surfaces as ConflictError.
func (c *ShiftCatalog) ApplyForShift(ctx context.Context, shiftID uint) (*models.Booking, error) {
	nurseID := c.identity.NurseID()
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required to apply")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	for _, b := range c.bookings {
		if b.ShiftID == shiftID && !b.IsTerminal() {
			c.mu.Unlock()
			return nil, newValidationError("shift_id", "already has an active booking")
		}
	}
	var snapshot *models.Shift
	if s, ok := findShift(c.available, shiftID); ok {
		snapshot = &s
	}
	c.inFlight++
	c.mu.Unlock()
	defer c.end()

	remote, err := c.api.ApplyForShift(ctx, shiftID, ApplyRequest{NurseID: nurseID})
	if err != nil {
		c.recordError(nil, err)
		if IsConflict(err) {
			c.logger.Info("shift no longer available", zap.Uint("shift_id", shiftID))
		}
		return nil, err
	}

	booking := models.Booking{
		ID:       uuid.NewString(),
		NurseID:  nurseID,
		ShiftID:  shiftID,
		Status:   models.BookingStatusPending,
		BookedAt: c.now(),
		Shift:    snapshot,
		Sync:     models.SyncTentative,
	}
	if remote != nil && remote.ID != "" {
		booking = *remote
		if booking.Shift == nil {
			booking.Shift = snapshot
		}
		booking.Sync = models.SyncConfirmed
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &booking, nil
	}
	c.bookings = append(c.bookings, booking)
	c.err = nil
	c.mu.Unlock()

	c.logger.Info("applied for shift", zap.Uint("shift_id", shiftID), zap.String("booking_id", booking.ID))
	c.persist(ctx)
	return &booking, nil
}

// CancelBooking moves the booking to cancelled. Cancelling a cancelled
// booking succeeds without a request and keeps the first cancellation time.
// The change is applied tentatively and rolled back if the server refuses.
func (c *ShiftCatalog) CancelBooking(ctx context.Context, bookingID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	idx := c.bookingIndex(bookingID)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	previous := c.bookings[idx]
	switch previous.Status {
	case models.BookingStatusCancelled:
		c.mu.Unlock()
		return nil
	case models.BookingStatusCompleted:
		c.mu.Unlock()
		return newValidationError("status", "completed bookings cannot be cancelled")
	}

	cancelledAt := c.now()
	next := previous
	next.Status = models.BookingStatusCancelled
	next.CancelledAt = &cancelledAt
	next.Sync = models.SyncTentative
	c.bookings[idx] = next
	c.inFlight++
	c.mu.Unlock()
	defer c.end()

	_, err := c.api.CancelBooking(ctx, bookingID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}
	if idx = c.bookingIndex(bookingID); idx >= 0 {
		if err != nil {
			previous.Sync = models.SyncFailed
			c.bookings[idx] = previous
			c.err = err
		} else {
			c.bookings[idx].Sync = models.SyncConfirmed
			c.err = nil
		}
	}
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.logger.Info("booking cancelled", zap.String("booking_id", bookingID))
	c.persist(ctx)
	return nil
}

// SetFilters replaces the filter set and recomputes the view.
func (c *ShiftCatalog) SetFilters(f Filters) {
	c.mu.Lock()
	c.filters = f.clone()
	c.filtered = filterShifts(c.available, c.filters, c.search)
	c.mu.Unlock()
	c.persist(context.Background())
}

// UpdateFilters applies a partial change to the current filters.
func (c *ShiftCatalog) UpdateFilters(patch func(*Filters)) {
	c.mu.Lock()
	f := c.filters.clone()
	patch(&f)
	c.filters = f
	c.filtered = filterShifts(c.available, c.filters, c.search)
	c.mu.Unlock()
	c.persist(context.Background())
}

func (c *ShiftCatalog) SetSearchQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = query
	c.filtered = filterShifts(c.available, c.filters, c.search)
}

// ClearFilters resets filters and search; the view becomes the catalog.
func (c *ShiftCatalog) ClearFilters() {
	c.mu.Lock()
	c.filters = DefaultFilters()
	c.search = ""
	c.filtered = append([]models.Shift{}, c.available...)
	c.mu.Unlock()
	c.persist(context.Background())
}

// InvalidateShifts marks the catalog and schedule stale. Cached data stays
// visible until EnsureLoaded or EnsureSchedule replaces it.
func (c *ShiftCatalog) InvalidateShifts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shiftsStale = true
	c.scheduleStale = true
}

// Stale reports whether the catalog or schedule need a reload.
func (c *ShiftCatalog) Stale() (shifts, schedule bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shiftsStale, c.scheduleStale
}

// Restore loads persisted bookings and filters for the current nurse.
func (c *ShiftCatalog) Restore(ctx context.Context) error {
	store := c.scopedStore()
	if store == nil {
		return nil
	}
	raw, err := store.Get(ctx, CatalogStorageKey)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}

	var state persistedCatalog
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return fmt.Errorf("restore catalog: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bookings) == 0 && state.Bookings != nil {
		c.bookings = state.Bookings
	}
	if state.Filters.LicenseTypes == nil {
		state.Filters.LicenseTypes = []string{}
	}
	if state.Filters.Departments == nil {
		state.Filters.Departments = []string{}
	}
	c.filters = state.Filters
	c.filtered = filterShifts(c.available, c.filters, c.search)
	return nil
}

// Reset discards all cached and persisted state, as on logout. In-flight
// responses started before Reset are dropped.
func (c *ShiftCatalog) Reset(ctx context.Context) error {
	store := c.scopedStore()
	c.discard()

	if store == nil {
		return nil
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	return store.Delete(ctx, CatalogStorageKey)
}

// discard drops the in-memory state and leaves the persisted record alone.
func (c *ShiftCatalog) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = []models.Shift{}
	c.filtered = []models.Shift{}
	c.schedule = []models.Shift{}
	c.bookings = []models.Booking{}
	c.filters = DefaultFilters()
	c.search = ""
	c.err = nil
	c.shiftsStale = true
	c.scheduleStale = true
	c.scheduleFrom, c.scheduleTo = time.Time{}, time.Time{}
	c.shiftsGen.reset()
	c.scheduleGen.reset()
	c.bookingsGen.reset()
}

// Close turns later responses into no-ops and rejects new calls.
func (c *ShiftCatalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *ShiftCatalog) AvailableShifts() []models.Shift {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Shift{}, c.available...)
}

func (c *ShiftCatalog) FilteredShifts() []models.Shift {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Shift{}, c.filtered...)
}

// Schedule returns the nurse's own shifts sorted by start time.
func (c *ShiftCatalog) Schedule() []models.Shift {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Shift{}, c.schedule...)
}

func (c *ShiftCatalog) Bookings() []models.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Booking{}, c.bookings...)
}

// Booking returns the booking with the given id.
func (c *ShiftCatalog) Booking(bookingID string) (models.Booking, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.bookingIndex(bookingID); idx >= 0 {
		return c.bookings[idx], true
	}
	return models.Booking{}, false
}

func (c *ShiftCatalog) Filters() Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.clone()
}

func (c *ShiftCatalog) SearchQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.search
}

func (c *ShiftCatalog) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight > 0
}

// Err is the last error recorded by a load or mutation.
func (c *ShiftCatalog) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *ShiftCatalog) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
}

// recordError stores err unless relevant reports that a newer result has
// already superseded the failing call.
func (c *ShiftCatalog) recordError(relevant func() bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if relevant != nil && !relevant() {
		return
	}
	c.err = err
	c.logger.Warn("shift catalog request failed", zap.Error(err))
}

func (c *ShiftCatalog) bookingIndex(bookingID string) int {
	for i := range c.bookings {
		if c.bookings[i].ID == bookingID {
			return i
		}
	}
	return -1
}

// resolveDepartments fills in department names the server left out.
func (c *ShiftCatalog) resolveDepartments(ctx context.Context, shifts []models.Shift) {
	for i := range shifts {
		d := &shifts[i].Department
		if d.Name != "" || d.DepartmentID == 0 {
			continue
		}
		if c.departments != nil {
			dept, err := c.departments.Department(ctx, d.DepartmentID)
			if err == nil {
				*d = *dept
				continue
			}
			c.logger.Debug("department lookup failed", zap.Uint("department_id", d.DepartmentID), zap.Error(err))
		}
		d.Name = fmt.Sprintf("Department %d", d.DepartmentID)
	}
}

func (c *ShiftCatalog) scopedStore() database.Store {
	if c.store == nil {
		return nil
	}
	return c.store.Scoped(nurseScope(c.identity.NurseID()))
}

func (c *ShiftCatalog) persist(ctx context.Context) {
	store := c.scopedStore()
	if store == nil {
		return
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	state := persistedCatalog{
		Bookings: append([]models.Booking{}, c.bookings...),
		Filters:  c.filters.clone(),
	}
	c.mu.Unlock()

	raw, err := json.Marshal(state)
	if err != nil {
		c.logger.Warn("encode catalog state", zap.Error(err))
		return
	}
	if err := store.Set(ctx, CatalogStorageKey, string(raw)); err != nil {
		c.logger.Warn("persist catalog state", zap.Error(err))
	}
}

func nurseScope(nurseID uint) string {
	return fmt.Sprintf("nurse-%d", nurseID)
}

func findShift(shifts []models.Shift, shiftID uint) (models.Shift, bool) {
	for _, s := range shifts {
		if s.ShiftID == shiftID {
			return s, true
		}
	}
	return models.Shift{}, false
}
