package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-staffing-client/database"
	"shift-staffing-client/models"
)

// scriptedShiftAPI answers ListShifts from a queue of responses; a response
// with a gate waits until the gate is closed.
type scriptedShiftAPI struct {
	mu        sync.Mutex
	responses []scriptedShifts
	bookings  []models.Booking
	applyErr  error
	cancelErr error
	applied   int
	cancelled int
}

type scriptedShifts struct {
	shifts []models.Shift
	err    error
	gate   chan struct{}
}

func (f *scriptedShiftAPI) ListShifts(ctx context.Context, _ ShiftQuery) (*models.Page[models.Shift], error) {
	f.mu.Lock()
	next := f.responses[0]
	f.responses = f.responses[1:]
	f.mu.Unlock()

	if next.gate != nil {
		select {
		case <-next.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if next.err != nil {
		return nil, next.err
	}
	return &models.Page[models.Shift]{Success: true, Data: next.shifts}, nil
}

func (f *scriptedShiftAPI) ApplyForShift(_ context.Context, shiftID uint, req ApplyRequest) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return nil, nil
}

func (f *scriptedShiftAPI) ListBookings(context.Context, uint) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Booking{}, f.bookings...), nil
}

func (f *scriptedShiftAPI) CancelBooking(context.Context, string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	return nil, f.cancelErr
}

func catalogFixtures() []models.Shift {
	day := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	return []models.Shift{
		shiftFixture(1, "ICU", "RN", false, day),
		shiftFixture(2, "ER", "RN", true, day.AddDate(0, 0, 1)),
		shiftFixture(3, "PEDS", "LPN", false, day.AddDate(0, 0, 2)),
	}
}

func newTestCatalog(api ShiftAPI) *ShiftCatalog {
	return NewShiftCatalog(api, nil, staticIdentity{nurseID: 1, userID: 101}, database.NewMemoryStore())
}

func TestFilteredIsSubsetOfAvailable(t *testing.T) {
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: catalogFixtures()}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	filters := []Filters{
		{LicenseTypes: []string{"RN"}},
		{Departments: []string{"er", "peds"}},
		{IsUrgent: Bool(true)},
		{DateRange: &DateRange{Start: "2026-03-11", End: "2026-03-11"}},
		{LicenseTypes: []string{"CNA"}},
	}
	for _, f := range filters {
		c.SetFilters(f)
		available := c.AvailableShifts()
		for _, s := range c.FilteredShifts() {
			assert.Contains(t, available, s)
			assert.True(t, f.Match(s))
		}
	}

	c.SetFilters(Filters{IsUrgent: Bool(true)})
	filtered := c.FilteredShifts()
	require.Len(t, filtered, 1)
	assert.Equal(t, uint(2), filtered[0].ShiftID)
}

func TestClearFiltersRestoresCatalog(t *testing.T) {
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: catalogFixtures()}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	c.SetFilters(Filters{LicenseTypes: []string{"LPN"}})
	c.SetSearchQuery("day")
	require.Len(t, c.FilteredShifts(), 1)

	c.ClearFilters()
	assert.Equal(t, c.AvailableShifts(), c.FilteredShifts())
	assert.Equal(t, DefaultFilters(), c.Filters())
	assert.Empty(t, c.SearchQuery())
}

func TestSearchMatchesDepartmentCaseInsensitive(t *testing.T) {
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: catalogFixtures()}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	c.SetSearchQuery("  Peds ")
	filtered := c.FilteredShifts()
	require.Len(t, filtered, 1)
	assert.Equal(t, uint(3), filtered[0].ShiftID)
}

func TestStaleShiftResponseIsDropped(t *testing.T) {
	gate := make(chan struct{})
	older := catalogFixtures()[:1]
	newer := catalogFixtures()
	api := &scriptedShiftAPI{responses: []scriptedShifts{
		{shifts: older, gate: gate},
		{shifts: newer},
	}}
	c := newTestCatalog(api)

	done := make(chan error, 1)
	go func() { done <- c.LoadAvailableShifts(context.Background()) }()
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.responses) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.LoadAvailableShifts(context.Background()))
	close(gate)
	require.NoError(t, <-done)

	assert.Len(t, c.AvailableShifts(), len(newer))
}

func TestFailedLoadKeepsPreviousCatalog(t *testing.T) {
	boom := &NetworkError{Op: "GET /shifts", Err: errors.New("connection refused")}
	api := &scriptedShiftAPI{responses: []scriptedShifts{
		{shifts: catalogFixtures()},
		{err: boom},
	}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	err := c.LoadAvailableShifts(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Len(t, c.AvailableShifts(), 3)
	assert.Equal(t, boom, c.Err())
	assert.False(t, c.Loading())
}

func TestLoadSkipsCancelledShifts(t *testing.T) {
	shifts := catalogFixtures()
	shifts[1].Status = models.ShiftStatusCancelled
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: shifts}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	for _, s := range c.AvailableShifts() {
		assert.NotEqual(t, models.ShiftStatusCancelled, s.Status)
	}
	assert.Len(t, c.AvailableShifts(), 2)
}

func TestMissingDepartmentNameFallsBack(t *testing.T) {
	shifts := catalogFixtures()
	shifts[0].Department = models.Department{DepartmentID: 9}
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: shifts}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	assert.Equal(t, "Department 9", c.AvailableShifts()[0].Department.Name)
}

func TestApplyConflictLeavesBookingsUnchanged(t *testing.T) {
	api := &scriptedShiftAPI{
		responses: []scriptedShifts{{shifts: catalogFixtures()}},
		applyErr:  &ConflictError{ServerError: &ServerError{Status: http.StatusConflict, Message: "Shift is already filled"}},
	}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	before := len(c.Bookings())
	_, err := c.ApplyForShift(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Len(t, c.Bookings(), before)
	assert.False(t, c.Loading())
}

func TestApplyWithoutServerBookingIsTentative(t *testing.T) {
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: catalogFixtures()}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	b, err := c.ApplyForShift(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, models.SyncTentative, b.Sync)
	assert.Equal(t, models.BookingStatusPending, b.Status)
	require.NotNil(t, b.Shift)
	assert.Equal(t, uint(2), b.Shift.ShiftID)

	_, err = c.ApplyForShift(context.Background(), 2)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, api.applied)
}

func TestReloadKeepsTentativeBookingOverEndedOne(t *testing.T) {
	api := &scriptedShiftAPI{
		responses: []scriptedShifts{{shifts: catalogFixtures()}},
		bookings:  []models.Booking{{ID: "b-old", NurseID: 1, ShiftID: 2, Status: models.BookingStatusCancelled}},
	}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))
	require.NoError(t, c.LoadMyBookings(context.Background()))

	b, err := c.ApplyForShift(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, models.SyncTentative, b.Sync)

	require.NoError(t, c.LoadMyBookings(context.Background()))
	kept, ok := c.Booking(b.ID)
	require.True(t, ok)
	assert.Equal(t, models.BookingStatusPending, kept.Status)
	assert.Len(t, c.Bookings(), 2)

	api.mu.Lock()
	api.bookings = append(api.bookings, models.Booking{ID: "b-new", NurseID: 1, ShiftID: 2, Status: models.BookingStatusPending})
	api.mu.Unlock()
	require.NoError(t, c.LoadMyBookings(context.Background()))
	_, ok = c.Booking(b.ID)
	assert.False(t, ok)
	assert.Len(t, c.Bookings(), 2)
}

func TestEnsureLoadsOnlyWhenInvalidated(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	api := &scriptedShiftAPI{responses: []scriptedShifts{
		{shifts: catalogFixtures()},
		{shifts: catalogFixtures()[:1]},
		{shifts: catalogFixtures()[:2]},
		{shifts: catalogFixtures()},
		{shifts: catalogFixtures()[:1]},
	}}
	remaining := func() int {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.responses)
	}
	c := newTestCatalog(api)
	ctx := context.Background()

	require.NoError(t, c.EnsureLoaded(ctx))
	require.NoError(t, c.EnsureLoaded(ctx))
	assert.Equal(t, 4, remaining())
	assert.Len(t, c.AvailableShifts(), 3)

	c.InvalidateShifts()
	require.NoError(t, c.EnsureLoaded(ctx))
	assert.Equal(t, 3, remaining())
	assert.Len(t, c.AvailableShifts(), 1)

	week := today.AddDate(0, 0, 7)
	require.NoError(t, c.EnsureSchedule(ctx, today, week))
	require.NoError(t, c.EnsureSchedule(ctx, today, week))
	assert.Equal(t, 2, remaining())
	assert.Len(t, c.Schedule(), 2)

	require.NoError(t, c.EnsureSchedule(ctx, today.AddDate(0, 0, 1), week.AddDate(0, 0, 1)))
	assert.Equal(t, 1, remaining())

	c.InvalidateShifts()
	require.NoError(t, c.EnsureSchedule(ctx, today.AddDate(0, 0, 1), week.AddDate(0, 0, 1)))
	assert.Equal(t, 0, remaining())
	assert.Len(t, c.Schedule(), 1)
}

func TestCancelBookingTwiceKeepsFirstTimestamp(t *testing.T) {
	clock := newFixedClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	api := &scriptedShiftAPI{bookings: []models.Booking{{ID: "b-1", NurseID: 1, ShiftID: 1, Status: models.BookingStatusConfirmed}}}
	c := NewShiftCatalog(api, nil, staticIdentity{nurseID: 1}, nil, WithClock(clock.Now))
	require.NoError(t, c.LoadMyBookings(context.Background()))

	require.NoError(t, c.CancelBooking(context.Background(), "b-1"))
	first, ok := c.Booking("b-1")
	require.True(t, ok)
	require.NotNil(t, first.CancelledAt)

	clock.Set(clock.Now().Add(time.Hour))
	require.NoError(t, c.CancelBooking(context.Background(), "b-1"))
	second, _ := c.Booking("b-1")
	assert.Equal(t, *first.CancelledAt, *second.CancelledAt)
	assert.Equal(t, models.BookingStatusCancelled, second.Status)
	assert.Equal(t, 1, api.cancelled)
}

func TestCancelBookingRollsBackOnFailure(t *testing.T) {
	api := &scriptedShiftAPI{
		bookings:  []models.Booking{{ID: "b-1", NurseID: 1, ShiftID: 1, Status: models.BookingStatusConfirmed}},
		cancelErr: &ServerError{Status: http.StatusInternalServerError},
	}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadMyBookings(context.Background()))

	require.Error(t, c.CancelBooking(context.Background(), "b-1"))
	b, _ := c.Booking("b-1")
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Nil(t, b.CancelledAt)
	assert.Equal(t, models.SyncFailed, b.Sync)

	assert.ErrorIs(t, c.CancelBooking(context.Background(), "missing"), ErrNotFound)
}

func TestCatalogPersistsAndRestores(t *testing.T) {
	store := database.NewMemoryStore()
	api := &scriptedShiftAPI{bookings: []models.Booking{{ID: "b-1", NurseID: 1, ShiftID: 1, Status: models.BookingStatusConfirmed}}}
	identity := staticIdentity{nurseID: 1}

	c := NewShiftCatalog(api, nil, identity, store)
	require.NoError(t, c.LoadMyBookings(context.Background()))
	c.SetFilters(Filters{LicenseTypes: []string{"RN"}, MaxDistance: 25})

	restored := NewShiftCatalog(api, nil, identity, store)
	require.NoError(t, restored.Restore(context.Background()))
	assert.Len(t, restored.Bookings(), 1)
	assert.Equal(t, []string{"RN"}, restored.Filters().LicenseTypes)
	assert.Equal(t, 25.0, restored.Filters().MaxDistance)

	require.NoError(t, restored.Reset(context.Background()))
	empty := NewShiftCatalog(api, nil, identity, store)
	require.NoError(t, empty.Restore(context.Background()))
	assert.Empty(t, empty.Bookings())
}

func TestClosedCatalogRejectsCallsAndDropsResponses(t *testing.T) {
	gate := make(chan struct{})
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: catalogFixtures(), gate: gate}}}
	c := newTestCatalog(api)

	done := make(chan error, 1)
	go func() { done <- c.LoadAvailableShifts(context.Background()) }()
	require.Eventually(t, c.Loading, time.Second, 5*time.Millisecond)

	c.Close()
	close(gate)
	require.NoError(t, <-done)
	assert.Empty(t, c.AvailableShifts())

	assert.ErrorIs(t, c.LoadAvailableShifts(context.Background()), ErrClosed)
	_, err := c.ApplyForShift(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCatalogAgainstMockService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	shifts := h.engine.Shifts

	require.NoError(t, shifts.LoadAvailableShifts(ctx))
	require.NotEmpty(t, shifts.AvailableShifts())
	for _, s := range shifts.AvailableShifts() {
		assert.NotEmpty(t, s.Department.Name)
	}

	booking, err := shifts.ApplyForShift(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, models.SyncConfirmed, booking.Sync)

	before := len(shifts.Bookings())
	_, err = shifts.ApplyForShift(ctx, 6)
	require.True(t, IsConflict(err), "got %v", err)
	assert.Len(t, shifts.Bookings(), before)

	require.NoError(t, shifts.CancelBooking(ctx, booking.ID))
	require.NoError(t, shifts.LoadMyBookings(ctx))
	got, ok := shifts.Booking(booking.ID)
	require.True(t, ok)
	assert.Equal(t, models.BookingStatusCancelled, got.Status)
}

func TestUrgentFilterSelectsUrgentShift(t *testing.T) {
	start := time.Date(2026, 3, 12, 7, 0, 0, 0, time.UTC)
	a := shiftFixture(1, "ICU", "RN", false, start)
	a.HourlyRate = ptr(3500.0)
	b := shiftFixture(2, "ICU", "RN", true, start)
	b.HourlyRate = ptr(4000.0)
	api := &scriptedShiftAPI{responses: []scriptedShifts{{shifts: []models.Shift{a, b}}}}
	c := newTestCatalog(api)
	require.NoError(t, c.LoadAvailableShifts(context.Background()))

	c.SetFilters(Filters{IsUrgent: Bool(true)})
	assert.Equal(t, []models.Shift{b}, c.FilteredShifts())
}
