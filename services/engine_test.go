package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-staffing-client/models"
	"shift-staffing-client/routes"
)

func TestLoginAdoptsIdentity(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, routes.SeedNurseID, h.engine.Session.NurseID())
	assert.Equal(t, routes.SeedUserID, h.engine.Session.UserID())
	assert.True(t, h.engine.Session.Valid())
}

func TestLoginValidatesInput(t *testing.T) {
	h := newHarness(t)
	before := h.calls()

	_, err := h.engine.Login(context.Background(), " ", "secret")
	assert.True(t, IsValidation(err))
	_, err = h.engine.Login(context.Background(), "jordan.reyes@example.com", "")
	assert.True(t, IsValidation(err))
	assert.Equal(t, before, h.calls())

	_, err = h.engine.Login(context.Background(), "jordan.reyes@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLogoutClearsState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Shifts.LoadAvailableShifts(ctx))
	_, err := h.engine.Shifts.ApplyForShift(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, h.engine.Notifications.Load(ctx))

	require.NoError(t, h.engine.Logout(ctx))
	assert.Empty(t, h.engine.Shifts.AvailableShifts())
	assert.Empty(t, h.engine.Shifts.Bookings())
	count, _ := h.engine.Notifications.UnreadCount()
	assert.Zero(t, count)
	assert.Zero(t, h.engine.Session.NurseID())
	assert.False(t, h.engine.Session.Valid())

	_, err = h.engine.Login(ctx, "jordan.reyes@example.com", routes.SeedPassword)
	require.NoError(t, err)
	assert.Empty(t, h.engine.Shifts.Bookings())
}

func TestLoginRestoresPersistedBookings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Shifts.LoadAvailableShifts(ctx))
	booking, err := h.engine.Shifts.ApplyForShift(ctx, 3)
	require.NoError(t, err)
	h.engine.Shifts.SetFilters(Filters{LicenseTypes: []string{"RN"}})

	h.engine.Shifts.discard()
	_, err = h.engine.Login(ctx, "jordan.reyes@example.com", routes.SeedPassword)
	require.NoError(t, err)

	_, ok := h.engine.Shifts.Booking(booking.ID)
	assert.True(t, ok)
	assert.Equal(t, []string{"RN"}, h.engine.Shifts.Filters().LicenseTypes)
}

func TestSwitchingNurseDropsPreviousState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Shifts.LoadAvailableShifts(ctx))
	_, err := h.engine.Shifts.ApplyForShift(ctx, 3)
	require.NoError(t, err)

	_, err = h.engine.Login(ctx, "sam.okafor@example.com", routes.SeedPassword)
	require.NoError(t, err)
	assert.Equal(t, routes.SeedOtherNurseID, h.engine.Session.NurseID())
	assert.Empty(t, h.engine.Shifts.Bookings())
	assert.Empty(t, h.engine.Shifts.AvailableShifts())
}

func TestAvailabilityRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	week := WeeklyAvailability{
		EffectiveFrom:  "2026-03-01",
		EffectiveUntil: "2026-06-30",
		Days: map[string]DaySchedule{
			"monday":   {IsAvailable: true, StartTime: "7:00", EndTime: "19:00"},
			"saturday": {IsAvailable: true, IsPreferred: true, StartTime: "19:00:00", EndTime: "23:30"},
		},
	}
	sent, err := h.engine.Availability.Update(ctx, week)
	require.NoError(t, err)
	require.Len(t, sent, 7)

	got, err := h.engine.Availability.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sent, got)

	for _, e := range got {
		switch e.DayOfWeek {
		case 1:
			assert.Equal(t, "07:00:00", e.StartTime)
			assert.Equal(t, "19:00:00", e.EndTime)
		case 6:
			assert.Equal(t, "23:30:00", e.EndTime)
			assert.True(t, e.IsPreferred)
		default:
			assert.False(t, e.IsAvailable)
		}
	}

	parsed := ParseAvailability(got)
	assert.Equal(t, "07:00:00", parsed.Days["monday"].StartTime)
	assert.Equal(t, week.EffectiveFrom, parsed.EffectiveFrom)
}

func TestAvailabilityValidation(t *testing.T) {
	h := newHarness(t)
	before := h.calls()

	_, err := h.engine.Availability.Update(context.Background(), WeeklyAvailability{
		EffectiveFrom:  "2026-03-01",
		EffectiveUntil: "2026-02-01",
	})
	assert.True(t, IsValidation(err))

	_, err = h.engine.Availability.Update(context.Background(), WeeklyAvailability{
		EffectiveFrom:  "2026-03-01",
		EffectiveUntil: "2026-06-30",
		Days:           map[string]DaySchedule{"funday": {}},
	})
	assert.True(t, IsValidation(err))

	_, err = h.engine.Availability.Update(context.Background(), WeeklyAvailability{
		EffectiveFrom:  "2026-03-01",
		EffectiveUntil: "2026-06-30",
		Days:           map[string]DaySchedule{"monday": {IsAvailable: true, StartTime: "25:00", EndTime: "26:00"}},
	})
	assert.True(t, IsValidation(err))
	assert.Equal(t, before, h.calls())
}

func TestWeekdayMapping(t *testing.T) {
	n, ok := DayOfWeek("sunday")
	require.True(t, ok)
	assert.Equal(t, 0, n)
	name, ok := WeekdayName(6)
	require.True(t, ok)
	assert.Equal(t, "saturday", name)
	_, ok = WeekdayName(7)
	assert.False(t, ok)
}

func TestProfileCachesAndUpdates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	profile := h.engine.Profile

	nurse, err := profile.Nurse(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jordan Reyes", nurse.User.Name)

	before := h.calls()
	_, err = profile.Nurse(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, h.calls())

	hours := 36
	updated, err := profile.UpdateNurse(ctx, models.UpdateNurseProfileRequest{MaxHoursPerWeek: &hours})
	require.NoError(t, err)
	assert.Equal(t, 36, updated.MaxHoursPerWeek)
	cached, ok := profile.CachedNurse()
	require.True(t, ok)
	assert.Equal(t, 36, cached.MaxHoursPerWeek)

	bad := 0
	_, err = profile.UpdateNurse(ctx, models.UpdateNurseProfileRequest{MaxHoursPerWeek: &bad})
	assert.True(t, IsValidation(err))

	dept, err := profile.Department(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "ER", dept.Code)
}

func TestAttendanceInvalidatesDashboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.Dashboard.Load(ctx))
	view := h.engine.Dashboard.View()
	require.NotNil(t, view.TodayShift)
	require.NotEmpty(t, view.TodayShift.Assignments)
	assignmentID := view.TodayShift.Assignments[0].AssignmentID

	lat, lng := 40.7644, -73.9545
	_, err := h.engine.Attendance.ClockIn(ctx, models.ClockInRequest{AssignmentID: assignmentID, LocationLat: &lat})
	assert.True(t, IsValidation(err))

	in, err := h.engine.Attendance.ClockIn(ctx, models.ClockInRequest{AssignmentID: assignmentID, LocationLat: &lat, LocationLng: &lng})
	require.NoError(t, err)
	assert.NotZero(t, in.RecordID)
	shiftsStale, scheduleStale := h.engine.Shifts.Stale()
	assert.True(t, shiftsStale)
	assert.True(t, scheduleStale)

	out, err := h.engine.Attendance.ClockOut(ctx, models.ClockOutRequest{AssignmentID: assignmentID})
	require.NoError(t, err)
	assert.Equal(t, in.RecordID, out.RecordID)

	records, err := h.engine.Attendance.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "completed", records[0].Status)
}
