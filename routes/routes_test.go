package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-staffing-client/models"
)

var fixedNow = time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *MockServer {
	t.Helper()
	return NewMockServer(MockOptions{
		JWTSecret: "test-secret",
		Now:       func() time.Time { return fixedNow },
	})
}

func bearer(t *testing.T, s *MockServer, userID, nurseID uint) string {
	t.Helper()
	token, _, err := s.Issuer().Issue(userID, nurseID)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, s *MockServer, auth, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, APIPrefix+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "", http.MethodPost, "/auth/login", models.LoginRequest{Email: "jordan.reyes@example.com", Password: SeedPassword})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.Envelope[models.LoginResponse]](t, w)
	assert.NotEmpty(t, resp.Data.Token)
	assert.Equal(t, SeedNurseID, resp.Data.NurseID)
	assert.Equal(t, SeedUserID, resp.Data.User.UserID)

	claims, err := s.Issuer().Validate(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, SeedNurseID, claims.NurseID)

	w = do(t, s, "", http.MethodPost, "/auth/login", models.LoginRequest{Email: "jordan.reyes@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, "", http.MethodGet, "/shifts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, "Bearer garbage", http.MethodGet, "/shifts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListShifts(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	open := decode[models.Page[models.Shift]](t, do(t, s, auth, http.MethodGet, "/shifts", nil))
	require.NotEmpty(t, open.Data)
	for i, sh := range open.Data {
		assert.Contains(t, []models.ShiftStatus{models.ShiftStatusOpen, models.ShiftStatusUnderstaffed}, sh.Status)
		if i > 0 {
			assert.False(t, sh.StartTime.Before(open.Data[i-1].StartTime))
		}
	}
	require.NotNil(t, open.Pagination)
	assert.Equal(t, len(open.Data), open.Pagination.Total)

	mine := decode[models.Page[models.Shift]](t, do(t, s, auth, http.MethodGet, "/shifts?nurse_id=1", nil))
	require.Len(t, mine.Data, 2)
	assert.Equal(t, uint(1), mine.Data[0].ShiftID)
	assert.Equal(t, uint(5), mine.Data[1].ShiftID)

	icu := decode[models.Page[models.Shift]](t, do(t, s, auth, http.MethodGet, "/shifts?department_id=1", nil))
	for _, sh := range icu.Data {
		assert.Equal(t, uint(1), sh.Department.DepartmentID)
	}
}

func TestApplyAndCancelBooking(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	w := do(t, s, auth, http.MethodPost, "/shifts/3/apply", map[string]interface{}{"nurse_id": SeedNurseID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booking := decode[models.Envelope[models.Booking]](t, w).Data
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	require.NotNil(t, booking.Shift)
	assert.Equal(t, 1, booking.Shift.AssignedNurses)

	w = do(t, s, auth, http.MethodPost, "/shifts/3/apply", map[string]interface{}{"nurse_id": SeedNurseID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, auth, http.MethodPost, "/bookings/"+booking.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[models.Envelope[models.Booking]](t, w).Data
	require.NotNil(t, first.CancelledAt)

	w = do(t, s, auth, http.MethodPost, "/bookings/"+booking.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[models.Envelope[models.Booking]](t, w).Data
	assert.Equal(t, first.CancelledAt.Unix(), second.CancelledAt.Unix())

	shift := decode[models.Envelope[models.Shift]](t, do(t, s, auth, http.MethodGet, "/shifts/3", nil)).Data
	assert.Equal(t, 0, shift.AssignedNurses)
}

func TestApplyRejectsFilledShift(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	w := do(t, s, auth, http.MethodPost, "/shifts/6/apply", map[string]interface{}{"nurse_id": SeedNurseID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, auth, http.MethodPost, "/shifts/3/apply", map[string]interface{}{"nurse_id": SeedOtherNurseID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	bookings := decode[models.Page[models.Booking]](t, do(t, s, auth, http.MethodGet, "/bookings", nil))
	assert.Empty(t, bookings.Data)
}

func TestFailNext(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	s.FailNext("GET /shifts/:id", http.StatusServiceUnavailable, 1)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, auth, http.MethodGet, "/shifts/1", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, auth, http.MethodGet, "/shifts/1", nil).Code)
}

func TestSwapLifecycle(t *testing.T) {
	s := newTestServer(t)
	requester := bearer(t, s, SeedUserID, SeedNurseID)
	other := bearer(t, s, SeedOtherUserID, SeedOtherNurseID)

	invalid := models.CreateSwapRequest{OriginalShiftID: 1, SwapType: models.SwapTypeFullShift, Reason: "Appointment"}
	w := do(t, s, requester, http.MethodPost, "/swap-requests", invalid)
	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[models.APIError](t, w)
	assert.Len(t, apiErr.Errors, 2)

	w = do(t, s, requester, http.MethodPost, "/swap-requests", models.CreateSwapRequest{
		OriginalShiftID: 1, SwapType: models.SwapTypeOpenRequest, Reason: "Appointment",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Envelope[models.SwapRequest]](t, w).Data
	assert.Equal(t, models.SwapStatusPending, created.Status)
	assert.Equal(t, fixedNow.Add(24*time.Hour), created.ExpiresAt.UTC())

	opps := decode[models.Envelope[[]models.SwapOpportunity]](t, do(t, s, other, http.MethodGet, "/swap-requests/opportunities", nil)).Data
	var found bool
	for _, o := range opps {
		assert.NotEqual(t, SeedOtherNurseID, o.SwapRequest.RequestingNurseID)
		assert.LessOrEqual(t, o.CompatibilityScore, 1.0)
		if o.SwapRequest.SwapID == created.SwapID {
			found = true
		}
	}
	assert.True(t, found)

	assert.Equal(t, http.StatusBadRequest, do(t, s, requester, http.MethodPost, "/swap-requests/2/accept", nil).Code)
	require.Equal(t, http.StatusOK, do(t, s, other, http.MethodPost, "/swap-requests/2/accept", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, s, other, http.MethodPost, "/swap-requests/2/accept", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, s, requester, http.MethodPost, "/swap-requests/2/cancel", nil).Code)

	shift := decode[models.Envelope[models.Shift]](t, do(t, s, requester, http.MethodGet, "/shifts/1", nil)).Data
	require.Len(t, shift.Assignments, 1)
	assert.Equal(t, SeedOtherNurseID, shift.Assignments[0].NurseID)
}

func TestCancelSwapIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedOtherUserID, SeedOtherNurseID)

	assert.Equal(t, http.StatusOK, do(t, s, auth, http.MethodPost, "/swap-requests/1/cancel", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, auth, http.MethodPost, "/swap-requests/1/cancel", nil).Code)

	list := decode[models.Page[models.SwapRequest]](t, do(t, s, auth, http.MethodGet, "/swap-requests", nil))
	require.Len(t, list.Data, 1)
	assert.Equal(t, models.SwapStatusCancelled, list.Data[0].Status)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	all := decode[models.Page[models.Notification]](t, do(t, s, auth, http.MethodGet, "/notifications", nil))
	require.Len(t, all.Data, 4)
	for i := 1; i < len(all.Data); i++ {
		assert.False(t, all.Data[i].SentAt.After(all.Data[i-1].SentAt))
	}

	unread := decode[models.Page[models.Notification]](t, do(t, s, auth, http.MethodGet, "/notifications?unread_only=true&limit=1", nil))
	require.NotNil(t, unread.Pagination)
	assert.Equal(t, 3, unread.Pagination.Total)
	assert.Len(t, unread.Data, 1)

	assert.Equal(t, http.StatusNotFound, do(t, s, auth, http.MethodPost, "/notifications/5/read", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, auth, http.MethodPost, "/notifications/4/read", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, auth, http.MethodPost, "/notifications/4/read", nil).Code)

	w := do(t, s, auth, http.MethodPost, "/notifications/read-all", models.MarkAllReadRequest{UserID: SeedOtherUserID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, auth, http.MethodPost, "/notifications/read-all", models.MarkAllReadRequest{UserID: SeedUserID, Category: "urgent"})
	require.Equal(t, http.StatusOK, w.Code)
	unread = decode[models.Page[models.Notification]](t, do(t, s, auth, http.MethodGet, "/notifications?unread_only=true", nil))
	require.Len(t, unread.Data, 1)
	assert.Equal(t, models.PriorityLow, unread.Data[0].Priority)
}

func TestNurseProfileAndAvailability(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	phone := "555-9999"
	w := do(t, s, auth, http.MethodPut, "/nurses/1", models.UpdateNurseProfileRequest{Phone: &phone})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, phone, decode[models.Envelope[models.Nurse]](t, w).Data.User.Phone)
	assert.Equal(t, http.StatusForbidden, do(t, s, auth, http.MethodPut, "/nurses/2", models.UpdateNurseProfileRequest{Phone: &phone}).Code)

	bad := []models.NurseAvailability{{DayOfWeek: 1, StartTime: "07:00", EndTime: "19:00:00"}}
	assert.Equal(t, http.StatusBadRequest, do(t, s, auth, http.MethodPut, "/nurses/1/availability", bad).Code)

	good := []models.NurseAvailability{
		{DayOfWeek: 1, StartTime: "07:00:00", EndTime: "19:00:00", IsAvailable: true},
		{DayOfWeek: 3, StartTime: "19:00:00", EndTime: "23:00:00", IsAvailable: true, IsPreferred: true},
	}
	require.Equal(t, http.StatusOK, do(t, s, auth, http.MethodPut, "/nurses/1/availability", good).Code)
	got := decode[models.Envelope[[]models.NurseAvailability]](t, do(t, s, auth, http.MethodGet, "/nurses/1/availability", nil)).Data
	assert.Equal(t, good, got)

	dept := decode[models.Envelope[models.Department]](t, do(t, s, auth, http.MethodGet, "/departments/2", nil)).Data
	assert.Equal(t, "ER", dept.Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, auth, http.MethodGet, "/departments/99", nil).Code)
}

func TestClockInAndOut(t *testing.T) {
	s := newTestServer(t)
	auth := bearer(t, s, SeedUserID, SeedNurseID)

	mine := decode[models.Page[models.Shift]](t, do(t, s, auth, http.MethodGet, "/shifts?nurse_id=1", nil))
	require.NotEmpty(t, mine.Data)
	assignmentID := mine.Data[0].Assignments[0].AssignmentID

	w := do(t, s, auth, http.MethodPost, "/attendance/clock-in", models.ClockInRequest{AssignmentID: assignmentID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	in := decode[models.Envelope[models.ClockInResponse]](t, w).Data
	assert.Equal(t, 30, in.LateMinutes)

	assert.Equal(t, http.StatusConflict, do(t, s, auth, http.MethodPost, "/attendance/clock-in", models.ClockInRequest{AssignmentID: assignmentID}).Code)

	w = do(t, s, auth, http.MethodPost, "/attendance/clock-out", models.ClockOutRequest{AssignmentID: assignmentID})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[models.Envelope[models.ClockOutResponse]](t, w).Data
	assert.Equal(t, in.RecordID, out.RecordID)

	records := decode[models.Page[models.AttendanceRecord]](t, do(t, s, auth, http.MethodGet, "/attendance", nil))
	require.Len(t, records.Data, 1)
	assert.Equal(t, "completed", records.Data[0].Status)

	other := bearer(t, s, SeedOtherUserID, SeedOtherNurseID)
	assert.Equal(t, http.StatusNotFound, do(t, s, other, http.MethodPost, "/attendance/clock-in", models.ClockInRequest{AssignmentID: assignmentID}).Code)
}
