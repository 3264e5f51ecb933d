package routes

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
	ws "shift-staffing-client/websocket"
)

// listShifts returns the nurse's schedule when nurse_id is given and the
// open shifts otherwise.
func (s *MockServer) listShifts(c *gin.Context) {
	nurseID := queryUint(c, "nurse_id")
	departmentID := queryUint(c, "department_id")
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	status := models.ShiftStatus(c.Query("status"))
	shiftType := models.ShiftType(c.Query("shift_type"))

	s.mu.Lock()
	out := make([]models.Shift, 0, len(s.shifts))
	for _, sh := range s.shifts {
		switch {
		case nurseID != 0 && !assigned(sh, nurseID):
			continue
		case nurseID == 0 && status == "" && sh.Status != models.ShiftStatusOpen && sh.Status != models.ShiftStatusUnderstaffed:
			continue
		case status != "" && sh.Status != status:
			continue
		case departmentID != 0 && sh.Department.DepartmentID != departmentID:
			continue
		case shiftType != "" && sh.ShiftType != shiftType:
			continue
		case startDate != "" && sh.ShiftDate() < startDate:
			continue
		case endDate != "" && sh.ShiftDate() > endDate:
			continue
		}
		out = append(out, cloneShift(sh))
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	respondPage(c, out)
}

func (s *MockServer) getShift(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	sh := s.findShiftLocked(id)
	var out models.Shift
	if sh != nil {
		out = cloneShift(sh)
	}
	s.mu.Unlock()

	if sh == nil {
		respondError(c, http.StatusNotFound, "Shift not found")
		return
	}
	respondData(c, http.StatusOK, out)
}

func (s *MockServer) applyForShift(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	callerNurse := c.GetUint(middleware.ContextNurseID)

	var req struct {
		NurseID uint   `json:"nurse_id"`
		Notes   string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("body", err.Error()))
		return
	}
	if req.NurseID == 0 {
		req.NurseID = callerNurse
	}
	if req.NurseID != callerNurse {
		respondError(c, http.StatusForbidden, "Cannot apply on behalf of another nurse")
		return
	}

	s.mu.Lock()
	sh := s.findShiftLocked(id)
	if sh == nil {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Shift not found")
		return
	}
	switch {
	case sh.Status == models.ShiftStatusCancelled:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Shift is no longer available")
		return
	case sh.Status == models.ShiftStatusFilled || sh.AssignedNurses >= sh.RequiredNurses:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Shift is already filled")
		return
	case assigned(sh, req.NurseID):
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "You are already booked on this shift")
		return
	}

	s.assignLocked(sh, req.NurseID)
	if sh.AssignedNurses >= sh.RequiredNurses {
		sh.Status = models.ShiftStatusFilled
	}
	now := s.now().UTC()
	sh.UpdatedAt = now
	snapshot := cloneShift(sh)
	booking := &models.Booking{
		ID:       uuid.NewString(),
		NurseID:  req.NurseID,
		ShiftID:  sh.ShiftID,
		Status:   models.BookingStatusPending,
		BookedAt: now,
		Notes:    req.Notes,
		Shift:    &snapshot,
	}
	s.bookings = append(s.bookings, booking)
	out := *booking
	userID := s.userForNurse(req.NurseID)
	s.mu.Unlock()

	s.logger.Info("shift booked", zap.Uint("shift_id", id), zap.Uint("nurse_id", req.NurseID))
	s.hub.Publish(userID, ws.TypeShiftUpdate, snapshot)
	respondData(c, http.StatusCreated, out)
}

func (s *MockServer) listBookings(c *gin.Context) {
	nurseID := queryUint(c, "nurse_id")
	if nurseID == 0 {
		nurseID = c.GetUint(middleware.ContextNurseID)
	}

	s.mu.Lock()
	out := make([]models.Booking, 0)
	for _, b := range s.bookings {
		if b.NurseID == nurseID {
			out = append(out, *b)
		}
	}
	s.mu.Unlock()

	respondPage(c, out)
}

// cancelBooking is idempotent: cancelling a cancelled booking returns it
// unchanged.
func (s *MockServer) cancelBooking(c *gin.Context) {
	bookingID := c.Param("id")
	nurseID := c.GetUint(middleware.ContextNurseID)

	s.mu.Lock()
	var booking *models.Booking
	for _, b := range s.bookings {
		if b.ID == bookingID && b.NurseID == nurseID {
			booking = b
			break
		}
	}
	if booking == nil {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Booking not found")
		return
	}

	switch booking.Status {
	case models.BookingStatusCancelled:
		out := *booking
		s.mu.Unlock()
		respondData(c, http.StatusOK, out)
		return
	case models.BookingStatusCompleted:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Completed bookings cannot be cancelled")
		return
	}

	now := s.now().UTC()
	booking.Status = models.BookingStatusCancelled
	booking.CancelledAt = &now
	if sh := s.findShiftLocked(booking.ShiftID); sh != nil {
		unassign(sh, nurseID)
		if sh.Status == models.ShiftStatusFilled && sh.AssignedNurses < sh.RequiredNurses {
			sh.Status = models.ShiftStatusOpen
		}
		sh.UpdatedAt = now
	}
	out := *booking
	userID := s.userForNurse(nurseID)
	s.mu.Unlock()

	s.hub.Publish(userID, ws.TypeShiftUpdate, map[string]uint{"shift_id": out.ShiftID})
	respondData(c, http.StatusOK, out)
}

func (s *MockServer) findShiftLocked(id uint) *models.Shift {
	for _, sh := range s.shifts {
		if sh.ShiftID == id {
			return sh
		}
	}
	return nil
}

func assigned(sh *models.Shift, nurseID uint) bool {
	for _, a := range sh.Assignments {
		if a.NurseID == nurseID && a.Status != "cancelled" {
			return true
		}
	}
	return false
}

// cloneShift copies sh so the result can be encoded outside the lock.
func cloneShift(sh *models.Shift) models.Shift {
	out := *sh
	out.Assignments = append([]models.ShiftAssignment(nil), sh.Assignments...)
	return out
}

func unassign(sh *models.Shift, nurseID uint) {
	kept := make([]models.ShiftAssignment, 0, len(sh.Assignments))
	for _, a := range sh.Assignments {
		if a.NurseID != nurseID {
			kept = append(kept, a)
		}
	}
	sh.Assignments = kept
	sh.AssignedNurses = len(kept)
}
