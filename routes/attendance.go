package routes

import (
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
)

// lateGrace is how long after the scheduled start a clock-in still counts as
// on time.
const lateGrace = 5 * time.Minute

func (s *MockServer) clockIn(c *gin.Context) {
	nurseID := c.GetUint(middleware.ContextNurseID)

	var req models.ClockInRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AssignmentID == 0 {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("assignment_id", "is required"))
		return
	}

	s.mu.Lock()
	sh, a := s.findAssignmentLocked(req.AssignmentID)
	if sh == nil || a.NurseID != nurseID {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Assignment not found")
		return
	}
	if rec := s.findRecordLocked(req.AssignmentID); rec != nil && rec.ClockInTime != nil {
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Already clocked in for this assignment")
		return
	}

	now := s.now().UTC()
	late := 0
	status := "present"
	var warnings []string
	if now.After(sh.StartTime.Add(lateGrace)) {
		late = int(now.Sub(sh.StartTime).Minutes())
		status = "late"
		warnings = append(warnings, "Clock-in recorded after the scheduled start")
	}
	if req.LocationLat == nil {
		warnings = append(warnings, "No location supplied")
	}

	s.nextRecordID++
	rec := &models.AttendanceRecord{
		RecordID:       s.nextRecordID,
		AssignmentID:   req.AssignmentID,
		NurseID:        nurseID,
		ShiftID:        sh.ShiftID,
		ScheduledStart: sh.StartTime,
		ScheduledEnd:   sh.EndTime,
		ClockInTime:    &now,
		LateMinutes:    late,
		Status:         status,
		Notes:          req.Notes,
	}
	s.attendance = append(s.attendance, rec)
	s.mu.Unlock()

	s.logger.Info("clock in", zap.Uint("assignment_id", req.AssignmentID), zap.Int("late_minutes", late))
	respondData(c, http.StatusOK, models.ClockInResponse{
		RecordID:    rec.RecordID,
		ClockInTime: now,
		LateMinutes: late,
		Warnings:    warnings,
	})
}

func (s *MockServer) clockOut(c *gin.Context) {
	nurseID := c.GetUint(middleware.ContextNurseID)

	var req models.ClockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AssignmentID == 0 {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("assignment_id", "is required"))
		return
	}

	s.mu.Lock()
	rec := s.findRecordLocked(req.AssignmentID)
	switch {
	case rec == nil || rec.NurseID != nurseID || rec.ClockInTime == nil:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Not clocked in for this assignment")
		return
	case rec.ClockOutTime != nil:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Already clocked out for this assignment")
		return
	}

	now := s.now().UTC()
	rec.ClockOutTime = &now
	rec.Status = "completed"
	if req.Notes != "" {
		rec.Notes = req.Notes
	}
	worked := now.Sub(*rec.ClockInTime)
	overtime := 0
	if now.After(rec.ScheduledEnd) {
		overtime = int(now.Sub(rec.ScheduledEnd).Minutes())
	}
	rec.OvertimeMinutes = overtime

	violations := []string{}
	if worked > 16*time.Hour {
		violations = append(violations, "Shift exceeded 16 hours")
	}
	resp := models.ClockOutResponse{
		RecordID:        rec.RecordID,
		ClockOutTime:    now,
		TotalHours:      math.Round(worked.Hours()*100) / 100,
		OvertimeMinutes: overtime,
		Violations:      violations,
	}
	s.mu.Unlock()

	respondData(c, http.StatusOK, resp)
}

func (s *MockServer) listAttendance(c *gin.Context) {
	nurseID := queryUint(c, "nurse_id")
	if nurseID == 0 {
		nurseID = c.GetUint(middleware.ContextNurseID)
	}

	s.mu.Lock()
	out := make([]models.AttendanceRecord, 0)
	for _, r := range s.attendance {
		if r.NurseID == nurseID {
			out = append(out, *r)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledStart.After(out[j].ScheduledStart)
	})
	respondPage(c, out)
}

func (s *MockServer) findAssignmentLocked(assignmentID uint) (*models.Shift, models.ShiftAssignment) {
	for _, sh := range s.shifts {
		for _, a := range sh.Assignments {
			if a.AssignmentID == assignmentID {
				return sh, a
			}
		}
	}
	return nil, models.ShiftAssignment{}
}

func (s *MockServer) findRecordLocked(assignmentID uint) *models.AttendanceRecord {
	for _, r := range s.attendance {
		if r.AssignmentID == assignmentID {
			return r
		}
	}
	return nil
}
