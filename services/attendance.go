package services

import (
	"context"

	"go.uber.org/zap"

	"shift-staffing-client/models"
	"shift-staffing-client/utils"
)

// AttendanceService records clock-in and clock-out. Both change what the
// dashboard shows, so success invalidates it.
type AttendanceService struct {
	componentBase

	api       AttendanceAPI
	identity  Identity
	dashboard DashboardInvalidator
}

func NewAttendanceService(api AttendanceAPI, identity Identity, dashboard DashboardInvalidator, opts ...Option) *AttendanceService {
	return &AttendanceService{
		componentBase: newComponentBase("attendance", opts),
		api:           api,
		identity:      identity,
		dashboard:     dashboard,
	}
}

// ClockIn starts attendance for an assignment. Coordinates are optional but
// must be given together and be valid.
func (s *AttendanceService) ClockIn(ctx context.Context, req models.ClockInRequest) (*models.ClockInResponse, error) {
	if req.AssignmentID == 0 {
		return nil, newValidationError("assignment_id", "is required")
	}
	if (req.LocationLat == nil) != (req.LocationLng == nil) {
		return nil, newValidationError("location", "latitude and longitude must be given together")
	}
	if req.LocationLat != nil && !utils.ValidCoordinates(*req.LocationLat, *req.LocationLng) {
		return nil, newValidationError("location", "coordinates out of range")
	}

	resp, err := s.api.ClockIn(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("clocked in",
		zap.Uint("assignment_id", req.AssignmentID),
		zap.Int("late_minutes", resp.LateMinutes))
	s.invalidate()
	return resp, nil
}

func (s *AttendanceService) ClockOut(ctx context.Context, req models.ClockOutRequest) (*models.ClockOutResponse, error) {
	if req.AssignmentID == 0 {
		return nil, newValidationError("assignment_id", "is required")
	}
	if req.PatientCountEnd != nil && *req.PatientCountEnd < 0 {
		return nil, newValidationError("patient_count_end", "must not be negative")
	}

	resp, err := s.api.ClockOut(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("clocked out",
		zap.Uint("assignment_id", req.AssignmentID),
		zap.Float64("total_hours", resp.TotalHours))
	s.invalidate()
	return resp, nil
}

// Records lists the signed-in nurse's attendance.
func (s *AttendanceService) Records(ctx context.Context) ([]models.AttendanceRecord, error) {
	nurseID := s.identity.NurseID()
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required")
	}
	return s.api.ListAttendance(ctx, nurseID)
}

func (s *AttendanceService) invalidate() {
	if s.dashboard != nil {
		s.dashboard.Invalidate()
	}
}
