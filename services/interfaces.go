package services

import (
	"context"

	"shift-staffing-client/models"
)

// The narrow views of the remote service each component depends on.
// *APIClient satisfies all of them.

type ShiftAPI interface {
	ListShifts(ctx context.Context, q ShiftQuery) (*models.Page[models.Shift], error)
	ApplyForShift(ctx context.Context, shiftID uint, req ApplyRequest) (*models.Booking, error)
	ListBookings(ctx context.Context, nurseID uint) ([]models.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error)
}

type SwapAPI interface {
	ListSwapRequests(ctx context.Context, nurseID uint) ([]models.SwapRequest, error)
	CreateSwapRequest(ctx context.Context, req models.CreateSwapRequest) (*models.SwapRequest, error)
	AcceptSwapRequest(ctx context.Context, swapID uint) error
	CancelSwapRequest(ctx context.Context, swapID uint) error
	ListSwapOpportunities(ctx context.Context, nurseID uint) ([]models.SwapOpportunity, error)
}

type NotificationAPI interface {
	ListNotifications(ctx context.Context, q NotificationQuery) (*models.Page[models.Notification], error)
	MarkNotificationRead(ctx context.Context, notificationID uint) error
	MarkAllNotificationsRead(ctx context.Context, req models.MarkAllReadRequest) error
}

type ProfileAPI interface {
	ListNurses(ctx context.Context) ([]models.Nurse, error)
	GetNurse(ctx context.Context, nurseID uint) (*models.Nurse, error)
	UpdateNurse(ctx context.Context, nurseID uint, req models.UpdateNurseProfileRequest) (*models.Nurse, error)
	GetDepartment(ctx context.Context, departmentID uint) (*models.Department, error)
}

type AvailabilityAPI interface {
	GetAvailability(ctx context.Context, nurseID uint) ([]models.NurseAvailability, error)
	UpdateAvailability(ctx context.Context, nurseID uint, entries []models.NurseAvailability) error
}

type AttendanceAPI interface {
	ClockIn(ctx context.Context, req models.ClockInRequest) (*models.ClockInResponse, error)
	ClockOut(ctx context.Context, req models.ClockOutRequest) (*models.ClockOutResponse, error)
	ListAttendance(ctx context.Context, nurseID uint) ([]models.AttendanceRecord, error)
}

// Identity supplies the signed-in nurse. *Session implements it.
type Identity interface {
	NurseID() uint
	UserID() uint
}

// DepartmentResolver turns a department id into its display record.
type DepartmentResolver interface {
	Department(ctx context.Context, departmentID uint) (*models.Department, error)
}

// Invalidation contracts used for cross-component consistency. A component
// never mutates another's state; it only marks it stale.

type ShiftInvalidator interface {
	InvalidateShifts()
}

type NotificationInvalidator interface {
	Refresh()
}

type ProfileInvalidator interface {
	InvalidateProfile()
}

type DashboardInvalidator interface {
	Invalidate()
}
