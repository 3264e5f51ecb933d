package models

import (
	"strings"
	"time"
)

type ShiftType string

const (
	ShiftTypeDay     ShiftType = "day"
	ShiftTypeNight   ShiftType = "night"
	ShiftTypeEvening ShiftType = "evening"
	ShiftTypeWeekend ShiftType = "weekend"
	ShiftTypeHoliday ShiftType = "holiday"
	ShiftTypeOnCall  ShiftType = "on_call"
	ShiftTypeFloat   ShiftType = "float"
)

type ShiftStatus string

const (
	ShiftStatusOpen         ShiftStatus = "open"
	ShiftStatusFilled       ShiftStatus = "filled"
	ShiftStatusScheduled    ShiftStatus = "scheduled"
	ShiftStatusInProgress   ShiftStatus = "in_progress"
	ShiftStatusCompleted    ShiftStatus = "completed"
	ShiftStatusCancelled    ShiftStatus = "cancelled"
	ShiftStatusUnderstaffed ShiftStatus = "understaffed"
	ShiftStatusOverstaffed  ShiftStatus = "overstaffed"
)

type StaffingLevel string

const (
	StaffingUnderstaffed StaffingLevel = "understaffed"
	StaffingAdequate     StaffingLevel = "adequate"
	StaffingOverstaffed  StaffingLevel = "overstaffed"
)

type Department struct {
	DepartmentID uint   `json:"department_id"`
	Name         string `json:"name"`
	Code         string `json:"code"`
	IsActive     bool   `json:"is_active"`
}

type ShiftAssignment struct {
	AssignmentID uint       `json:"assignment_id"`
	NurseID      uint       `json:"nurse_id"`
	Nurse        *Nurse     `json:"nurse,omitempty"`
	ShiftID      uint       `json:"shift_id"`
	IsPrimary    bool       `json:"is_primary"`
	PatientLoad  int        `json:"patient_load"`
	Status       string     `json:"status"` // assigned, confirmed, completed, cancelled
	AssignedAt   time.Time  `json:"assigned_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
}

// Shift is a schedulable block of time at a department. HourlyRate and
// DistanceKm are optional and may be absent from the server payload.
type Shift struct {
	ShiftID            uint              `json:"shift_id"`
	Department         Department        `json:"department"`
	FacilityName       string            `json:"facility_name,omitempty"`
	LicenseType        string            `json:"license_type,omitempty"`
	StartTime          time.Time         `json:"start_time"`
	EndTime            time.Time         `json:"end_time"`
	ShiftType          ShiftType         `json:"shift_type"`
	RequiredNurses     int               `json:"required_nurses"`
	AssignedNurses     int               `json:"assigned_nurses"`
	RequiredSkills     []uint            `json:"required_skills,omitempty"`
	PatientRatioTarget float64           `json:"patient_ratio_target,omitempty"`
	Notes              string            `json:"notes,omitempty"`
	Status             ShiftStatus       `json:"status"`
	PriorityScore      float64           `json:"priority_score,omitempty"`
	AutoGenerated      bool              `json:"auto_generated,omitempty"`
	Urgent             bool              `json:"is_urgent,omitempty"`
	HourlyRate         *float64          `json:"hourly_rate,omitempty"`
	DistanceKm         *float64          `json:"distance_km,omitempty"`
	Assignments        []ShiftAssignment `json:"assignments,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// IsUrgent reports the server urgency flag, or understaffing.
func (s Shift) IsUrgent() bool {
	return s.Urgent || s.Status == ShiftStatusUnderstaffed
}

// Title is the human label for the shift type.
func (s Shift) Title() string {
	return ShiftTypeDisplayName(s.ShiftType)
}

// Hours is the shift length rounded to two decimals.
func (s Shift) Hours() float64 {
	h := s.EndTime.Sub(s.StartTime).Hours()
	return float64(int64(h*100+0.5)) / 100
}

// ShiftDate is the calendar day the shift starts on, YYYY-MM-DD.
func (s Shift) ShiftDate() string {
	return s.StartTime.Format(DateLayout)
}

func (s Shift) StaffingLevel() StaffingLevel {
	switch {
	case s.Status == ShiftStatusUnderstaffed:
		return StaffingUnderstaffed
	case s.Status == ShiftStatusOverstaffed:
		return StaffingOverstaffed
	case s.AssignedNurses >= s.RequiredNurses:
		return StaffingAdequate
	default:
		return StaffingUnderstaffed
	}
}

// ActiveAt reports whether t falls inside the shift window.
func (s Shift) ActiveAt(t time.Time) bool {
	return !t.Before(s.StartTime) && !t.After(s.EndTime)
}

const DateLayout = "2006-01-02"

var shiftTypeNames = map[ShiftType]string{
	ShiftTypeDay:     "Day Shift",
	ShiftTypeNight:   "Night Shift",
	ShiftTypeEvening: "Evening Shift",
	ShiftTypeWeekend: "Weekend Shift",
	ShiftTypeHoliday: "Holiday Shift",
	ShiftTypeOnCall:  "On Call",
	ShiftTypeFloat:   "Float",
}

func ShiftTypeDisplayName(t ShiftType) string {
	if name, ok := shiftTypeNames[t]; ok {
		return name
	}
	raw := strings.TrimSpace(string(t))
	if raw == "" {
		return "Shift"
	}
	return strings.ToUpper(raw[:1]) + raw[1:] + " Shift"
}
