package models

import "time"

type ClockInRequest struct {
	AssignmentID uint     `json:"assignment_id"`
	LocationLat  *float64 `json:"location_lat,omitempty"`
	LocationLng  *float64 `json:"location_lng,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

type ClockInResponse struct {
	RecordID    uint      `json:"record_id"`
	ClockInTime time.Time `json:"clock_in_time"`
	LateMinutes int       `json:"late_minutes,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
}

type ShiftSummary struct {
	TotalPatientsCared  int `json:"total_patients_cared"`
	ProceduresPerformed int `json:"procedures_performed"`
	IncidentsReported   int `json:"incidents_reported"`
}

type ClockOutRequest struct {
	AssignmentID    uint          `json:"assignment_id"`
	PatientCountEnd *int          `json:"patient_count_end,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	ShiftSummary    *ShiftSummary `json:"shift_summary,omitempty"`
}

type ClockOutResponse struct {
	RecordID        uint      `json:"record_id"`
	ClockOutTime    time.Time `json:"clock_out_time"`
	TotalHours      float64   `json:"total_hours"`
	OvertimeMinutes int       `json:"overtime_minutes,omitempty"`
	Violations      []string  `json:"violations"`
}

type AttendanceRecord struct {
	RecordID        uint       `json:"record_id"`
	AssignmentID    uint       `json:"assignment_id"`
	NurseID         uint       `json:"nurse_id"`
	ShiftID         uint       `json:"shift_id"`
	ScheduledStart  time.Time  `json:"scheduled_start"`
	ScheduledEnd    time.Time  `json:"scheduled_end"`
	ClockInTime     *time.Time `json:"clock_in_time,omitempty"`
	ClockOutTime    *time.Time `json:"clock_out_time,omitempty"`
	OvertimeMinutes int        `json:"overtime_minutes,omitempty"`
	LateMinutes     int        `json:"late_minutes,omitempty"`
	Status          string     `json:"status"` // scheduled, present, absent, late, completed
	Notes           string     `json:"notes,omitempty"`
}
