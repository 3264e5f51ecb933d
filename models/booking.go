package models

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is a nurse's claim on a shift. Bookings are never removed, only
// moved between statuses.
type Booking struct {
	ID          string        `json:"id"`
	NurseID     uint          `json:"nurse_id"`
	ShiftID     uint          `json:"shift_id"`
	Status      BookingStatus `json:"status"`
	BookedAt    time.Time     `json:"booked_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Shift       *Shift        `json:"shift,omitempty"`
	Sync        SyncState     `json:"sync_state,omitempty"`
}

// IsTerminal reports whether the booking can no longer change status.
func (b Booking) IsTerminal() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusCompleted
}
