package models

import "time"

type SwapType string

const (
	SwapTypeFullShift    SwapType = "full_shift"
	SwapTypePartialShift SwapType = "partial_shift"
	SwapTypeOpenRequest  SwapType = "open_request"
)

type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "pending"
	SwapStatusApproved  SwapStatus = "approved"
	SwapStatusRejected  SwapStatus = "rejected"
	SwapStatusCancelled SwapStatus = "cancelled"
	SwapStatusExpired   SwapStatus = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s SwapStatus) IsTerminal() bool {
	return s != SwapStatusPending
}

type SwapRequest struct {
	SwapID            uint       `json:"swap_id"`
	RequestingNurseID uint       `json:"requesting_nurse_id"`
	RequestingNurse   *Nurse     `json:"requesting_nurse,omitempty"`
	TargetNurseID     *uint      `json:"target_nurse_id,omitempty"`
	TargetNurse       *Nurse     `json:"target_nurse,omitempty"`
	OriginalShiftID   uint       `json:"original_shift_id"`
	OriginalShift     *Shift     `json:"original_shift,omitempty"`
	RequestedShiftID  *uint      `json:"requested_shift_id,omitempty"`
	RequestedShift    *Shift     `json:"requested_shift,omitempty"`
	SwapType          SwapType   `json:"swap_type"`
	Reason            string     `json:"reason"`
	Status            SwapStatus `json:"status"`
	ExpiresAt         time.Time  `json:"expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// CreateSwapRequest is the body of POST /swap-requests.
type CreateSwapRequest struct {
	OriginalShiftID  uint     `json:"original_shift_id"`
	TargetNurseID    *uint    `json:"target_nurse_id,omitempty"`
	RequestedShiftID *uint    `json:"requested_shift_id,omitempty"`
	SwapType         SwapType `json:"swap_type"`
	Reason           string   `json:"reason"`
	ExpiresInHours   int      `json:"expires_in_hours,omitempty"`
}

// SwapOpportunity is a read-only projection of a candidate request.
type SwapOpportunity struct {
	SwapRequest        SwapRequest `json:"swap_request"`
	CompatibilityScore float64     `json:"compatibility_score"`
	MatchReasons       []string    `json:"match_reasons"`
}
