package routes

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
	ws "shift-staffing-client/websocket"
)

const defaultSwapExpiryHours = 24

func (s *MockServer) listSwapRequests(c *gin.Context) {
	nurseID := queryUint(c, "nurse_id")
	if nurseID == 0 {
		nurseID = c.GetUint(middleware.ContextNurseID)
	}

	s.mu.Lock()
	out := make([]models.SwapRequest, 0)
	for _, r := range s.swaps {
		if r.RequestingNurseID == nurseID || (r.TargetNurseID != nil && *r.TargetNurseID == nurseID) {
			out = append(out, s.expandSwapLocked(r))
		}
	}
	s.mu.Unlock()

	respondPage(c, out)
}

func (s *MockServer) createSwapRequest(c *gin.Context) {
	nurseID := c.GetUint(middleware.ContextNurseID)

	var req models.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("body", err.Error()))
		return
	}

	var errs []models.FieldError
	if req.OriginalShiftID == 0 {
		errs = append(errs, fieldError("original_shift_id", "is required"))
	}
	if strings.TrimSpace(req.Reason) == "" {
		errs = append(errs, fieldError("reason", "is required"))
	}
	switch req.SwapType {
	case models.SwapTypeFullShift:
		if req.TargetNurseID == nil {
			errs = append(errs, fieldError("target_nurse_id", "is required for full_shift swaps"))
		}
		if req.RequestedShiftID == nil {
			errs = append(errs, fieldError("requested_shift_id", "is required for full_shift swaps"))
		}
	case models.SwapTypeOpenRequest, models.SwapTypePartialShift:
	default:
		errs = append(errs, fieldError("swap_type", "must be open_request, full_shift or partial_shift"))
	}
	if req.ExpiresInHours < 0 {
		errs = append(errs, fieldError("expires_in_hours", "must not be negative"))
	}
	if len(errs) > 0 {
		respondError(c, http.StatusBadRequest, "Validation failed", errs...)
		return
	}
	if req.ExpiresInHours == 0 {
		req.ExpiresInHours = defaultSwapExpiryHours
	}

	s.mu.Lock()
	sh := s.findShiftLocked(req.OriginalShiftID)
	if sh == nil {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Original shift not found")
		return
	}
	if !assigned(sh, nurseID) {
		s.mu.Unlock()
		respondError(c, http.StatusForbidden, "You are not assigned to this shift")
		return
	}

	now := s.now().UTC()
	s.nextSwapID++
	swap := &models.SwapRequest{
		SwapID:            s.nextSwapID,
		RequestingNurseID: nurseID,
		TargetNurseID:     req.TargetNurseID,
		OriginalShiftID:   req.OriginalShiftID,
		RequestedShiftID:  req.RequestedShiftID,
		SwapType:          req.SwapType,
		Reason:            req.Reason,
		Status:            models.SwapStatusPending,
		ExpiresAt:         now.Add(time.Duration(req.ExpiresInHours) * time.Hour),
		CreatedAt:         now,
	}
	s.swaps = append(s.swaps, swap)
	out := s.expandSwapLocked(swap)
	var targetUser uint
	if swap.TargetNurseID != nil {
		targetUser = s.userForNurse(*swap.TargetNurseID)
	}
	s.mu.Unlock()

	s.logger.Info("swap request created", zap.Uint("swap_id", out.SwapID), zap.String("type", string(out.SwapType)))
	if targetUser != 0 {
		s.PushNotification(targetUser, models.Notification{
			Category:       "swap_request",
			Title:          "Swap request received",
			Message:        "A colleague asked to swap shifts with you.",
			Priority:       models.PriorityHigh,
			ActionRequired: true,
		})
	}
	respondData(c, http.StatusCreated, out)
}

// listSwapOpportunities returns pending requests from other nurses that the
// caller could take, best match first.
func (s *MockServer) listSwapOpportunities(c *gin.Context) {
	nurseID := queryUint(c, "nurse_id")
	if nurseID == 0 {
		nurseID = c.GetUint(middleware.ContextNurseID)
	}

	s.mu.Lock()
	now := s.now()
	myDepartments := make(map[uint]bool)
	for _, sh := range s.shifts {
		if assigned(sh, nurseID) {
			myDepartments[sh.Department.DepartmentID] = true
		}
	}

	out := make([]models.SwapOpportunity, 0)
	for _, r := range s.swaps {
		if r.RequestingNurseID == nurseID || r.Status != models.SwapStatusPending || now.After(r.ExpiresAt) {
			continue
		}
		if r.TargetNurseID != nil && *r.TargetNurseID != nurseID {
			continue
		}

		score := 0.6
		reasons := []string{}
		if r.TargetNurseID != nil {
			score = 0.9
			reasons = append(reasons, "Requested you directly")
		} else {
			reasons = append(reasons, "Open to any nurse")
		}
		if sh := s.findShiftLocked(r.OriginalShiftID); sh != nil {
			if assigned(sh, nurseID) {
				continue
			}
			if myDepartments[sh.Department.DepartmentID] {
				score += 0.1
				reasons = append(reasons, "Same department as your shifts")
			}
		}
		out = append(out, models.SwapOpportunity{
			SwapRequest:        s.expandSwapLocked(r),
			CompatibilityScore: math.Min(score, 1),
			MatchReasons:       reasons,
		})
	}
	s.mu.Unlock()

	respondData(c, http.StatusOK, out)
}

// acceptSwapRequest approves a pending request and moves the original shift
// to the accepting nurse.
func (s *MockServer) acceptSwapRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	nurseID := c.GetUint(middleware.ContextNurseID)

	s.mu.Lock()
	swap := s.findSwapLocked(id)
	if swap == nil {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Swap request not found")
		return
	}
	switch {
	case swap.RequestingNurseID == nurseID:
		s.mu.Unlock()
		respondError(c, http.StatusBadRequest, "You cannot accept your own swap request")
		return
	case swap.TargetNurseID != nil && *swap.TargetNurseID != nurseID:
		s.mu.Unlock()
		respondError(c, http.StatusForbidden, "This swap request is addressed to another nurse")
		return
	case swap.Status != models.SwapStatusPending:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Swap request is already "+string(swap.Status))
		return
	case s.now().After(swap.ExpiresAt):
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Swap request has expired")
		return
	}

	now := s.now().UTC()
	swap.Status = models.SwapStatusApproved
	swap.UpdatedAt = &now
	if sh := s.findShiftLocked(swap.OriginalShiftID); sh != nil {
		unassign(sh, swap.RequestingNurseID)
		s.assignLocked(sh, nurseID)
		sh.UpdatedAt = now
	}
	if swap.SwapType == models.SwapTypeFullShift && swap.RequestedShiftID != nil {
		if sh := s.findShiftLocked(*swap.RequestedShiftID); sh != nil {
			unassign(sh, nurseID)
			s.assignLocked(sh, swap.RequestingNurseID)
			sh.UpdatedAt = now
		}
	}
	out := s.expandSwapLocked(swap)
	requester := s.userForNurse(swap.RequestingNurseID)
	accepter := s.userForNurse(nurseID)
	s.mu.Unlock()

	s.logger.Info("swap request approved", zap.Uint("swap_id", id), zap.Uint("accepted_by", nurseID))
	for _, userID := range []uint{requester, accepter} {
		s.hub.Publish(userID, ws.TypeSwapUpdate, out)
		s.hub.Publish(userID, ws.TypeShiftUpdate, map[string]uint{"shift_id": out.OriginalShiftID})
	}
	s.PushNotification(requester, models.Notification{
		Category: "swap_request",
		Title:    "Swap approved",
		Message:  "Your swap request was accepted.",
		Priority: models.PriorityHigh,
	})
	respondMessage(c, "Swap request accepted")
}

// cancelSwapRequest withdraws a pending request. Withdrawing a cancelled
// request succeeds again.
func (s *MockServer) cancelSwapRequest(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	nurseID := c.GetUint(middleware.ContextNurseID)

	s.mu.Lock()
	swap := s.findSwapLocked(id)
	if swap == nil || swap.RequestingNurseID != nurseID {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Swap request not found")
		return
	}
	switch swap.Status {
	case models.SwapStatusCancelled:
		s.mu.Unlock()
		respondMessage(c, "Swap request already cancelled")
		return
	case models.SwapStatusPending:
	default:
		s.mu.Unlock()
		respondError(c, http.StatusConflict, "Swap request is already "+string(swap.Status))
		return
	}

	now := s.now().UTC()
	swap.Status = models.SwapStatusCancelled
	swap.UpdatedAt = &now
	out := s.expandSwapLocked(swap)
	s.mu.Unlock()

	s.hub.Publish(s.userFor(nurseID), ws.TypeSwapUpdate, out)
	respondMessage(c, "Swap request cancelled")
}

func (s *MockServer) findSwapLocked(id uint) *models.SwapRequest {
	for _, r := range s.swaps {
		if r.SwapID == id {
			return r
		}
	}
	return nil
}

// expandSwapLocked copies r with its nurses and shifts embedded.
func (s *MockServer) expandSwapLocked(r *models.SwapRequest) models.SwapRequest {
	out := *r
	if n, ok := s.nurses[r.RequestingNurseID]; ok {
		nurse := *n
		out.RequestingNurse = &nurse
	}
	if r.TargetNurseID != nil {
		if n, ok := s.nurses[*r.TargetNurseID]; ok {
			nurse := *n
			out.TargetNurse = &nurse
		}
	}
	if sh := s.findShiftLocked(r.OriginalShiftID); sh != nil {
		shift := cloneShift(sh)
		out.OriginalShift = &shift
	}
	if r.RequestedShiftID != nil {
		if sh := s.findShiftLocked(*r.RequestedShiftID); sh != nil {
			shift := cloneShift(sh)
			out.RequestedShift = &shift
		}
	}
	return out
}

func (s *MockServer) userFor(nurseID uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userForNurse(nurseID)
}
