package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"shift-staffing-client/models"
)

// DefaultSwapExpiryHours applies when a request does not set its own expiry.
const DefaultSwapExpiryHours = 24

// DisplayStatus is the status to show for req at now: a pending request
// past its expiry reads as expired. The stored status is never changed, so a
// later server decision still wins.
func DisplayStatus(req models.SwapRequest, now time.Time) models.SwapStatus {
	if req.Status == models.SwapStatusPending && !req.ExpiresAt.IsZero() && now.After(req.ExpiresAt) {
		return models.SwapStatusExpired
	}
	return req.Status
}

// SwapInput describes a new swap request.
type SwapInput struct {
	OriginalShiftID  uint
	SwapType         models.SwapType
	Reason           string
	ExpiresInHours   int // 0 means DefaultSwapExpiryHours
	TargetNurseID    *uint
	RequestedShiftID *uint
}

// Validate checks the input without contacting the server. A full shift
// swap names both the nurse and the shift to exchange with; an open request
// needs neither.
func (in SwapInput) Validate() error {
	if in.OriginalShiftID == 0 {
		return newValidationError("original_shift_id", "is required")
	}
	switch in.SwapType {
	case models.SwapTypeFullShift:
		if in.TargetNurseID == nil || *in.TargetNurseID == 0 {
			return newValidationError("target_nurse_id", "is required for a full shift swap")
		}
		if in.RequestedShiftID == nil || *in.RequestedShiftID == 0 {
			return newValidationError("requested_shift_id", "is required for a full shift swap")
		}
	case models.SwapTypeOpenRequest, models.SwapTypePartialShift:
	default:
		return newValidationError("swap_type", "must be full_shift, partial_shift or open_request")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return newValidationError("reason", "is required")
	}
	if in.ExpiresInHours < 0 {
		return newValidationError("expires_in_hours", "must not be negative")
	}
	return nil
}

func (in SwapInput) request() models.CreateSwapRequest {
	hours := in.ExpiresInHours
	if hours == 0 {
		hours = DefaultSwapExpiryHours
	}
	req := models.CreateSwapRequest{
		OriginalShiftID: in.OriginalShiftID,
		SwapType:        in.SwapType,
		Reason:          strings.TrimSpace(in.Reason),
		ExpiresInHours:  hours,
	}
	// an open request never carries a counterpart
	if in.SwapType != models.SwapTypeOpenRequest {
		req.TargetNurseID = in.TargetNurseID
		req.RequestedShiftID = in.RequestedShiftID
	}
	return req
}

// SwapView pairs a request with the status to display for it.
type SwapView struct {
	models.SwapRequest
	Display models.SwapStatus `json:"display_status"`
}

// SwapNegotiator drives swap requests from creation to a terminal state.
type SwapNegotiator struct {
	componentBase

	api      SwapAPI
	identity Identity
	shifts   ShiftInvalidator

	mu            sync.Mutex
	mine          []models.SwapRequest
	mineGen       generation
	mineStale     bool
	opportunities map[uint][]models.SwapOpportunity
	oppGen        generation
	inFlight      int
	err           error
	closed        bool
}

// NewSwapNegotiator builds a negotiator. shifts is told to reload whenever a
// swap changes assignments and may be nil.
func NewSwapNegotiator(api SwapAPI, identity Identity, shifts ShiftInvalidator, opts ...Option) *SwapNegotiator {
	return &SwapNegotiator{
		componentBase: newComponentBase("swap_negotiator", opts),
		api:           api,
		identity:      identity,
		shifts:        shifts,
		mineStale:     true,
		opportunities: make(map[uint][]models.SwapOpportunity),
	}
}

func (sn *SwapNegotiator) begin() error {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.closed {
		return ErrClosed
	}
	sn.inFlight++
	return nil
}

func (sn *SwapNegotiator) end() {
	sn.mu.Lock()
	sn.inFlight--
	sn.mu.Unlock()
}

// CreateSwapRequest validates in locally, then submits it. Invalid input
// never reaches the server.
func (sn *SwapNegotiator) CreateSwapRequest(ctx context.Context, in SwapInput) (*models.SwapRequest, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := sn.begin(); err != nil {
		return nil, err
	}
	defer sn.end()

	created, err := sn.api.CreateSwapRequest(ctx, in.request())
	if err != nil {
		sn.recordError(err)
		return nil, err
	}

	sn.logger.Info("swap request created",
		zap.Uint("swap_id", created.SwapID),
		zap.String("swap_type", string(created.SwapType)))
	sn.InvalidateSwaps()
	return created, nil
}

// ListSwapOpportunities returns the open requests compatible with nurseID in
// server order. No compatible shifts is an empty slice and a nil error.
func (sn *SwapNegotiator) ListSwapOpportunities(ctx context.Context, nurseID uint) ([]models.SwapOpportunity, error) {
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required")
	}

	sn.mu.Lock()
	if cached, ok := sn.opportunities[nurseID]; ok {
		sn.mu.Unlock()
		return append([]models.SwapOpportunity{}, cached...), nil
	}
	sn.mu.Unlock()

	if err := sn.begin(); err != nil {
		return nil, err
	}
	defer sn.end()

	sn.mu.Lock()
	gen := sn.oppGen.next()
	sn.mu.Unlock()

	opps, err := sn.api.ListSwapOpportunities(ctx, nurseID)
	if err != nil {
		sn.recordError(err)
		return nil, err
	}
	if opps == nil {
		opps = []models.SwapOpportunity{}
	}

	sn.mu.Lock()
	if !sn.closed && sn.oppGen.accept(gen) {
		sn.opportunities[nurseID] = opps
		sn.err = nil
	}
	sn.mu.Unlock()
	return append([]models.SwapOpportunity{}, opps...), nil
}

// ListMySwapRequests returns the signed-in nurse's requests, fetching them
// when the cache was invalidated.
func (sn *SwapNegotiator) ListMySwapRequests(ctx context.Context) ([]SwapView, error) {
	sn.mu.Lock()
	stale := sn.mineStale
	sn.mu.Unlock()

	if stale {
		if err := sn.loadMine(ctx); err != nil {
			return nil, err
		}
	}
	return sn.MySwapRequests(), nil
}

func (sn *SwapNegotiator) loadMine(ctx context.Context) error {
	nurseID := sn.identity.NurseID()
	if nurseID == 0 {
		return newValidationError("nurse_id", "is required to list swap requests")
	}
	if err := sn.begin(); err != nil {
		return err
	}
	defer sn.end()

	sn.mu.Lock()
	gen := sn.mineGen.next()
	sn.mu.Unlock()

	reqs, err := sn.api.ListSwapRequests(ctx, nurseID)
	if err != nil {
		sn.recordError(err)
		return err
	}

	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.closed || !sn.mineGen.accept(gen) {
		return nil
	}
	sn.mine = append([]models.SwapRequest{}, reqs...)
	sn.mineStale = false
	sn.err = nil
	return nil
}

// MySwapRequests is the cached list with display statuses at the current
// time.
func (sn *SwapNegotiator) MySwapRequests() []SwapView {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	now := sn.now()
	views := make([]SwapView, len(sn.mine))
	for i, r := range sn.mine {
		views[i] = SwapView{SwapRequest: r, Display: DisplayStatus(r, now)}
	}
	return views
}

// AcceptSwapRequest accepts a request addressed to, or open for, the
// signed-in nurse. A request already terminal locally, including one that
// has expired, is refused without a request.
func (sn *SwapNegotiator) AcceptSwapRequest(ctx context.Context, swapID uint) error {
	if req, ok := sn.lookup(swapID); ok {
		if status := DisplayStatus(req, sn.now()); status.IsTerminal() {
			return newValidationError("status", "swap request is "+string(status))
		}
	}
	if err := sn.begin(); err != nil {
		return err
	}
	defer sn.end()

	if err := sn.api.AcceptSwapRequest(ctx, swapID); err != nil {
		sn.recordError(err)
		return err
	}

	sn.setStatus(swapID, models.SwapStatusApproved)
	sn.logger.Info("swap request accepted", zap.Uint("swap_id", swapID))
	sn.afterMutation()
	return nil
}

// CancelSwapRequest withdraws a request. Cancelling one already cancelled is
// a no-op; an approved or rejected request cannot be cancelled.
func (sn *SwapNegotiator) CancelSwapRequest(ctx context.Context, swapID uint) error {
	if req, ok := sn.lookup(swapID); ok {
		switch req.Status {
		case models.SwapStatusCancelled:
			return nil
		case models.SwapStatusApproved, models.SwapStatusRejected:
			return newValidationError("status", "swap request is "+string(req.Status))
		}
	}
	if err := sn.begin(); err != nil {
		return err
	}
	defer sn.end()

	if err := sn.api.CancelSwapRequest(ctx, swapID); err != nil {
		sn.recordError(err)
		return err
	}

	sn.setStatus(swapID, models.SwapStatusCancelled)
	sn.logger.Info("swap request cancelled", zap.Uint("swap_id", swapID))
	sn.afterMutation()
	return nil
}

// ApplyUpdate replaces a cached request with a newer server copy, such as
// one pushed over the notification channel.
func (sn *SwapNegotiator) ApplyUpdate(req models.SwapRequest) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.closed {
		return
	}
	for i := range sn.mine {
		if sn.mine[i].SwapID == req.SwapID {
			sn.mine[i] = req
			return
		}
	}
	if req.RequestingNurseID == sn.identity.NurseID() {
		sn.mine = append(sn.mine, req)
	}
}

// InvalidateSwaps drops the cached request and opportunity lists.
func (sn *SwapNegotiator) InvalidateSwaps() {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	sn.mineStale = true
	sn.opportunities = make(map[uint][]models.SwapOpportunity)
	sn.oppGen.reset()
}

func (sn *SwapNegotiator) Reset() {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	sn.mine = nil
	sn.mineStale = true
	sn.mineGen.reset()
	sn.opportunities = make(map[uint][]models.SwapOpportunity)
	sn.oppGen.reset()
	sn.err = nil
}

func (sn *SwapNegotiator) Close() {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	sn.closed = true
}

func (sn *SwapNegotiator) Loading() bool {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	return sn.inFlight > 0
}

func (sn *SwapNegotiator) Err() error {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	return sn.err
}

// afterMutation invalidates the swap caches and, since an accepted or
// withdrawn swap changes assignments, the shift catalog.
func (sn *SwapNegotiator) afterMutation() {
	sn.mu.Lock()
	sn.mineStale = true
	sn.opportunities = make(map[uint][]models.SwapOpportunity)
	sn.oppGen.reset()
	sn.err = nil
	sn.mu.Unlock()

	if sn.shifts != nil {
		sn.shifts.InvalidateShifts()
	}
}

func (sn *SwapNegotiator) lookup(swapID uint) (models.SwapRequest, bool) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	for _, r := range sn.mine {
		if r.SwapID == swapID {
			return r, true
		}
	}
	for _, opps := range sn.opportunities {
		for _, o := range opps {
			if o.SwapRequest.SwapID == swapID {
				return o.SwapRequest, true
			}
		}
	}
	return models.SwapRequest{}, false
}

func (sn *SwapNegotiator) setStatus(swapID uint, status models.SwapStatus) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	now := sn.now()
	for i := range sn.mine {
		if sn.mine[i].SwapID == swapID {
			sn.mine[i].Status = status
			sn.mine[i].UpdatedAt = &now
		}
	}
}

func (sn *SwapNegotiator) recordError(err error) {
	sn.mu.Lock()
	defer sn.mu.Unlock()
	if sn.closed {
		return
	}
	sn.err = err
	sn.logger.Warn("swap request failed", zap.Error(err))
}
