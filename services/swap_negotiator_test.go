package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-staffing-client/models"
	"shift-staffing-client/routes"
)

type fakeSwapAPI struct {
	mu            sync.Mutex
	mine          []models.SwapRequest
	opportunities []models.SwapOpportunity
	created       []models.CreateSwapRequest
	accepted      []uint
	cancelled     []uint
	oppCalls      int
	// per-call overrides for ListSwapOpportunities, keyed by call number
	oppGates   map[int]chan struct{}
	oppResults map[int][]models.SwapOpportunity
}

func (f *fakeSwapAPI) ListSwapRequests(context.Context, uint) ([]models.SwapRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SwapRequest{}, f.mine...), nil
}

func (f *fakeSwapAPI) CreateSwapRequest(_ context.Context, req models.CreateSwapRequest) (*models.SwapRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	return &models.SwapRequest{SwapID: uint(len(f.created)), OriginalShiftID: req.OriginalShiftID, SwapType: req.SwapType, Status: models.SwapStatusPending}, nil
}

func (f *fakeSwapAPI) AcceptSwapRequest(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, id)
	return nil
}

func (f *fakeSwapAPI) CancelSwapRequest(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeSwapAPI) ListSwapOpportunities(ctx context.Context, _ uint) ([]models.SwapOpportunity, error) {
	f.mu.Lock()
	f.oppCalls++
	call := f.oppCalls
	gate := f.oppGates[call]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if res, ok := f.oppResults[call]; ok {
		return res, nil
	}
	return f.opportunities, nil
}

func (f *fakeSwapAPI) opportunityCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.oppCalls
}

type invalidationCounter struct {
	mu    sync.Mutex
	count int
}

func (c *invalidationCounter) InvalidateShifts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *invalidationCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func TestDisplayStatusExpiresAndServerDecisionWins(t *testing.T) {
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	req := models.SwapRequest{
		SwapID:    7,
		Status:    models.SwapStatusPending,
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}

	assert.Equal(t, models.SwapStatusPending, DisplayStatus(req, created.Add(30*time.Minute)))
	assert.Equal(t, models.SwapStatusExpired, DisplayStatus(req, created.Add(2*time.Hour)))
	assert.Equal(t, models.SwapStatusPending, req.Status)

	clock := newFixedClock(created.Add(2 * time.Hour))
	api := &fakeSwapAPI{mine: []models.SwapRequest{req}}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, nil, WithClock(clock.Now))
	views, err := sn.ListMySwapRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.SwapStatusExpired, views[0].Display)

	clock.Set(created.Add(3 * time.Hour))
	approved := req
	approved.Status = models.SwapStatusApproved
	sn.ApplyUpdate(approved)
	views = sn.MySwapRequests()
	assert.Equal(t, models.SwapStatusApproved, views[0].Display)
}

func TestSwapInputValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    SwapInput
		field string
	}{
		{"missing shift", SwapInput{SwapType: models.SwapTypeOpenRequest, Reason: "x"}, "original_shift_id"},
		{"full shift without target", SwapInput{OriginalShiftID: 1, SwapType: models.SwapTypeFullShift, Reason: "x", RequestedShiftID: ptr(uint(2))}, "target_nurse_id"},
		{"full shift without requested shift", SwapInput{OriginalShiftID: 1, SwapType: models.SwapTypeFullShift, Reason: "x", TargetNurseID: ptr(uint(2))}, "requested_shift_id"},
		{"unknown type", SwapInput{OriginalShiftID: 1, SwapType: "trade", Reason: "x"}, "swap_type"},
		{"blank reason", SwapInput{OriginalShiftID: 1, SwapType: models.SwapTypeOpenRequest, Reason: "  "}, "reason"},
		{"negative expiry", SwapInput{OriginalShiftID: 1, SwapType: models.SwapTypeOpenRequest, Reason: "x", ExpiresInHours: -1}, "expires_in_hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, SwapInput{OriginalShiftID: 1, SwapType: models.SwapTypeOpenRequest, Reason: "Appointment"}.Validate())
}

func TestOpenRequestDropsCounterpartAndDefaultsExpiry(t *testing.T) {
	api := &fakeSwapAPI{}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, nil)

	_, err := sn.CreateSwapRequest(context.Background(), SwapInput{
		OriginalShiftID: 1,
		SwapType:        models.SwapTypeOpenRequest,
		Reason:          " Appointment ",
		TargetNurseID:   ptr(uint(2)),
	})
	require.NoError(t, err)
	require.Len(t, api.created, 1)
	assert.Nil(t, api.created[0].TargetNurseID)
	assert.Equal(t, DefaultSwapExpiryHours, api.created[0].ExpiresInHours)
	assert.Equal(t, "Appointment", api.created[0].Reason)
}

func TestAcceptRefusesExpiredRequestLocally(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	api := &fakeSwapAPI{opportunities: []models.SwapOpportunity{
		{SwapRequest: models.SwapRequest{SwapID: 4, Status: models.SwapStatusPending, ExpiresAt: now.Add(-time.Minute)}},
	}}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, nil, WithClock(func() time.Time { return now }))

	_, err := sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, IsValidation(sn.AcceptSwapRequest(context.Background(), 4)))
	assert.Empty(t, api.accepted)
}

func TestAcceptInvalidatesShifts(t *testing.T) {
	shifts := &invalidationCounter{}
	api := &fakeSwapAPI{opportunities: []models.SwapOpportunity{
		{SwapRequest: models.SwapRequest{SwapID: 4, Status: models.SwapStatusPending, ExpiresAt: time.Now().Add(time.Hour)}},
	}}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, shifts)

	_, err := sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	require.NoError(t, sn.AcceptSwapRequest(context.Background(), 4))
	assert.Equal(t, []uint{4}, api.accepted)
	assert.Equal(t, 1, shifts.value())

	_, err = sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, api.oppCalls)
}

func TestOpportunitiesKeepServerOrder(t *testing.T) {
	api := &fakeSwapAPI{opportunities: []models.SwapOpportunity{
		{SwapRequest: models.SwapRequest{SwapID: 3}, CompatibilityScore: 0.2},
		{SwapRequest: models.SwapRequest{SwapID: 1}, CompatibilityScore: 0.9},
		{SwapRequest: models.SwapRequest{SwapID: 2}, CompatibilityScore: 0.5},
	}}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, nil)

	opps, err := sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	ids := []uint{opps[0].SwapRequest.SwapID, opps[1].SwapRequest.SwapID, opps[2].SwapRequest.SwapID}
	assert.Equal(t, []uint{3, 1, 2}, ids)

	api.opportunities = nil
	sn.InvalidateSwaps()
	opps, err = sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, opps)
	assert.Empty(t, opps)
}

func TestOlderOpportunitiesResponseDoesNotOverwriteNewer(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeSwapAPI{
		oppGates: map[int]chan struct{}{1: gate},
		oppResults: map[int][]models.SwapOpportunity{
			1: {{SwapRequest: models.SwapRequest{SwapID: 1}}},
			2: {{SwapRequest: models.SwapRequest{SwapID: 2}}},
		},
	}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, nil)
	defer sn.Close()

	older := make(chan error, 1)
	go func() {
		_, err := sn.ListSwapOpportunities(context.Background(), 1)
		older <- err
	}()
	require.Eventually(t, func() bool { return api.opportunityCalls() == 1 }, time.Second, 5*time.Millisecond)

	newer, err := sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	assert.Equal(t, uint(2), newer[0].SwapRequest.SwapID)

	close(gate)
	require.NoError(t, <-older)

	cached, err := sn.ListSwapOpportunities(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, uint(2), cached[0].SwapRequest.SwapID)
	assert.Equal(t, 2, api.opportunityCalls())
}

func TestCancelSwapTwiceIsNoop(t *testing.T) {
	api := &fakeSwapAPI{mine: []models.SwapRequest{
		{SwapID: 5, RequestingNurseID: 1, Status: models.SwapStatusPending, ExpiresAt: time.Now().Add(time.Hour)},
		{SwapID: 6, RequestingNurseID: 1, Status: models.SwapStatusApproved},
	}}
	sn := NewSwapNegotiator(api, staticIdentity{nurseID: 1}, nil)
	_, err := sn.ListMySwapRequests(context.Background())
	require.NoError(t, err)

	require.NoError(t, sn.CancelSwapRequest(context.Background(), 5))
	api.mine[0].Status = models.SwapStatusCancelled
	_, err = sn.ListMySwapRequests(context.Background())
	require.NoError(t, err)
	require.NoError(t, sn.CancelSwapRequest(context.Background(), 5))
	assert.Equal(t, []uint{5}, api.cancelled)

	assert.True(t, IsValidation(sn.CancelSwapRequest(context.Background(), 6)))
}

func TestClosedNegotiatorRejectsCalls(t *testing.T) {
	sn := NewSwapNegotiator(&fakeSwapAPI{}, staticIdentity{nurseID: 1}, nil)
	sn.Close()

	_, err := sn.CreateSwapRequest(context.Background(), SwapInput{OriginalShiftID: 1, SwapType: models.SwapTypeOpenRequest, Reason: "x"})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, sn.AcceptSwapRequest(context.Background(), 1), ErrClosed)
	sn.ApplyUpdate(models.SwapRequest{SwapID: 1, RequestingNurseID: 1})
	assert.Empty(t, sn.MySwapRequests())
}

func TestInvalidFullShiftSwapSendsNothing(t *testing.T) {
	h := newHarness(t)
	before := h.calls()

	_, err := h.engine.Swaps.CreateSwapRequest(context.Background(), SwapInput{
		OriginalShiftID: 1,
		SwapType:        models.SwapTypeFullShift,
		Reason:          "Childcare",
	})
	require.True(t, IsValidation(err))
	assert.Equal(t, before, h.calls())
}

func TestSwapLifecycleAgainstMockService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	swaps := h.engine.Swaps

	created, err := swaps.CreateSwapRequest(ctx, SwapInput{
		OriginalShiftID: 1,
		SwapType:        models.SwapTypeOpenRequest,
		Reason:          "Childcare",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusPending, created.Status)

	mine, err := swaps.ListMySwapRequests(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	opps, err := swaps.ListSwapOpportunities(ctx, routes.SeedNurseID)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, routes.SeedOtherNurseID, opps[0].SwapRequest.RequestingNurseID)

	require.NoError(t, swaps.AcceptSwapRequest(ctx, opps[0].SwapRequest.SwapID))
	shiftsStale, scheduleStale := h.engine.Shifts.Stale()
	assert.True(t, shiftsStale)
	assert.True(t, scheduleStale)

	require.NoError(t, swaps.CancelSwapRequest(ctx, created.SwapID))
	require.NoError(t, swaps.CancelSwapRequest(ctx, created.SwapID))
	mine, err = swaps.ListMySwapRequests(ctx)
	require.NoError(t, err)
	for _, v := range mine {
		if v.SwapID == created.SwapID {
			assert.Equal(t, models.SwapStatusCancelled, v.Display)
		}
	}
}
