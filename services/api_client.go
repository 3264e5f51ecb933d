package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shift-staffing-client/config"
	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
)

// maxErrorBody caps how much of a failed response is read for the message.
const maxErrorBody = 64 << 10

// APIClient is the REST client for the remote shift service. Every call is
// bounded by the configured timeout and returns the typed errors of this
// package.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	logger     *zap.Logger
}

// ClientOption customises NewAPIClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	transport http.RoundTripper
}

// WithTransport sets the base transport wrapped by the auth, rate limit and
// logging layers.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.transport = rt }
}

func NewAPIClient(cfg config.APIConfig, session *Session, logger *zap.Logger, opts ...ClientOption) *APIClient {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var tokens middleware.TokenSource
	if session != nil {
		tokens = session
	}

	return &APIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: middleware.NewTransport(middleware.TransportOptions{
				Base:      o.transport,
				Tokens:    tokens,
				RateLimit: cfg.RateLimit,
				RateBurst: cfg.RateBurst,
				Logger:    logger,
			}),
		},
		session: session,
		logger:  logger,
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	op := method + " " + path

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.errorFromResponse(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return &NetworkError{Op: op, Timeout: true, Err: err}
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *APIClient) errorFromResponse(resp *http.Response) error {
	var apiErr models.APIError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &apiErr)
	}

	serr := &ServerError{
		Status:    resp.StatusCode,
		Message:   apiErr.Message,
		Errors:    apiErr.Errors,
		RequestID: apiErr.RequestID,
	}
	if serr.RequestID == "" && resp.Request != nil {
		serr.RequestID = resp.Request.Header.Get(middleware.RequestIDHeader)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if c.session != nil {
			c.session.Invalidate()
		}
		c.logger.Warn("session rejected by server", zap.String("request_id", serr.RequestID))
	case http.StatusConflict:
		return &ConflictError{ServerError: serr}
	}
	return serr
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func idPath(format string, id uint) string {
	return fmt.Sprintf(format, id)
}

// ShiftQuery filters GET /shifts. Zero fields are omitted.
type ShiftQuery struct {
	NurseID      uint
	DepartmentID uint
	StartDate    string // YYYY-MM-DD
	EndDate      string
	Status       models.ShiftStatus
	ShiftType    models.ShiftType
	Page         int
	Limit        int
}

func (q ShiftQuery) values() url.Values {
	v := url.Values{}
	setUint(v, "nurse_id", q.NurseID)
	setUint(v, "department_id", q.DepartmentID)
	setString(v, "start_date", q.StartDate)
	setString(v, "end_date", q.EndDate)
	setString(v, "status", string(q.Status))
	setString(v, "shift_type", string(q.ShiftType))
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	return v
}

// NotificationQuery filters GET /notifications.
type NotificationQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
	Priority   models.NotificationPriority
	Category   string
}

func (q NotificationQuery) values() url.Values {
	v := url.Values{}
	setInt(v, "page", q.Page)
	setInt(v, "limit", q.Limit)
	if q.UnreadOnly {
		v.Set("unread_only", "true")
	}
	setString(v, "priority", string(q.Priority))
	setString(v, "category", q.Category)
	return v
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setInt(v url.Values, key string, value int) {
	if value > 0 {
		v.Set(key, strconv.Itoa(value))
	}
}

func setUint(v url.Values, key string, value uint) {
	if value > 0 {
		v.Set(key, strconv.FormatUint(uint64(value), 10))
	}
}

// Login exchanges credentials for a bearer token. It does not touch the
// session; callers decide whether to adopt the token.
func (c *APIClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.Envelope[models.LoginResponse]
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *APIClient) ListShifts(ctx context.Context, q ShiftQuery) (*models.Page[models.Shift], error) {
	var page models.Page[models.Shift]
	if err := c.do(ctx, http.MethodGet, "/shifts", q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) GetShift(ctx context.Context, shiftID uint) (*models.Shift, error) {
	var resp models.Envelope[models.Shift]
	if err := c.do(ctx, http.MethodGet, idPath("/shifts/%d", shiftID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ApplyRequest is the body of POST /shifts/{id}/apply.
type ApplyRequest struct {
	NurseID uint   `json:"nurse_id"`
	Notes   string `json:"notes,omitempty"`
}

// ApplyForShift creates a booking. The returned booking may be nil when the
// server only acknowledges the application.
func (c *APIClient) ApplyForShift(ctx context.Context, shiftID uint, req ApplyRequest) (*models.Booking, error) {
	var resp models.Envelope[*models.Booking]
	if err := c.do(ctx, http.MethodPost, idPath("/shifts/%d/apply", shiftID), nil, req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *APIClient) ListBookings(ctx context.Context, nurseID uint) ([]models.Booking, error) {
	var page models.Page[models.Booking]
	q := url.Values{}
	setUint(q, "nurse_id", nurseID)
	if err := c.do(ctx, http.MethodGet, "/bookings", q, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *APIClient) CancelBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	var resp models.Envelope[*models.Booking]
	path := "/bookings/" + url.PathEscape(bookingID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *APIClient) GetAvailability(ctx context.Context, nurseID uint) ([]models.NurseAvailability, error) {
	var resp models.Envelope[[]models.NurseAvailability]
	if err := c.do(ctx, http.MethodGet, idPath("/nurses/%d/availability", nurseID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateAvailability replaces the weekly availability; the body is the bare
// array of day entries.
func (c *APIClient) UpdateAvailability(ctx context.Context, nurseID uint, entries []models.NurseAvailability) error {
	return c.do(ctx, http.MethodPut, idPath("/nurses/%d/availability", nurseID), nil, entries, nil)
}

func (c *APIClient) ClockIn(ctx context.Context, req models.ClockInRequest) (*models.ClockInResponse, error) {
	var resp models.Envelope[models.ClockInResponse]
	if err := c.do(ctx, http.MethodPost, "/attendance/clock-in", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *APIClient) ClockOut(ctx context.Context, req models.ClockOutRequest) (*models.ClockOutResponse, error) {
	var resp models.Envelope[models.ClockOutResponse]
	if err := c.do(ctx, http.MethodPost, "/attendance/clock-out", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *APIClient) ListAttendance(ctx context.Context, nurseID uint) ([]models.AttendanceRecord, error) {
	var page models.Page[models.AttendanceRecord]
	q := url.Values{}
	setUint(q, "nurse_id", nurseID)
	if err := c.do(ctx, http.MethodGet, "/attendance", q, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *APIClient) ListSwapRequests(ctx context.Context, nurseID uint) ([]models.SwapRequest, error) {
	var page models.Page[models.SwapRequest]
	q := url.Values{}
	setUint(q, "nurse_id", nurseID)
	if err := c.do(ctx, http.MethodGet, "/swap-requests", q, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *APIClient) CreateSwapRequest(ctx context.Context, req models.CreateSwapRequest) (*models.SwapRequest, error) {
	var resp models.Envelope[models.SwapRequest]
	if err := c.do(ctx, http.MethodPost, "/swap-requests", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *APIClient) AcceptSwapRequest(ctx context.Context, swapID uint) error {
	return c.do(ctx, http.MethodPost, idPath("/swap-requests/%d/accept", swapID), nil, nil, nil)
}

func (c *APIClient) CancelSwapRequest(ctx context.Context, swapID uint) error {
	return c.do(ctx, http.MethodPost, idPath("/swap-requests/%d/cancel", swapID), nil, nil, nil)
}

func (c *APIClient) ListSwapOpportunities(ctx context.Context, nurseID uint) ([]models.SwapOpportunity, error) {
	var resp models.Envelope[[]models.SwapOpportunity]
	q := url.Values{}
	setUint(q, "nurse_id", nurseID)
	if err := c.do(ctx, http.MethodGet, "/swap-requests/opportunities", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *APIClient) ListNotifications(ctx context.Context, q NotificationQuery) (*models.Page[models.Notification], error) {
	var page models.Page[models.Notification]
	if err := c.do(ctx, http.MethodGet, "/notifications", q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) MarkNotificationRead(ctx context.Context, notificationID uint) error {
	return c.do(ctx, http.MethodPost, idPath("/notifications/%d/read", notificationID), nil, nil, nil)
}

func (c *APIClient) MarkAllNotificationsRead(ctx context.Context, req models.MarkAllReadRequest) error {
	return c.do(ctx, http.MethodPost, "/notifications/read-all", nil, req, nil)
}

func (c *APIClient) ListNurses(ctx context.Context) ([]models.Nurse, error) {
	var page models.Page[models.Nurse]
	if err := c.do(ctx, http.MethodGet, "/nurses", nil, nil, &page); err != nil {
		return nil, err
	}
	return page.Data, nil
}

func (c *APIClient) GetNurse(ctx context.Context, nurseID uint) (*models.Nurse, error) {
	var resp models.Envelope[models.Nurse]
	if err := c.do(ctx, http.MethodGet, idPath("/nurses/%d", nurseID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *APIClient) UpdateNurse(ctx context.Context, nurseID uint, req models.UpdateNurseProfileRequest) (*models.Nurse, error) {
	var resp models.Envelope[models.Nurse]
	if err := c.do(ctx, http.MethodPut, idPath("/nurses/%d", nurseID), nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *APIClient) GetDepartment(ctx context.Context, departmentID uint) (*models.Department, error) {
	var resp models.Envelope[models.Department]
	if err := c.do(ctx, http.MethodGet, idPath("/departments/%d", departmentID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
