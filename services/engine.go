package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"shift-staffing-client/config"
	"shift-staffing-client/database"
	"shift-staffing-client/models"
)

// Engine wires the session, the REST client, the local store and every
// component into one signed-in client.
type Engine struct {
	Session       *Session
	Client        *APIClient
	Store         database.Store
	Profile       *ProfileService
	Shifts        *ShiftCatalog
	Swaps         *SwapNegotiator
	Notifications *NotificationCenter
	Dashboard     *DashboardAggregator
	Availability  *AvailabilityService
	Attendance    *AttendanceService

	logger *zap.Logger
}

// NewEngine builds an engine from cfg. store may be nil, in which case
// nothing is persisted between runs.
func NewEngine(cfg *config.Config, store database.Store, logger *zap.Logger, opts ...ClientOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = database.NewMemoryStore()
	}

	session := NewSession(cfg.Session.Token, cfg.Session.UserID, cfg.Session.NurseID)
	client := NewAPIClient(cfg.API, session, logger.Named("api"), opts...)
	componentOpts := []Option{WithLogger(logger)}

	profile := NewProfileService(client, session, componentOpts...)
	shifts := NewShiftCatalog(client, profile, session, store, componentOpts...)
	notifications := NewNotificationCenter(client, session, componentOpts...)
	dashboard := NewDashboardAggregator(shifts, notifications, profile, cfg.Dashboard, componentOpts...)

	e := &Engine{
		Session:       session,
		Client:        client,
		Store:         store,
		Profile:       profile,
		Shifts:        shifts,
		Swaps:         NewSwapNegotiator(client, session, shifts, componentOpts...),
		Notifications: notifications,
		Dashboard:     dashboard,
		Availability:  NewAvailabilityService(client, session, componentOpts...),
		Attendance:    NewAttendanceService(client, session, dashboard, componentOpts...),
		logger:        logger,
	}

	session.OnInvalidate(func() {
		e.logger.Warn("session invalidated, sign in again to refresh data",
			zap.Uint("nurse_id", session.NurseID()))
	})
	return e
}

// Login exchanges credentials for a token, adopts it, and restores the
// nurse's persisted state. State from a previous nurse is dropped first.
func (e *Engine) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, newValidationError("email", "is required")
	}
	if password == "" {
		return nil, newValidationError("password", "is required")
	}

	resp, err := e.Client.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("login: response carried no token")
	}

	if previous := e.Session.NurseID(); previous != 0 && previous != resp.NurseID {
		e.resetMemory()
	}
	e.Session.SetToken(resp.Token, resp.User.UserID, resp.NurseID)
	e.logger.Info("signed in", zap.Uint("user_id", e.Session.UserID()), zap.Uint("nurse_id", e.Session.NurseID()))

	if err := e.Restore(ctx); err != nil {
		e.logger.Warn("restore after login failed", zap.Error(err))
	}
	return resp, nil
}

// Restore loads the persisted state for the current nurse.
func (e *Engine) Restore(ctx context.Context) error {
	if e.Session.NurseID() == 0 {
		return nil
	}
	return e.Shifts.Restore(ctx)
}

// Logout discards every cached entity and the persisted records of the
// signed-in nurse, then forgets the credentials.
func (e *Engine) Logout(ctx context.Context) error {
	var errs []error
	if err := e.Shifts.Reset(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reset catalog: %w", err))
	}
	e.resetMemory()

	if nurseID := e.Session.NurseID(); nurseID != 0 {
		if err := e.Store.Scoped(nurseScope(nurseID)).Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear store: %w", err))
		}
	}
	e.Session.Clear()
	e.logger.Info("signed out")
	return errors.Join(errs...)
}

func (e *Engine) resetMemory() {
	e.Shifts.discard()
	e.Swaps.Reset()
	e.Notifications.Reset()
	e.Profile.Reset()
	e.Availability.Reset()
	e.Dashboard.Reset()
}

// Close stops every component. Responses still in flight are discarded.
func (e *Engine) Close() {
	e.Shifts.Close()
	e.Swaps.Close()
	e.Notifications.Close()
	e.Dashboard.Close()
}
