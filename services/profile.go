package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shift-staffing-client/models"
)

// ProfileService caches the signed-in nurse and department lookups.
type ProfileService struct {
	componentBase

	api      ProfileAPI
	identity Identity

	mu          sync.Mutex
	nurse       *models.Nurse
	stale       bool
	gen         generation
	departments map[uint]models.Department
	err         error
	inFlight    int
}

func NewProfileService(api ProfileAPI, identity Identity, opts ...Option) *ProfileService {
	return &ProfileService{
		componentBase: newComponentBase("profile", opts),
		api:           api,
		identity:      identity,
		stale:         true,
		departments:   make(map[uint]models.Department),
	}
}

// Nurse returns the signed-in nurse, fetching when not cached.
func (p *ProfileService) Nurse(ctx context.Context) (*models.Nurse, error) {
	p.mu.Lock()
	if !p.stale && p.nurse != nil {
		n := *p.nurse
		p.mu.Unlock()
		return &n, nil
	}
	gen := p.gen.next()
	p.inFlight++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight--
		p.mu.Unlock()
	}()

	nurseID := p.identity.NurseID()
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required")
	}
	nurse, err := p.api.GetNurse(ctx, nurseID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		if p.gen.current(gen) {
			p.err = err
		}
		return nil, err
	}
	if p.gen.accept(gen) {
		p.nurse = nurse
		p.stale = false
		p.err = nil
	}
	n := *nurse
	return &n, nil
}

// CachedNurse returns the cached profile without fetching.
func (p *ProfileService) CachedNurse() (*models.Nurse, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nurse == nil {
		return nil, false
	}
	n := *p.nurse
	return &n, true
}

// UpdateNurse changes editable profile fields and caches the result.
func (p *ProfileService) UpdateNurse(ctx context.Context, req models.UpdateNurseProfileRequest) (*models.Nurse, error) {
	nurseID := p.identity.NurseID()
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required")
	}
	if req.MaxHoursPerWeek != nil && (*req.MaxHoursPerWeek <= 0 || *req.MaxHoursPerWeek > 168) {
		return nil, newValidationError("max_hours_per_week", "must be between 1 and 168")
	}

	nurse, err := p.api.UpdateNurse(ctx, nurseID, req)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.gen.reset()
	p.nurse = nurse
	p.stale = false
	p.mu.Unlock()

	p.logger.Info("profile updated", zap.Uint("nurse_id", nurseID))
	n := *nurse
	return &n, nil
}

func (p *ProfileService) ListNurses(ctx context.Context) ([]models.Nurse, error) {
	return p.api.ListNurses(ctx)
}

// Department resolves a department, caching successful lookups for the
// session.
func (p *ProfileService) Department(ctx context.Context, departmentID uint) (*models.Department, error) {
	p.mu.Lock()
	if d, ok := p.departments[departmentID]; ok {
		p.mu.Unlock()
		return &d, nil
	}
	p.mu.Unlock()

	d, err := p.api.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.departments[departmentID] = *d
	p.mu.Unlock()
	out := *d
	return &out, nil
}

// InvalidateProfile forces the next Nurse call to refetch.
func (p *ProfileService) InvalidateProfile() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stale = true
}

func (p *ProfileService) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight > 0
}

func (p *ProfileService) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *ProfileService) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nurse = nil
	p.stale = true
	p.gen.reset()
	p.departments = make(map[uint]models.Department)
	p.err = nil
}
