package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"shift-staffing-client/models"
	"shift-staffing-client/utils"
)

// Weekdays lists the editor's days, Monday first.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// weekdayNumbers maps editor day keys onto the server's day_of_week, which
// counts from Sunday = 0. This table is the only place the two conventions
// meet.
var weekdayNumbers = map[string]int{
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
	"sunday":    0,
}

// DayOfWeek returns the server day number for an editor day key.
func DayOfWeek(day string) (int, bool) {
	n, ok := weekdayNumbers[day]
	return n, ok
}

// WeekdayName is the inverse of DayOfWeek.
func WeekdayName(dayOfWeek int) (string, bool) {
	for name, n := range weekdayNumbers {
		if n == dayOfWeek {
			return name, true
		}
	}
	return "", false
}

// DaySchedule is one day of the weekly availability editor. Times may be
// HH:MM or HH:MM:SS.
type DaySchedule struct {
	IsAvailable bool   `json:"is_available"`
	IsPreferred bool   `json:"is_preferred"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// WeeklyAvailability is the editor state keyed by day name.
type WeeklyAvailability struct {
	Days           map[string]DaySchedule
	EffectiveFrom  string // YYYY-MM-DD
	EffectiveUntil string
}

// BuildAvailabilityPayload validates w and produces the seven day entries
// the server expects, Monday first, with times normalised to HH:MM:SS. Days
// missing from w are sent as unavailable.
func BuildAvailabilityPayload(w WeeklyAvailability) ([]models.NurseAvailability, error) {
	if w.EffectiveFrom == "" || w.EffectiveUntil == "" {
		return nil, newValidationError("effective_from", "and effective_until are both required (YYYY-MM-DD)")
	}
	from, err := utils.ParseDate(w.EffectiveFrom)
	if err != nil {
		return nil, newValidationError("effective_from", err.Error())
	}
	until, err := utils.ParseDate(w.EffectiveUntil)
	if err != nil {
		return nil, newValidationError("effective_until", err.Error())
	}
	if until.Before(from) {
		return nil, newValidationError("effective_until", "must not be before effective_from")
	}
	for day := range w.Days {
		if _, ok := weekdayNumbers[day]; !ok {
			return nil, newValidationError("day", "unknown weekday "+day)
		}
	}

	entries := make([]models.NurseAvailability, 0, len(Weekdays))
	for _, day := range Weekdays {
		d := w.Days[day]
		start, err := utils.NormalizeClock(d.StartTime)
		if err != nil {
			return nil, newValidationError(day+".start_time", err.Error())
		}
		end, err := utils.NormalizeClock(d.EndTime)
		if err != nil {
			return nil, newValidationError(day+".end_time", err.Error())
		}
		if d.IsAvailable && (start == "" || end == "") {
			return nil, newValidationError(day, "needs start and end times when available")
		}
		entries = append(entries, models.NurseAvailability{
			DayOfWeek:      weekdayNumbers[day],
			StartTime:      start,
			EndTime:        end,
			IsAvailable:    d.IsAvailable,
			IsPreferred:    d.IsPreferred,
			EffectiveFrom:  w.EffectiveFrom,
			EffectiveUntil: w.EffectiveUntil,
		})
	}
	return entries, nil
}

// ParseAvailability turns server entries back into editor state.
func ParseAvailability(entries []models.NurseAvailability) WeeklyAvailability {
	w := WeeklyAvailability{Days: make(map[string]DaySchedule, len(entries))}
	for _, e := range entries {
		name, ok := WeekdayName(e.DayOfWeek)
		if !ok {
			continue
		}
		w.Days[name] = DaySchedule{
			IsAvailable: e.IsAvailable,
			IsPreferred: e.IsPreferred,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
		}
		if w.EffectiveFrom == "" {
			w.EffectiveFrom = e.EffectiveFrom
			w.EffectiveUntil = e.EffectiveUntil
		}
	}
	return w
}

// AvailabilityService reads and replaces the nurse's weekly availability.
type AvailabilityService struct {
	componentBase

	api      AvailabilityAPI
	identity Identity

	mu      sync.Mutex
	entries []models.NurseAvailability
	stale   bool
}

func NewAvailabilityService(api AvailabilityAPI, identity Identity, opts ...Option) *AvailabilityService {
	return &AvailabilityService{
		componentBase: newComponentBase("availability", opts),
		api:           api,
		identity:      identity,
		stale:         true,
	}
}

// Get returns the weekly entries, fetching them when not cached.
func (s *AvailabilityService) Get(ctx context.Context) ([]models.NurseAvailability, error) {
	s.mu.Lock()
	if !s.stale {
		out := append([]models.NurseAvailability{}, s.entries...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	nurseID := s.identity.NurseID()
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required")
	}
	entries, err := s.api.GetAvailability(ctx, nurseID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries = entries
	s.stale = false
	s.mu.Unlock()
	return append([]models.NurseAvailability{}, entries...), nil
}

// Update validates w locally and replaces the availability on the server.
func (s *AvailabilityService) Update(ctx context.Context, w WeeklyAvailability) ([]models.NurseAvailability, error) {
	nurseID := s.identity.NurseID()
	if nurseID == 0 {
		return nil, newValidationError("nurse_id", "is required")
	}
	entries, err := BuildAvailabilityPayload(w)
	if err != nil {
		return nil, err
	}

	if err := s.api.UpdateAvailability(ctx, nurseID, entries); err != nil {
		s.logger.Warn("availability update failed", zap.Error(err))
		return nil, err
	}

	s.Invalidate()
	s.logger.Info("availability updated", zap.Uint("nurse_id", nurseID))
	return entries, nil
}

func (s *AvailabilityService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = true
}

func (s *AvailabilityService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.stale = true
}
