package services

import (
	"strings"

	"shift-staffing-client/models"
)

// DefaultMaxDistance is the search radius, in kilometres, offered to users.
// Cleared filters carry no distance bound so that they accept every shift.
const DefaultMaxDistance = 50.0

// DateRange bounds the shift date, inclusive. Empty ends are open.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Filters is the catalog's active predicate set. Dimensions are ANDed;
// values inside LicenseTypes or Departments are ORed. A nil IsUrgent accepts
// both and a zero MaxDistance is unbounded.
type Filters struct {
	LicenseTypes []string   `json:"licenseType"`
	Departments  []string   `json:"department"`
	MaxDistance  float64    `json:"distance"`
	DateRange    *DateRange `json:"dateRange"`
	IsUrgent     *bool      `json:"isUrgent"`
}

func DefaultFilters() Filters {
	return Filters{
		LicenseTypes: []string{},
		Departments:  []string{},
	}
}

func (f Filters) clone() Filters {
	out := f
	out.LicenseTypes = append([]string{}, f.LicenseTypes...)
	out.Departments = append([]string{}, f.Departments...)
	if f.DateRange != nil {
		dr := *f.DateRange
		out.DateRange = &dr
	}
	if f.IsUrgent != nil {
		u := *f.IsUrgent
		out.IsUrgent = &u
	}
	return out
}

// Match reports whether s satisfies every active dimension.
func (f Filters) Match(s models.Shift) bool {
	if len(f.LicenseTypes) > 0 && !containsFold(f.LicenseTypes, s.LicenseType) {
		return false
	}
	if len(f.Departments) > 0 &&
		!containsFold(f.Departments, s.Department.Name) &&
		!containsFold(f.Departments, s.Department.Code) {
		return false
	}
	if f.IsUrgent != nil && s.IsUrgent() != *f.IsUrgent {
		return false
	}
	// a shift without a distance never exceeds the bound
	if f.MaxDistance > 0 && s.DistanceKm != nil && *s.DistanceKm > f.MaxDistance {
		return false
	}
	if f.DateRange != nil {
		day := s.ShiftDate()
		if f.DateRange.Start != "" && day < f.DateRange.Start {
			return false
		}
		if f.DateRange.End != "" && day > f.DateRange.End {
			return false
		}
	}
	return true
}

// matchesSearch reports whether the lower-cased query occurs in the title,
// facility name or department name.
func matchesSearch(s models.Shift, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Title()), query) ||
		strings.Contains(strings.ToLower(s.FacilityName), query) ||
		strings.Contains(strings.ToLower(s.Department.Name), query)
}

// filterShifts derives a new slice; the source is never modified.
func filterShifts(shifts []models.Shift, f Filters, search string) []models.Shift {
	query := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Shift, 0, len(shifts))
	for _, s := range shifts {
		if matchesSearch(s, query) && f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// Bool returns a pointer to b, for Filters.IsUrgent.
func Bool(b bool) *bool { return &b }
