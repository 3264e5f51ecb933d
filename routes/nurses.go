package routes

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"shift-staffing-client/middleware"
	"shift-staffing-client/models"
)

const availabilityTimeLayout = "15:04:05"

func (s *MockServer) listNurses(c *gin.Context) {
	s.mu.Lock()
	out := make([]models.Nurse, 0, len(s.nurses))
	for _, n := range s.nurses {
		out = append(out, *n)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	respondPage(c, out)
}

func (s *MockServer) getNurse(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	n, found := s.nurses[id]
	var out models.Nurse
	if found {
		out = *n
	}
	s.mu.Unlock()

	if !found {
		respondError(c, http.StatusNotFound, "Nurse not found")
		return
	}
	respondData(c, http.StatusOK, out)
}

// updateNurse applies the non-nil fields of the body to the caller's own
// profile.
func (s *MockServer) updateNurse(c *gin.Context) {
	id, ok := s.ownNurseID(c)
	if !ok {
		return
	}

	var req models.UpdateNurseProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("body", err.Error()))
		return
	}
	if req.MaxHoursPerWeek != nil && (*req.MaxHoursPerWeek < 0 || *req.MaxHoursPerWeek > 80) {
		respondError(c, http.StatusBadRequest, "Validation failed", fieldError("max_hours_per_week", "must be between 0 and 80"))
		return
	}

	s.mu.Lock()
	n, found := s.nurses[id]
	if !found {
		s.mu.Unlock()
		respondError(c, http.StatusNotFound, "Nurse not found")
		return
	}
	if req.Phone != nil {
		n.User.Phone = *req.Phone
	}
	if req.EmergencyContactName != nil {
		n.User.EmergencyContactName = *req.EmergencyContactName
	}
	if req.EmergencyContactPhone != nil {
		n.User.EmergencyContactPhone = *req.EmergencyContactPhone
	}
	if req.Preferences != nil {
		n.Preferences = *req.Preferences
	}
	if req.MaxHoursPerWeek != nil {
		n.MaxHoursPerWeek = *req.MaxHoursPerWeek
	}
	n.User.UpdatedAt = s.now().UTC()
	out := *n
	s.mu.Unlock()

	respondData(c, http.StatusOK, out)
}

func (s *MockServer) getAvailability(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	out := append([]models.NurseAvailability{}, s.availability[id]...)
	s.mu.Unlock()

	respondData(c, http.StatusOK, out)
}

// updateAvailability replaces the caller's weekly availability. Each weekday
// may appear once and times must be HH:MM:SS.
func (s *MockServer) updateAvailability(c *gin.Context) {
	id, ok := s.ownNurseID(c)
	if !ok {
		return
	}

	var entries []models.NurseAvailability
	if err := c.ShouldBindJSON(&entries); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request data", fieldError("body", err.Error()))
		return
	}

	var errs []models.FieldError
	seen := make(map[int]bool)
	for i, e := range entries {
		prefix := "[" + strconv.Itoa(i) + "]"
		if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
			errs = append(errs, fieldError(prefix+".day_of_week", "must be between 0 and 6"))
		} else if seen[e.DayOfWeek] {
			errs = append(errs, fieldError(prefix+".day_of_week", "appears more than once"))
		}
		seen[e.DayOfWeek] = true

		if !e.IsAvailable && e.StartTime == "" && e.EndTime == "" {
			continue
		}
		start, err := time.Parse(availabilityTimeLayout, e.StartTime)
		if err != nil {
			errs = append(errs, fieldError(prefix+".start_time", "must be HH:MM:SS"))
		}
		end, err2 := time.Parse(availabilityTimeLayout, e.EndTime)
		if err2 != nil {
			errs = append(errs, fieldError(prefix+".end_time", "must be HH:MM:SS"))
		}
		if err == nil && err2 == nil && !end.After(start) {
			errs = append(errs, fieldError(prefix+".end_time", "must be after start_time"))
		}
	}
	if len(errs) > 0 {
		respondError(c, http.StatusBadRequest, "Validation failed", errs...)
		return
	}

	s.mu.Lock()
	s.availability[id] = append([]models.NurseAvailability{}, entries...)
	s.mu.Unlock()

	respondMessage(c, "Availability updated")
}

func (s *MockServer) getDepartment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	d, found := s.departments[id]
	s.mu.Unlock()

	if !found {
		respondError(c, http.StatusNotFound, "Department not found")
		return
	}
	respondData(c, http.StatusOK, d)
}

// ownNurseID reads the :id parameter and rejects requests for another
// nurse's record.
func (s *MockServer) ownNurseID(c *gin.Context) (uint, bool) {
	id, ok := paramID(c)
	if !ok {
		return 0, false
	}
	if id != c.GetUint(middleware.ContextNurseID) {
		respondError(c, http.StatusForbidden, "Cannot modify another nurse's record")
		return 0, false
	}
	return id, true
}
