package routes

import (
	"time"

	"go.uber.org/zap"

	"shift-staffing-client/auth"
	"shift-staffing-client/models"
	"shift-staffing-client/utils"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password123"

// Seeded identities, handy for tests and the serve-mock command.
const (
	SeedNurseID      uint = 1
	SeedUserID       uint = 101
	SeedOtherNurseID uint = 2
	SeedOtherUserID  uint = 102
)

var seedHome = utils.Location{Latitude: 40.7411, Longitude: -73.9897}

var seedFacilities = map[uint]struct {
	name     string
	location utils.Location
}{
	1: {"Mercy General Hospital", utils.Location{Latitude: 40.7644, Longitude: -73.9545}},
	2: {"Mercy General Hospital", utils.Location{Latitude: 40.7644, Longitude: -73.9545}},
	3: {"St. Anne Children's Center", utils.Location{Latitude: 40.8116, Longitude: -73.9465}},
	4: {"Riverside Medical", utils.Location{Latitude: 40.9126, Longitude: -73.8371}},
}

func (s *MockServer) seed() {
	s.seedDepartments()
	s.seedNurses()
	s.seedShifts()
	s.seedSwaps()
	s.seedNotifications()
	s.logger.Debug("mock data seeded",
		zap.Int("nurses", len(s.nurses)),
		zap.Int("shifts", len(s.shifts)),
		zap.Int("notifications", len(s.notifications)))
}

func (s *MockServer) seedDepartments() {
	departments := []models.Department{
		{DepartmentID: 1, Name: "Intensive Care Unit", Code: "ICU", IsActive: true},
		{DepartmentID: 2, Name: "Emergency", Code: "ER", IsActive: true},
		{DepartmentID: 3, Name: "Pediatrics", Code: "PEDS", IsActive: true},
		{DepartmentID: 4, Name: "Medical Surgical", Code: "MEDSURG", IsActive: true},
	}
	for _, d := range departments {
		s.departments[d.DepartmentID] = d
	}
}

func (s *MockServer) seedNurses() {
	hash, err := auth.HashPassword(SeedPassword)
	if err != nil {
		s.logger.Error("hash seed password", zap.Error(err))
		return
	}

	created := s.now().UTC().AddDate(-2, 0, 0)
	nurses := []models.Nurse{
		{
			WorkerID:        SeedNurseID,
			User:            models.User{UserID: SeedUserID, Name: "Jordan Reyes", Email: "jordan.reyes@example.com", Phone: "555-0101", IsActive: true, CreatedAt: created, UpdatedAt: created},
			EmployeeID:      "RN-1001",
			Specialization:  "Critical Care",
			LicenseNumber:   "NY-RN-448812",
			Certification:   "CCRN",
			HireDate:        "2019-04-01",
			EmploymentType:  models.EmploymentFullTime,
			BaseHourlyRate:  52,
			OvertimeRate:    78,
			MaxHoursPerWeek: 40,
			Preferences:     models.NursePreferences{PrefersDayShifts: true, WeekendAvailability: true},
			SeniorityPoints: 120,
			Skills:          []models.NurseSkill{{SkillID: 1, Name: "Ventilator management", Level: "expert"}},
		},
		{
			WorkerID:        SeedOtherNurseID,
			User:            models.User{UserID: SeedOtherUserID, Name: "Sam Okafor", Email: "sam.okafor@example.com", Phone: "555-0102", IsActive: true, CreatedAt: created, UpdatedAt: created},
			EmployeeID:      "RN-1002",
			Specialization:  "Emergency",
			LicenseNumber:   "NY-RN-551203",
			HireDate:        "2021-09-15",
			EmploymentType:  models.EmploymentPartTime,
			BaseHourlyRate:  49,
			OvertimeRate:    73.5,
			MaxHoursPerWeek: 32,
			Preferences:     models.NursePreferences{PrefersNightShifts: true},
			SeniorityPoints: 60,
		},
		{
			WorkerID:        3,
			User:            models.User{UserID: 103, Name: "Avery Chen", Email: "avery.chen@example.com", Phone: "555-0103", IsActive: true, CreatedAt: created, UpdatedAt: created},
			EmployeeID:      "LPN-2001",
			Specialization:  "Medical Surgical",
			LicenseNumber:   "NY-LPN-220945",
			HireDate:        "2022-01-10",
			EmploymentType:  models.EmploymentPerDiem,
			BaseHourlyRate:  38,
			OvertimeRate:    57,
			MaxHoursPerWeek: 24,
			Preferences:     models.NursePreferences{FloatPoolMember: true},
		},
	}
	for i := range nurses {
		n := nurses[i]
		s.nurses[n.WorkerID] = &n
		s.accounts[n.User.Email] = account{userID: n.User.UserID, nurseID: n.WorkerID, passwordHash: hash}
	}
}

func (s *MockServer) seedShifts() {
	today := utils.StartOfDay(s.now())
	at := func(days, hour int) time.Time {
		return today.AddDate(0, 0, days).Add(time.Duration(hour) * time.Hour)
	}
	rate := func(v float64) *float64 { return &v }

	type seedShift struct {
		dept      uint
		license   string
		shiftType models.ShiftType
		start     time.Time
		hours     int
		required  int
		status    models.ShiftStatus
		urgent    bool
		rate      *float64
		assigned  []uint
	}
	seeds := []seedShift{
		{1, "RN", models.ShiftTypeDay, at(0, 7), 12, 2, models.ShiftStatusScheduled, false, rate(52), []uint{1}},
		{2, "RN", models.ShiftTypeNight, at(1, 19), 12, 3, models.ShiftStatusOpen, true, rate(62.5), []uint{2}},
		{3, "RN", models.ShiftTypeDay, at(2, 7), 8, 2, models.ShiftStatusOpen, false, rate(48), nil},
		{4, "LPN", models.ShiftTypeEvening, at(3, 15), 8, 4, models.ShiftStatusUnderstaffed, false, nil, []uint{3}},
		{1, "RN", models.ShiftTypeDay, at(4, 7), 12, 2, models.ShiftStatusScheduled, false, rate(52), []uint{1}},
		{2, "RN", models.ShiftTypeDay, at(1, 7), 12, 1, models.ShiftStatusFilled, false, rate(50), []uint{3}},
		{3, "CNA", models.ShiftTypeWeekend, at(5, 7), 8, 1, models.ShiftStatusCancelled, false, nil, nil},
		{1, "RN", models.ShiftTypeNight, at(9, 19), 12, 2, models.ShiftStatusOpen, false, rate(58), nil},
	}

	for _, seed := range seeds {
		s.nextShiftID++
		facility := seedFacilities[seed.dept]
		distance := utils.Distance(seedHome, facility.location)
		shift := &models.Shift{
			ShiftID:        s.nextShiftID,
			Department:     s.departments[seed.dept],
			FacilityName:   facility.name,
			LicenseType:    seed.license,
			StartTime:      seed.start,
			EndTime:        seed.start.Add(time.Duration(seed.hours) * time.Hour),
			ShiftType:      seed.shiftType,
			RequiredNurses: seed.required,
			Status:         seed.status,
			Urgent:         seed.urgent,
			HourlyRate:     seed.rate,
			DistanceKm:     &distance,
			CreatedAt:      today.AddDate(0, 0, -7),
			UpdatedAt:      today.AddDate(0, 0, -7),
		}
		for _, nurseID := range seed.assigned {
			s.assignLocked(shift, nurseID)
		}
		s.shifts = append(s.shifts, shift)
	}
}

func (s *MockServer) seedSwaps() {
	now := s.now().UTC()
	s.nextSwapID++
	s.swaps = append(s.swaps, &models.SwapRequest{
		SwapID:            s.nextSwapID,
		RequestingNurseID: SeedOtherNurseID,
		OriginalShiftID:   2,
		SwapType:          models.SwapTypeOpenRequest,
		Reason:            "Family commitment",
		Status:            models.SwapStatusPending,
		ExpiresAt:         now.Add(24 * time.Hour),
		CreatedAt:         now.Add(-time.Hour),
	})
}

func (s *MockServer) seedNotifications() {
	now := s.now().UTC()
	read := now.Add(-2 * time.Hour)
	seeds := []models.Notification{
		{Category: "compliance", Title: "Overtime approval needed", Message: "Your hours this week exceed 40. Confirm overtime with your manager.", Priority: models.PriorityUrgent, ActionRequired: true, SentAt: now.Add(-30 * time.Minute)},
		{Category: "general", Title: "Schedule published", Message: "Next month's schedule is available.", Priority: models.PriorityLow, SentAt: now.Add(-3 * time.Hour)},
		{Category: "swap_request", Title: "Swap approved", Message: "Your swap request was approved.", Priority: models.PriorityHigh, IsRead: true, ReadAt: &read, SentAt: now.Add(-26 * time.Hour)},
		{Category: "shift_update", Title: "Shift time changed", Message: "Your ICU shift now starts at 07:00.", Priority: models.PriorityMedium, SentAt: now.Add(-5 * time.Hour)},
	}
	for _, n := range seeds {
		s.addNotificationLocked(SeedUserID, n)
	}
	s.addNotificationLocked(SeedOtherUserID, models.Notification{
		Category: "general", Title: "Welcome", Message: "Welcome to the staffing app.", Priority: models.PriorityLow, SentAt: now.Add(-time.Hour),
	})
}

// assignLocked adds nurseID to shift and updates its staffing counts.
func (s *MockServer) assignLocked(shift *models.Shift, nurseID uint) models.ShiftAssignment {
	s.nextAssignmentID++
	a := models.ShiftAssignment{
		AssignmentID: s.nextAssignmentID,
		NurseID:      nurseID,
		ShiftID:      shift.ShiftID,
		IsPrimary:    len(shift.Assignments) == 0,
		Status:       "assigned",
		AssignedAt:   s.now().UTC(),
	}
	shift.Assignments = append(shift.Assignments, a)
	shift.AssignedNurses = len(shift.Assignments)
	return a
}
