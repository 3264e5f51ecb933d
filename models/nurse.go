package models

import "time"

type User struct {
	UserID                uint      `json:"user_id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	Phone                 string    `json:"phone"`
	EmergencyContactName  string    `json:"emergency_contact_name"`
	EmergencyContactPhone string    `json:"emergency_contact_phone"`
	IsActive              bool      `json:"is_active"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type NursePreferences struct {
	PrefersDayShifts    bool `json:"prefers_day_shifts"`
	PrefersNightShifts  bool `json:"prefers_night_shifts"`
	WeekendAvailability bool `json:"weekend_availability"`
	HolidayAvailability bool `json:"holiday_availability"`
	FloatPoolMember     bool `json:"float_pool_member"`
}

type NurseSkill struct {
	SkillID       uint   `json:"skill_id"`
	Name          string `json:"name"`
	Level         string `json:"level"`
	CertifiedDate string `json:"certified_date,omitempty"`
	ExpiresDate   string `json:"expires_date,omitempty"`
}

type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time"
	EmploymentPartTime EmploymentType = "part_time"
	EmploymentPerDiem  EmploymentType = "per_diem"
	EmploymentTravel   EmploymentType = "travel"
)

type Nurse struct {
	WorkerID              uint             `json:"worker_id"`
	User                  User             `json:"user"`
	EmployeeID            string           `json:"employee_id"`
	Specialization        string           `json:"specialization"`
	LicenseNumber         string           `json:"license_number"`
	Certification         string           `json:"certification"`
	HireDate              string           `json:"hire_date"`
	EmploymentType        EmploymentType   `json:"employment_type"`
	BaseHourlyRate        float64          `json:"base_hourly_rate"`
	OvertimeRate          float64          `json:"overtime_rate"`
	MaxHoursPerWeek       int              `json:"max_hours_per_week"`
	MaxConsecutiveDays    int              `json:"max_consecutive_days"`
	MinHoursBetweenShifts int              `json:"min_hours_between_shifts"`
	Preferences           NursePreferences `json:"preferences"`
	SeniorityPoints       int              `json:"seniority_points"`
	FatigueScore          float64          `json:"fatigue_score"`
	Skills                []NurseSkill     `json:"skills,omitempty"`
}

// UpdateNurseProfileRequest is the body of PUT /nurses/{id}; nil fields are
// left untouched by the server.
type UpdateNurseProfileRequest struct {
	Phone                 *string           `json:"phone,omitempty"`
	EmergencyContactName  *string           `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string           `json:"emergency_contact_phone,omitempty"`
	Preferences           *NursePreferences `json:"preferences,omitempty"`
	MaxHoursPerWeek       *int              `json:"max_hours_per_week,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success      bool   `json:"success"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         User   `json:"user"`
	NurseID      uint   `json:"nurse_id"`
	ExpiresIn    int64  `json:"expires_in"`
}
