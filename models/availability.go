package models

// NurseAvailability is one weekday entry. DayOfWeek uses 0=Sunday..6=Saturday
// and times are HH:MM:SS.
type NurseAvailability struct {
	DayOfWeek      int    `json:"day_of_week"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	IsAvailable    bool   `json:"is_available"`
	IsPreferred    bool   `json:"is_preferred"`
	EffectiveFrom  string `json:"effective_from,omitempty"`
	EffectiveUntil string `json:"effective_until,omitempty"`
}
