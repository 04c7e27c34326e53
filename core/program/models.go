package program

import "time"

// Role is a program buildout role with its billing rate; distinct from the
// account roles in core/user.
type Role struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	HourlyRate       float64   `json:"hourly_rate"`
	Responsibilities string    `json:"responsibilities"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// BaseCost is a per-student cost line applied to every buildout.
type BaseCost struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	CostPerStudent float64   `json:"cost_per_student"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}
