package models

import "time"

// Event is a hackathon. Projects inherit its submission window.
type Event struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	StartsAt  *time.Time `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// HasWindow reports whether both window bounds are defined.
func (e *Event) HasWindow() bool {
	return e != nil && e.StartsAt != nil && e.EndsAt != nil
}

// Contains reports whether t falls inside the inclusive [StartsAt, EndsAt] window.
func (e *Event) Contains(t time.Time) bool {
	if !e.HasWindow() {
		return true
	}
	return !t.Before(*e.StartsAt) && !t.After(*e.EndsAt)
}
