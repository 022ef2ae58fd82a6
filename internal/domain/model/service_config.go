package model

import "time"

// ServiceConfig is a purchasable service with its price and lifecycle windows.
type ServiceConfig struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PriceMinor   int64     `json:"price_minor"`
	Currency     string    `json:"currency"`
	DurationDays int       `json:"duration_days"`
	GraceDays    int       `json:"grace_days"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ServiceHistory is an append-only audit row for a ServiceConfig change.
type ServiceHistory struct {
	ID        string
	ServiceID string
	Field     string
	OldValue  string
	NewValue  string
	ChangedBy string
	ChangedAt time.Time
}
