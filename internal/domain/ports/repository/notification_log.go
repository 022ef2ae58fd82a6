package repository

import (
	"context"
	"time"
)

// -----------------------------
// Notifications Log
// -----------------------------

// NotificationMark identifies one notification. PeriodEnd is the subscription
// end_at it was sent for; extending the subscription opens new slots.
type NotificationMark struct {
	SubscriptionID string
	UserID         string
	Kind           string
	ThresholdDays  int
	PeriodEnd      time.Time
}

type NotificationLogRepository interface {
	// Record claims the mark. It returns false when the mark already exists.
	Record(ctx context.Context, tx Tx, m NotificationMark) (bool, error)
	// Release drops a claimed mark whose notification was never handed off.
	Release(ctx context.Context, tx Tx, m NotificationMark) error
}
