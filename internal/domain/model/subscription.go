package model

import (
	"time"

	"billing-reconciler/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive       SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCancelled    SubscriptionStatus = "CANCELLED"
	SubscriptionStatusExpired      SubscriptionStatus = "EXPIRED"
	SubscriptionStatusGrace        SubscriptionStatus = "GRACE"
	SubscriptionStatusGraceExpired SubscriptionStatus = "GRACE_EXPIRED"
)

// Subscription is a user's entitlement to a service for a period.
type Subscription struct {
	ID          string
	UserID      string
	ServiceID   string
	PaymentID   string
	Status      SubscriptionStatus
	StartAt     time.Time
	EndAt       time.Time
	GraceEndAt  *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSubscription creates an ACTIVE subscription for durationDays starting at now.
func NewSubscription(id, userID string, svc *ServiceConfig, paymentID string, now time.Time) (*Subscription, error) {
	if id == "" || userID == "" || svc == nil || svc.DurationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        id,
		UserID:    userID,
		ServiceID: svc.ID,
		PaymentID: paymentID,
		Status:    SubscriptionStatusActive,
		StartAt:   now,
		EndAt:     now.AddDate(0, 0, svc.DurationDays),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ExpiryTarget returns the status and grace end an ACTIVE subscription moves to
// once EndAt has passed.
func (s *Subscription) ExpiryTarget(graceDays int) (SubscriptionStatus, *time.Time) {
	if graceDays <= 0 {
		return SubscriptionStatusExpired, nil
	}
	ge := s.EndAt.AddDate(0, 0, graceDays)
	return SubscriptionStatusGrace, &ge
}

// DaysLeft is the number of whole days until EndAt, rounded up.
func (s *Subscription) DaysLeft(now time.Time) int {
	d := s.EndAt.Sub(now)
	if d <= 0 {
		return 0
	}
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// LifecycleReport counts what one lifecycle run changed.
type LifecycleReport struct {
	Expired      int `json:"expired"`
	GraceStarted int `json:"graceStarted"`
	GraceExpired int `json:"graceExpired"`
	WarningsSent int `json:"warningsSent"`
	NotifyFailed int `json:"notifyFailed"`
}
