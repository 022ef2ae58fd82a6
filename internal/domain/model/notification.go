package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type NotificationKind string

const (
	NotificationExpiryWarning NotificationKind = "expiry_warning"
	NotificationExpired       NotificationKind = "expired"
	NotificationGraceExpired  NotificationKind = "grace_expired"
)

// NotificationRequest is a fire-and-forget message for a subscription owner.
type NotificationRequest struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	Email          string           `json:"email,omitempty"`
	SubscriptionID string           `json:"subscriptionId"`
	ServiceID      string           `json:"serviceId"`
	Kind           NotificationKind `json:"kind"`
	ThresholdDays  int              `json:"thresholdDays"`
	EndAt          time.Time        `json:"endAt"`
	GraceEndAt     *time.Time       `json:"graceEndAt,omitempty"`
	Message        string           `json:"message,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

func NewNotificationRequest(sub *Subscription, kind NotificationKind, thresholdDays int, now time.Time) NotificationRequest {
	return NotificationRequest{
		ID:             ulid.Make().String(),
		UserID:         sub.UserID,
		SubscriptionID: sub.ID,
		ServiceID:      sub.ServiceID,
		Kind:           kind,
		ThresholdDays:  thresholdDays,
		EndAt:          sub.EndAt,
		GraceEndAt:     sub.GraceEndAt,
		CreatedAt:      now,
	}
}
