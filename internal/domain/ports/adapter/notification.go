package adapter

import (
	"context"

	"billing-reconciler/internal/domain/model"
)

// NotificationSender delivers a message to a subscription owner.
// Delivery is best effort; callers never roll back on error.
type NotificationSender interface {
	Send(ctx context.Context, n model.NotificationRequest) error
}

// UserDirectory resolves account details for notifications and exports.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (*model.User, error)
}
