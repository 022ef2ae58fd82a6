// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// ActivateForPayment grants the service for its duration, extending an
	// ACTIVE subscription to the same service instead of opening a second one.
	ActivateForPayment(ctx context.Context, tx repository.Tx, p *model.Payment, svc *model.ServiceConfig) (*model.Subscription, error)
	// Cancel ends an ACTIVE or GRACE subscription. Cancelling twice is not an error.
	Cancel(ctx context.Context, id string) (*model.Subscription, error)
	Get(ctx context.Context, id string) (*model.Subscription, error)
	ActiveFor(ctx context.Context, tx repository.Tx, userID, serviceID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{subs: subs, log: &l, now: time.Now}
}

func (u *subscriptionUC) ActivateForPayment(ctx context.Context, tx repository.Tx, p *model.Payment, svc *model.ServiceConfig) (*model.Subscription, error) {
	if p == nil || svc == nil {
		return nil, domain.ErrInvalidArgument
	}
	now := u.now().UTC()

	existing, err := u.subs.FindActiveByUserService(ctx, tx, p.UserID, svc.ID)
	switch {
	case err == nil:
		base := existing.EndAt
		if base.Before(now) {
			base = now
		}
		existing.EndAt = base.AddDate(0, 0, svc.DurationDays)
		existing.UpdatedAt = now
		if err := u.subs.ExtendEnd(ctx, tx, existing.ID, existing.EndAt); err != nil {
			return nil, err
		}
		u.log.Info().Str("subscription_id", existing.ID).Time("end_at", existing.EndAt).Msg("subscription extended")
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	sub, err := model.NewSubscription(uuid.NewString(), p.UserID, svc, p.ID, now)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	u.log.Info().Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Msg("subscription activated")
	return sub, nil
}

func (u *subscriptionUC) Cancel(ctx context.Context, id string) (*model.Subscription, error) {
	if id == "" {
		return nil, domain.NewValidationError("id", "must not be empty")
	}
	from := []model.SubscriptionStatus{model.SubscriptionStatusActive, model.SubscriptionStatusGrace}
	ok, err := u.subs.TransitionStatus(ctx, repository.NoTX, id, from, model.SubscriptionStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	sub, err := u.subs.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if ok || sub.Status == model.SubscriptionStatusCancelled {
		return sub, nil
	}
	return nil, &domain.IllegalTransitionError{
		Entity: "subscription",
		ID:     id,
		From:   string(sub.Status),
		To:     string(model.SubscriptionStatusCancelled),
	}
}

func (u *subscriptionUC) Get(ctx context.Context, id string) (*model.Subscription, error) {
	return u.subs.FindByID(ctx, repository.NoTX, id)
}

func (u *subscriptionUC) ActiveFor(ctx context.Context, tx repository.Tx, userID, serviceID string) (*model.Subscription, error) {
	return u.subs.FindActiveByUserService(ctx, tx, userID, serviceID)
}
