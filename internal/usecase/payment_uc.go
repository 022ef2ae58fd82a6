// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
	"billing-reconciler/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentSignatureVerifier interface {
	VerifyPaymentSignature(orderID, paymentID, provided, secret string) bool
}

type PaymentUseCase interface {
	// Verify checks a checkout confirmation, records the payment and activates
	// the subscription it pays for. Replaying a confirmation returns the
	// stored payment without a second activation.
	Verify(ctx context.Context, c model.PaymentConfirmation) (*model.Payment, *model.Subscription, error)
	Get(ctx context.Context, id string) (*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	services repository.ServiceConfigRepository
	users    repository.UserRepository
	subs     SubscriptionUseCase
	tm       repository.TransactionManager
	verifier PaymentSignatureVerifier
	secret   string
	log      *zerolog.Logger
	now      func() time.Time
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	services repository.ServiceConfigRepository,
	users repository.UserRepository,
	subs SubscriptionUseCase,
	tm repository.TransactionManager,
	verifier PaymentSignatureVerifier,
	secret string,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{
		payments: payments, services: services, users: users, subs: subs, tm: tm,
		verifier: verifier, secret: secret, log: &l, now: time.Now,
	}
}

func (u *paymentUC) Verify(ctx context.Context, c model.PaymentConfirmation) (*model.Payment, *model.Subscription, error) {
	if err := validateConfirmation(c); err != nil {
		return nil, nil, err
	}
	if !u.verifier.VerifyPaymentSignature(c.OrderID, c.PaymentID, c.Signature, u.secret) {
		metrics.IncPayment("signature_invalid")
		return nil, nil, domain.ErrSignatureInvalid
	}

	svc, err := u.services.FindByID(ctx, repository.NoTX, c.ServiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.NewValidationError("serviceId", "unknown service")
		}
		return nil, nil, err
	}
	if !svc.Active {
		return nil, nil, domain.NewValidationError("serviceId", "service is not available")
	}
	if c.Amount != svc.PriceMinor || !strings.EqualFold(c.Currency, svc.Currency) {
		metrics.IncPayment("amount_mismatch")
		return nil, nil, domain.NewValidationError("amount", fmt.Sprintf("%v: expected %d %s", domain.ErrAmountMismatch, svc.PriceMinor, svc.Currency))
	}

	now := u.now().UTC()
	p := &model.Payment{
		ID:         c.PaymentID,
		OrderID:    c.OrderID,
		UserID:     c.UserID,
		Email:      strings.ToLower(strings.TrimSpace(c.Email)),
		ServiceID:  svc.ID,
		Amount:     c.Amount,
		Currency:   strings.ToUpper(c.Currency),
		Status:     model.PaymentStatusVerified,
		CreatedAt:  now,
		VerifiedAt: &now,
	}

	var sub *model.Subscription
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.users.FindByID(ctx, tx, p.UserID); errors.Is(err, domain.ErrNotFound) {
			if err := u.users.Save(ctx, tx, &model.User{ID: p.UserID, Email: p.Email}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		inserted, err := u.payments.Save(ctx, tx, p)
		if err != nil {
			return err
		}
		if !inserted {
			stored, err := u.payments.FindByID(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			p = stored
			sub, err = u.subs.ActiveFor(ctx, tx, p.UserID, p.ServiceID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		sub, err = u.subs.ActivateForPayment(ctx, tx, p, svc)
		return err
	})
	if err != nil {
		metrics.IncPayment("error")
		return nil, nil, err
	}
	metrics.IncPayment("verified")
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	u.log.Info().Str("payment_id", p.ID).Str("user_id", p.UserID).Int64("amount", p.Amount).Msg("payment verified")
	return p, sub, nil
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.Payment, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}

func validateConfirmation(c model.PaymentConfirmation) error {
	switch {
	case strings.TrimSpace(c.OrderID) == "":
		return domain.NewValidationError("orderId", "must not be empty")
	case strings.TrimSpace(c.PaymentID) == "":
		return domain.NewValidationError("paymentId", "must not be empty")
	case c.Signature == "":
		return domain.NewValidationError("signature", "must not be empty")
	case strings.TrimSpace(c.UserID) == "":
		return domain.NewValidationError("userId", "must not be empty")
	case strings.TrimSpace(c.ServiceID) == "":
		return domain.NewValidationError("serviceId", "must not be empty")
	case c.Amount <= 0:
		return domain.NewValidationError("amount", "must be positive")
	}
	return nil
}
