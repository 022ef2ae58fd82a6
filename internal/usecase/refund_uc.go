// File: internal/usecase/refund_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/domain/ports/repository"
	uc "billing-reconciler/internal/domain/ports/usecase"
	"billing-reconciler/internal/infra/metrics"
)

// Compile-time checks
var (
	_ RefundUseCase   = (*refundUC)(nil)
	_ uc.RefundSyncer = (*refundUC)(nil)
)

type RefundUseCase interface {
	// Initiate asks the gateway for a refund and records it as INITIATED.
	// Retrying a call that failed with ErrGatewayUnavailable reuses the same
	// gateway receipt, so the gateway does not create a second refund. A
	// non-empty idempotencyKey pins the receipt to the caller's key instead.
	Initiate(ctx context.Context, paymentID string, amount int64, speed model.RefundSpeed, reason, idempotencyKey string) (*model.Refund, error)
	// CheckStatus pulls the refund status from the gateway and applies it.
	CheckStatus(ctx context.Context, refundID string) (*model.Refund, error)
	Get(ctx context.Context, refundID string) (*model.Refund, error)
	History(ctx context.Context, page, pageSize int, f model.RefundFilter) (model.Page[*model.Refund], error)
	// TotalRefundedForPayment sums the PROCESSED refunds of one payment.
	TotalRefundedForPayment(ctx context.Context, paymentID string) (int64, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Refund, error)
}

type refundUC struct {
	refunds  repository.RefundRepository
	payments repository.PaymentRepository
	gateway  adapter.GatewayClient
	machine  RefundStateMachine
	locker   adapter.Locker
	lockTTL  time.Duration
	log      *zerolog.Logger
	now      func() time.Time
}

var receiptSpace = uuid.MustParse("6f1c2f8e-5b1a-4c55-9a53-0d6c1f3e7a21")

var allRefundStatuses = []model.RefundStatus{
	model.RefundStatusInitiated, model.RefundStatusProcessing, model.RefundStatusProcessed, model.RefundStatusFailed,
}

func NewRefundUseCase(refunds repository.RefundRepository, payments repository.PaymentRepository, gateway adapter.GatewayClient, machine RefundStateMachine, logger *zerolog.Logger) *refundUC {
	l := logger.With().Str("component", "RefundUseCase").Logger()
	return &refundUC{refunds: refunds, payments: payments, gateway: gateway, machine: machine, log: &l, now: time.Now}
}

// WithLocker serialises Initiate per payment across instances.
func (u *refundUC) WithLocker(l adapter.Locker, ttl time.Duration) *refundUC {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	u.locker, u.lockTTL = l, ttl
	return u
}

func (u *refundUC) Initiate(ctx context.Context, paymentID string, amount int64, speed model.RefundSpeed, reason, idempotencyKey string) (*model.Refund, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, domain.NewValidationError("paymentId", "must not be empty")
	}
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "must be positive")
	}
	if speed == "" {
		speed = model.RefundSpeedNormal
	}
	if !speed.Valid() {
		return nil, domain.NewValidationError("speed", "must be instant or normal")
	}

	unlock, err := u.lockPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.IsVerified() {
		return nil, domain.NewValidationError("paymentId", domain.ErrPaymentNotVerified.Error())
	}
	outstanding, err := u.refunds.SumByPayment(ctx, repository.NoTX, paymentID,
		model.RefundStatusInitiated, model.RefundStatusProcessing, model.RefundStatusProcessed)
	if err != nil {
		return nil, err
	}
	if amount > p.Amount-outstanding {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("exceeds refundable amount %d", p.Amount-outstanding))
	}
	attempted, err := u.refunds.SumByPayment(ctx, repository.NoTX, paymentID, allRefundStatuses...)
	if err != nil {
		return nil, err
	}

	res, err := u.gateway.InitiateRefund(ctx, adapter.RefundRequest{
		PaymentID: paymentID,
		Amount:    amount,
		Speed:     speed,
		Reason:    reason,
		Receipt:   refundReceipt(paymentID, amount, speed, attempted, idempotencyKey),
	})
	if err != nil {
		metrics.IncRefundInitiated(string(speed), "gateway_error")
		return nil, err
	}

	now := u.now().UTC()
	created := res.CreatedAt
	if created.IsZero() {
		created = now
	}
	r := &model.Refund{
		ID:        res.ID,
		PaymentID: paymentID,
		Amount:    amount,
		Status:    model.RefundStatusInitiated,
		Speed:     speed,
		Reason:    reason,
		CreatedAt: created,
		UpdatedAt: now,
	}
	inserted, err := u.refunds.Save(ctx, repository.NoTX, r)
	if err != nil {
		// orphaned on the gateway side until someone records it by hand
		u.log.Error().Err(err).Str("refund_id", res.ID).Str("payment_id", paymentID).Msg("gateway refund created but not recorded")
		metrics.IncRefundInitiated(string(speed), "store_error")
		return nil, err
	}
	if !inserted {
		if r, err = u.refunds.FindByID(ctx, repository.NoTX, res.ID); err != nil {
			return nil, err
		}
	}
	metrics.IncRefundInitiated(string(speed), "ok")
	u.log.Info().Str("refund_id", r.ID).Str("payment_id", paymentID).Int64("amount", amount).Msg("refund initiated")

	// Instant refunds can already be past INITIATED in the gateway's answer.
	if st, ok := model.ParseRefundStatus(res.Status); ok && st != r.Status {
		tr, err := u.machine.Apply(ctx, transitionFromGateway(r.ID, st, res))
		if err != nil {
			u.log.Warn().Err(err).Str("refund_id", r.ID).Msg("initial status not applied")
			return r, nil
		}
		return tr.Refund, nil
	}
	return r, nil
}

// refundReceipt is stable for one logical request. Without a caller key it is
// derived from the request and the total of every refund recorded for the
// payment so far, which only moves once an attempt has been stored.
func refundReceipt(paymentID string, amount int64, speed model.RefundSpeed, attempted int64, key string) string {
	name := fmt.Sprintf("%s|%d|%s|%d", paymentID, amount, speed, attempted)
	if key != "" {
		name = paymentID + "|key|" + key
	}
	return uuid.NewSHA1(receiptSpace, []byte(name)).String()
}

// lockPayment holds the per-payment initiate lock. Without a locker, or when
// the lock store fails, it proceeds unlocked; the PROCESSED transition
// re-checks the refundable balance under the payment row lock.
func (u *refundUC) lockPayment(ctx context.Context, paymentID string) (func(), error) {
	noop := func() {}
	if u.locker == nil {
		return noop, nil
	}
	key := "lock:refund-initiate:" + paymentID
	token, err := u.locker.TryLock(ctx, key, u.lockTTL)
	switch {
	case errors.Is(err, domain.ErrLockNotAcquired):
		return nil, domain.ErrRefundInFlight
	case err != nil:
		u.log.Warn().Err(err).Str("payment_id", paymentID).Msg("refund lock unavailable, continuing unlocked")
		return noop, nil
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := u.locker.Unlock(uctx, key, token); err != nil {
			u.log.Warn().Err(err).Str("payment_id", paymentID).Msg("refund lock release failed")
		}
	}, nil
}

func (u *refundUC) CheckStatus(ctx context.Context, refundID string) (*model.Refund, error) {
	r, err := u.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if r.Status.IsTerminal() {
		return r, nil
	}
	res, err := u.gateway.FetchRefund(ctx, refundID)
	if err != nil {
		return nil, err
	}
	st, ok := model.ParseRefundStatus(res.Status)
	if !ok {
		u.log.Warn().Str("refund_id", refundID).Str("status", res.Status).Msg("unknown gateway refund status")
		return r, nil
	}
	if st == r.Status {
		return r, nil
	}
	tr, err := u.machine.Apply(ctx, transitionFromGateway(refundID, st, res))
	if err != nil {
		return nil, err
	}
	return tr.Refund, nil
}

func (u *refundUC) Get(ctx context.Context, refundID string) (*model.Refund, error) {
	if strings.TrimSpace(refundID) == "" {
		return nil, domain.NewValidationError("refundId", "must not be empty")
	}
	return u.refunds.FindByID(ctx, repository.NoTX, refundID)
}

func (u *refundUC) History(ctx context.Context, page, pageSize int, f model.RefundFilter) (model.Page[*model.Refund], error) {
	return pageRefunds(ctx, u.refunds, page, pageSize, f)
}

func (u *refundUC) TotalRefundedForPayment(ctx context.Context, paymentID string) (int64, error) {
	if _, err := u.payments.FindByID(ctx, repository.NoTX, paymentID); err != nil {
		return 0, err
	}
	return u.refunds.SumByPayment(ctx, repository.NoTX, paymentID, model.RefundStatusProcessed)
}

func (u *refundUC) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Refund, error) {
	return u.refunds.ListStale(ctx, repository.NoTX, olderThan, limit)
}

func transitionFromGateway(refundID string, st model.RefundStatus, res adapter.RefundResult) model.RefundTransition {
	return model.RefundTransition{
		RefundID:         refundID,
		To:               st,
		ErrorCode:        res.ErrorCode,
		ErrorDescription: res.ErrorDescription,
		ProcessedAt:      res.ProcessedAt,
	}
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	return errors.Is(err, domain.ErrGatewayUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
