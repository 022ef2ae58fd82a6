// File: internal/usecase/refund_state_machine.go
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

type TransitionOutcome string

const (
	OutcomeApplied TransitionOutcome = "applied"
	OutcomeNoOp    TransitionOutcome = "duplicate"
)

// TransitionResult is the refund as stored after Apply and what Apply did to it.
type TransitionResult struct {
	Refund  *model.Refund
	From    model.RefundStatus
	Outcome TransitionOutcome
}

// RefundStateMachine is the only writer of refund status.
type RefundStateMachine interface {
	Apply(ctx context.Context, t model.RefundTransition) (TransitionResult, error)
}

var _ RefundStateMachine = (*refundStateMachine)(nil)

// errRefundMoved signals that the conditional update lost a race and the
// transition has to be evaluated again against the fresh row.
var errRefundMoved = errors.New("refund status changed concurrently")

const maxTransitionAttempts = 3

type refundStateMachine struct {
	refunds  repository.RefundRepository
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
	now      func() time.Time
}

func NewRefundStateMachine(refunds repository.RefundRepository, payments repository.PaymentRepository, tm repository.TransactionManager, logger *zerolog.Logger) *refundStateMachine {
	l := logger.With().Str("component", "RefundStateMachine").Logger()
	return &refundStateMachine{refunds: refunds, payments: payments, tm: tm, log: &l, now: time.Now}
}

func (m *refundStateMachine) Apply(ctx context.Context, t model.RefundTransition) (TransitionResult, error) {
	if strings.TrimSpace(t.RefundID) == "" {
		return TransitionResult{}, domain.NewValidationError("refundId", "must not be empty")
	}
	if !t.To.Valid() {
		return TransitionResult{}, domain.NewValidationError("status", fmt.Sprintf("unknown refund status %q", t.To))
	}

	var (
		res TransitionResult
		err error
	)
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		res, err = m.applyOnce(ctx, t)
		if !errors.Is(err, errRefundMoved) {
			break
		}
		m.log.Debug().Str("refund_id", t.RefundID).Int("attempt", attempt).Msg("conditional update lost, retrying")
	}

	switch {
	case err == nil:
		metrics.IncRefundTransition(string(t.To), string(res.Outcome))
		if res.Outcome == OutcomeApplied {
			if t.To == model.RefundStatusProcessed {
				metrics.AddRefundedAmount(res.Refund.Amount)
			}
			m.log.Info().
				Str("refund_id", res.Refund.ID).
				Str("payment_id", res.Refund.PaymentID).
				Str("from", string(res.From)).
				Str("to", string(t.To)).
				Msg("refund transition applied")
		}
	case errors.Is(err, domain.ErrIllegalTransition):
		metrics.IncRefundTransition(string(t.To), "rejected")
		m.log.Error().Err(err).Str("refund_id", t.RefundID).Msg("refund transition rejected")
	default:
		metrics.IncRefundTransition(string(t.To), "error")
	}
	return res, err
}

func (m *refundStateMachine) applyOnce(ctx context.Context, t model.RefundTransition) (TransitionResult, error) {
	var res TransitionResult
	err := m.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		r, err := m.refunds.FindByID(ctx, tx, t.RefundID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: %s", domain.ErrUnknownRefund, t.RefundID)
			}
			return err
		}
		res.From = r.Status

		if r.Status == t.To {
			res.Refund, res.Outcome = r, OutcomeNoOp
			return nil
		}
		if !r.Status.CanTransition(t.To) {
			return m.illegal(r, t.To, "")
		}

		upd := repository.RefundStatusUpdate{From: r.Status, To: t.To}
		switch t.To {
		case model.RefundStatusProcessed:
			p, err := m.payments.FindByID(ctx, tx, r.PaymentID)
			if err != nil {
				return fmt.Errorf("load payment %s: %w", r.PaymentID, err)
			}
			done, err := m.refunds.SumByPayment(ctx, tx, r.PaymentID, model.RefundStatusProcessed)
			if err != nil {
				return err
			}
			if done+r.Amount > p.Amount {
				return m.illegal(r, t.To, fmt.Sprintf("refund total exceeds payment (%d + %d > %d)", done, r.Amount, p.Amount))
			}
			at := m.now().UTC()
			if t.ProcessedAt != nil && !t.ProcessedAt.IsZero() {
				at = t.ProcessedAt.UTC()
			}
			upd.ProcessedAt = &at
		case model.RefundStatusFailed:
			code := strings.TrimSpace(t.ErrorCode)
			desc := strings.TrimSpace(t.ErrorDescription)
			if code == "" && desc == "" {
				return m.illegal(r, t.To, "failure without error code")
			}
			if code == "" {
				code = "UNSPECIFIED"
			}
			if desc == "" {
				desc = code
			}
			upd.ErrorCode, upd.ErrorDescription = &code, &desc
		}

		ok, err := m.refunds.UpdateStatusIf(ctx, tx, r.ID, upd)
		if err != nil {
			return err
		}
		if !ok {
			return errRefundMoved
		}

		r.Status = t.To
		r.ProcessedAt = upd.ProcessedAt
		r.ErrorCode, r.ErrorDescription = upd.ErrorCode, upd.ErrorDescription
		r.UpdatedAt = m.now().UTC()
		res.Refund, res.Outcome = r, OutcomeApplied
		return nil
	})
	return res, err
}

func (m *refundStateMachine) illegal(r *model.Refund, to model.RefundStatus, reason string) error {
	return &domain.IllegalTransitionError{
		Entity: "refund",
		ID:     r.ID,
		From:   string(r.Status),
		To:     string(to),
		Reason: reason,
	}
}
