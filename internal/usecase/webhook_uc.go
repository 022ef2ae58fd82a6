// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/repository"
	"billing-reconciler/internal/infra/metrics"
)

type WebhookOutcome string

const (
	WebhookApplied       WebhookOutcome = "applied"
	WebhookDuplicate     WebhookOutcome = "duplicate"
	WebhookUnknownRefund WebhookOutcome = "unknown_refund"
	WebhookIgnored       WebhookOutcome = "ignored"
	WebhookRejected      WebhookOutcome = "rejected"
)

// WebhookAck is returned for every authenticated and parsed delivery.
type WebhookAck struct {
	Outcome  WebhookOutcome     `json:"outcome"`
	RefundID string             `json:"refundId"`
	Status   model.RefundStatus `json:"status,omitempty"`
}

type SignatureVerifier interface {
	Verify(rawPayload []byte, providedSignature, secret string) bool
}

type WebhookIngestor interface {
	Handle(ctx context.Context, signature string, rawBody []byte) (WebhookAck, error)
}

var _ WebhookIngestor = (*webhookUC)(nil)

type refundEvent struct {
	RefundID         string     `json:"refundId"`
	PaymentID        string     `json:"paymentId"`
	Status           string     `json:"status"`
	ErrorCode        string     `json:"errorCode"`
	ErrorDescription string     `json:"errorDescription"`
	ProcessedAt      *time.Time `json:"processedAt"`
}

type webhookUC struct {
	verifier SignatureVerifier
	secret   string
	refunds  repository.RefundRepository
	events   repository.WebhookEventRepository
	machine  RefundStateMachine
	log      *zerolog.Logger
	now      func() time.Time
}

func NewWebhookIngestor(verifier SignatureVerifier, secret string, refunds repository.RefundRepository, events repository.WebhookEventRepository, machine RefundStateMachine, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "WebhookIngestor").Logger()
	return &webhookUC{verifier: verifier, secret: secret, refunds: refunds, events: events, machine: machine, log: &l, now: time.Now}
}

// Handle authenticates and applies one gateway delivery. Only signature and
// parse failures and store faults return an error; every business outcome is
// acknowledged so the gateway stops retrying.
func (u *webhookUC) Handle(ctx context.Context, signature string, rawBody []byte) (ack WebhookAck, err error) {
	start := u.now()
	defer func() {
		outcome := string(ack.Outcome)
		switch {
		case errors.Is(err, domain.ErrSignatureInvalid):
			outcome = "signature_invalid"
		case errors.Is(err, domain.ErrInvalidArgument):
			outcome = "malformed"
		case err != nil:
			outcome = "error"
		}
		metrics.ObserveWebhook(outcome, u.now().Sub(start))
	}()

	if !u.verifier.Verify(rawBody, strings.TrimSpace(signature), u.secret) {
		u.log.Warn().Int("body_bytes", len(rawBody)).Msg("webhook signature rejected")
		return WebhookAck{}, domain.ErrSignatureInvalid
	}

	var ev refundEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return WebhookAck{}, domain.NewValidationError("body", "malformed json")
	}
	ev.RefundID = strings.TrimSpace(ev.RefundID)
	if ev.RefundID == "" {
		return WebhookAck{}, domain.NewValidationError("refundId", "must not be empty")
	}

	ack = WebhookAck{RefundID: ev.RefundID}
	defer func() {
		if err == nil {
			u.audit(ctx, ev, ack.Outcome, rawBody)
		}
	}()

	log := u.log.With().Str("refund_id", ev.RefundID).Str("status", ev.Status).Logger()

	st, ok := model.ParseRefundStatus(ev.Status)
	if !ok {
		log.Warn().Msg("webhook with unknown status ignored")
		ack.Outcome = WebhookIgnored
		return ack, nil
	}
	ack.Status = st

	r, err := u.refunds.FindByID(ctx, repository.NoTX, ev.RefundID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("webhook for unknown refund")
		ack.Outcome = WebhookUnknownRefund
		return ack, nil
	}
	if err != nil {
		return WebhookAck{}, err
	}
	if ev.PaymentID != "" && ev.PaymentID != r.PaymentID {
		log.Error().Str("payment_id", ev.PaymentID).Str("stored_payment_id", r.PaymentID).Msg("webhook payment id does not match refund")
		ack.Outcome = WebhookIgnored
		return ack, nil
	}

	res, err := u.machine.Apply(ctx, model.RefundTransition{
		RefundID:         ev.RefundID,
		PaymentID:        ev.PaymentID,
		To:               st,
		ErrorCode:        ev.ErrorCode,
		ErrorDescription: ev.ErrorDescription,
		ProcessedAt:      ev.ProcessedAt,
	})
	switch {
	case err == nil && res.Outcome == OutcomeApplied:
		ack.Outcome = WebhookApplied
	case err == nil:
		ack.Outcome = WebhookDuplicate
	case errors.Is(err, domain.ErrIllegalTransition):
		ack.Outcome = WebhookRejected
	case errors.Is(err, domain.ErrUnknownRefund):
		ack.Outcome = WebhookUnknownRefund
	default:
		return WebhookAck{}, err
	}
	return ack, nil
}

func (u *webhookUC) audit(ctx context.Context, ev refundEvent, outcome WebhookOutcome, raw []byte) {
	if u.events == nil {
		return
	}
	sum := sha256.Sum256(raw)
	rec := &model.WebhookEvent{
		ID:            ulid.Make().String(),
		RefundID:      ev.RefundID,
		Status:        ev.Status,
		Outcome:       string(outcome),
		PayloadDigest: hex.EncodeToString(sum[:]),
		ReceivedAt:    u.now().UTC(),
	}
	if err := u.events.Append(ctx, repository.NoTX, rec); err != nil {
		u.log.Warn().Err(err).Str("refund_id", ev.RefundID).Msg("webhook audit append failed")
	}
}
