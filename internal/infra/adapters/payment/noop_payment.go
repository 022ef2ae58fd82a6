package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"billing-reconciler/internal/domain"
	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
)

var _ adapter.GatewayClient = (*NoopGateway)(nil)

// NoopGateway is an in-memory gateway for local runs and tests. Refunds it
// creates stay "created" until Settle is called. A repeated receipt returns
// the refund created for it the first time.
type NoopGateway struct {
	mu        sync.Mutex
	seq       int64
	refunds   map[string]adapter.RefundResult
	byReceipt map[string]string
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{refunds: make(map[string]adapter.RefundResult), byReceipt: make(map[string]string)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) InitiateRefund(ctx context.Context, req adapter.RefundRequest) (adapter.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.RefundResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if id, ok := g.byReceipt[req.Receipt]; ok && req.Receipt != "" {
		return g.refunds[id], nil
	}
	g.seq++
	res := adapter.RefundResult{
		ID:        fmt.Sprintf("rfnd_noop_%d", g.seq),
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Status:    "created",
		Speed:     req.Speed,
		CreatedAt: time.Now().UTC(),
	}
	g.refunds[res.ID] = res
	if req.Receipt != "" {
		g.byReceipt[req.Receipt] = res.ID
	}
	return res, nil
}

func (g *NoopGateway) FetchRefund(ctx context.Context, refundID string) (adapter.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.refunds[refundID]
	if !ok {
		return adapter.RefundResult{}, domain.ErrNotFound
	}
	return res, nil
}

// Settle moves a refund to its final gateway status.
func (g *NoopGateway) Settle(refundID string, status model.RefundStatus, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.refunds[refundID]
	if !ok {
		return
	}
	res.Status = string(status)
	if status == model.RefundStatusProcessed {
		res.ProcessedAt = &at
	}
	if status == model.RefundStatusFailed {
		res.ErrorCode = "GATEWAY_ERROR"
		res.ErrorDescription = "refund rejected by bank"
	}
	g.refunds[refundID] = res
}
