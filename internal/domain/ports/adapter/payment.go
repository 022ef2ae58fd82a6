package adapter

import (
	"context"
	"time"

	"billing-reconciler/internal/domain/model"
)

// RefundRequest asks the gateway to return part or all of a captured payment.
type RefundRequest struct {
	PaymentID string
	Amount    int64 // minor units
	Speed     model.RefundSpeed
	Reason    string
	Receipt   string // idempotency reference forwarded to the gateway
}

// RefundResult is the gateway's view of a refund.
type RefundResult struct {
	ID               string // gateway refund id
	PaymentID        string
	Amount           int64
	Status           string // raw gateway status
	Speed            model.RefundSpeed
	ErrorCode        string
	ErrorDescription string
	ProcessedAt      *time.Time
	CreatedAt        time.Time
}

// GatewayClient is the port to the payment gateway's refund API.
// Implementations must bound every call with a timeout and report
// timeouts or transport failures as domain.ErrGatewayUnavailable.
type GatewayClient interface {
	Name() string
	InitiateRefund(ctx context.Context, req RefundRequest) (RefundResult, error)
	FetchRefund(ctx context.Context, refundID string) (RefundResult, error)
}
