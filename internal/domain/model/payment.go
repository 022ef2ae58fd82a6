package model

import "time"

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"  // order created on the gateway, not yet confirmed
	PaymentStatusVerified PaymentStatus = "verified" // signature checked and amount matched
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Payment is a verified charge. ID is the gateway transaction id.
// Once verified it is never mutated or deleted.
type Payment struct {
	ID         string
	OrderID    string
	UserID     string
	Email      string
	ServiceID  string
	Amount     int64 // minor units
	Currency   string
	Status     PaymentStatus
	CreatedAt  time.Time
	VerifiedAt *time.Time
}

func (p *Payment) IsVerified() bool { return p != nil && p.Status == PaymentStatusVerified }

// PaymentConfirmation is what the client posts back after checkout.
type PaymentConfirmation struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	ServiceID string `json:"serviceId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}
