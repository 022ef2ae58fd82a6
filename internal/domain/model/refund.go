package model

import (
	"strings"
	"time"
)

type RefundStatus string

const (
	RefundStatusInitiated  RefundStatus = "INITIATED"
	RefundStatusProcessing RefundStatus = "PROCESSING"
	RefundStatusProcessed  RefundStatus = "PROCESSED"
	RefundStatusFailed     RefundStatus = "FAILED"
)

// rank orders the non-failure path. FAILED sits outside the ordering.
var refundRank = map[RefundStatus]int{
	RefundStatusInitiated:  0,
	RefundStatusProcessing: 1,
	RefundStatusProcessed:  2,
}

func (s RefundStatus) Valid() bool {
	switch s {
	case RefundStatusInitiated, RefundStatusProcessing, RefundStatusProcessed, RefundStatusFailed:
		return true
	}
	return false
}

func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusProcessed || s == RefundStatusFailed
}

// CanTransition reports whether a refund in status s may move to next.
// Same-status is not a transition; callers treat it as a replay.
func (s RefundStatus) CanTransition(next RefundStatus) bool {
	if !s.Valid() || !next.Valid() || s == next || s.IsTerminal() {
		return false
	}
	if next == RefundStatusFailed {
		return true
	}
	return refundRank[next] > refundRank[s]
}

// ParseRefundStatus maps gateway vocabulary onto the local status set.
func ParseRefundStatus(raw string) (RefundStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "initiated", "created":
		return RefundStatusInitiated, true
	case "processing", "pending":
		return RefundStatusProcessing, true
	case "processed", "refunded", "succeeded":
		return RefundStatusProcessed, true
	case "failed":
		return RefundStatusFailed, true
	}
	return "", false
}

type RefundSpeed string

const (
	RefundSpeedInstant RefundSpeed = "instant"
	RefundSpeedNormal  RefundSpeed = "normal"
)

func (s RefundSpeed) Valid() bool { return s == RefundSpeedInstant || s == RefundSpeedNormal }

// Refund tracks money returned against a Payment. ID is the gateway refund id.
type Refund struct {
	ID               string
	PaymentID        string
	Amount           int64
	Status           RefundStatus
	Speed            RefundSpeed
	Reason           string
	ProcessedAt      *time.Time
	ErrorCode        *string
	ErrorDescription *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RefundFilter narrows history queries. Zero values mean "no filter".
type RefundFilter struct {
	Status    RefundStatus
	PaymentID string
	Email     string
	From      *time.Time
	To        *time.Time
}

// RefundTransition is a requested status change, from a webhook or a status poll.
type RefundTransition struct {
	RefundID         string
	PaymentID        string // optional; checked against the stored refund when set
	To               RefundStatus
	ErrorCode        string
	ErrorDescription string
	ProcessedAt      *time.Time // event time reported by the gateway
}
