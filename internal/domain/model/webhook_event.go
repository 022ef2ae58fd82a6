package model

import "time"

// WebhookEvent is an append-only record of an authenticated gateway delivery.
type WebhookEvent struct {
	ID            string // ULID, sortable by arrival
	RefundID      string
	Status        string // raw status as sent by the gateway
	Outcome       string
	PayloadDigest string // sha256 of the raw body, hex
	ReceivedAt    time.Time
}
