package types

import "time"

// RefundInfo captures the gateway refund tied to a payment record.
// Partial refunds still mark the whole record refunded; the amount here is
// the only trace of how much actually went back.
type RefundInfo struct {
	RefundID          string    `json:"refund_id"`
	RefundAmountMinor int64     `json:"refund_amount_minor"`
	RefundReason      string    `json:"refund_reason,omitempty"`
	RefundedAt        time.Time `json:"refunded_at"`
}
