package models

import "time"

// Purchase attempt states. PENDING is the only non-terminal state; an
// attempt whose payment outcome could not be confirmed stays PENDING.
const (
	PurchasePending          = "PENDING"
	PurchasePaymentSent      = "PAYMENT_SENT"
	PurchaseSettled          = "SETTLED"
	PurchasePaymentFailed    = "PAYMENT_FAILED"
	PurchaseSettlementFailed = "SETTLEMENT_FAILED"
)

// PurchaseAttempt tracks one pay-then-settle run through the coordinator.
// The token transfer and the listing status commit live in separate trust
// domains, so SETTLEMENT_FAILED attempts carry enough context for manual
// reconciliation.
type PurchaseAttempt struct {
	ID        string    `json:"purchaseId"`
	ListingID int64     `json:"listingId"`
	Buyer     string    `json:"buyer"`
	Seller    string    `json:"seller"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
