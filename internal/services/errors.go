package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/modelmart/backend/internal/ledger"
	"github.com/modelmart/backend/internal/store"
)

// Failure kinds surfaced to callers. Every failure carries a
// distinguishable kind and a human-readable message; none is ever a
// silent no-op.
const (
	KindValidation            = "validation"
	KindNotFound              = "not_found"
	KindAlreadySold           = "already_sold"
	KindSelfTrade             = "self_trade"
	KindInsufficientBalance   = "insufficient_balance"
	KindInsufficientAllowance = "insufficient_allowance"
	KindPaymentUnknown        = "payment_unknown"
	KindSettlementFailed      = "settlement_failed"
	KindInternal              = "internal"
)

var (
	// ErrSelfTrade rejects a buyer purchasing their own listing.
	ErrSelfTrade = errors.New("buyer cannot purchase own listing")

	// ErrPaymentUnknown marks a transfer whose outcome could not be
	// confirmed. The caller must not assume failure; the attempt stays
	// pending until the ledger state is reconciled.
	ErrPaymentUnknown = errors.New("payment outcome unknown")

	// ErrSettlementFailed marks the one non-recoverable class: the
	// payment committed but the listing status commit did not.
	ErrSettlementFailed = errors.New("payment committed but listing settlement failed")
)

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return KindNotFound, http.StatusNotFound
	case errors.Is(err, store.ErrAlreadySold):
		return KindAlreadySold, http.StatusConflict
	case errors.Is(err, ErrSelfTrade):
		return KindSelfTrade, http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return KindInsufficientBalance, http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInsufficientAllowance):
		return KindInsufficientAllowance, http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrInvalidSender),
		errors.Is(err, ledger.ErrInvalidReceiver),
		errors.Is(err, ledger.ErrInvalidApprover),
		errors.Is(err, ledger.ErrInvalidSpender),
		errors.Is(err, ledger.ErrInvalidAmount):
		return KindValidation, http.StatusBadRequest
	case errors.Is(err, ErrPaymentUnknown):
		return KindPaymentUnknown, http.StatusGatewayTimeout
	case errors.Is(err, ErrSettlementFailed):
		return KindSettlementFailed, http.StatusBadGateway
	default:
		return KindInternal, http.StatusInternalServerError
	}
}

// SendDomainError maps a typed domain failure to its HTTP status and kind.
func SendDomainError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Kind: kind})
}
