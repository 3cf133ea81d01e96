package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/modelmart/backend/internal/audit"
	"github.com/modelmart/backend/internal/config"
	"github.com/modelmart/backend/internal/ledger"
	"github.com/modelmart/backend/internal/models"
	"github.com/modelmart/backend/internal/store"
)

// reconciliationQueue receives SETTLEMENT_FAILED attempts for manual
// operator reconciliation (refund or status fix).
const reconciliationQueue = "reconciliation_queue"

// PaymentLedger is the coordinator's view of the token ledger. The
// transfer may be backed by a slow, possibly-failing remote system; the
// recent-transfer read is used to confirm an unknown outcome.
type PaymentLedger interface {
	Transfer(ctx context.Context, sender, recipient string, amount int64) error
	RecentTransfer() (models.TransferRecord, bool)
}

// PurchaseService sequences payment and listing settlement as a saga: the
// two steps cross trust domains and are only eventually consistent.
type PurchaseService struct {
	store          store.Store
	ledger         PaymentLedger
	redis          *redis.Client
	audit          *audit.Logger
	validator      *ValidationHelper
	paymentTimeout time.Duration
}

func NewPurchaseService(listingStore store.Store, paymentLedger PaymentLedger, redisClient *redis.Client, cfg *config.MarketplaceConfig) *PurchaseService {
	return &PurchaseService{
		store:          listingStore,
		ledger:         paymentLedger,
		redis:          redisClient,
		audit:          audit.NewLogger(),
		validator:      NewValidationHelper(),
		paymentTimeout: cfg.PaymentTimeout,
	}
}

// Purchase runs one pay-then-settle attempt. The listing is never marked
// sold without a confirmed transfer, and no store lock is held while the
// ledger call is in flight.
func (ps *PurchaseService) Purchase(ctx context.Context, listingID int64, buyer string) (*models.Listing, *models.PurchaseAttempt, error) {
	listing, err := ps.store.Get(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if listing.Status != models.ListingAvailable {
		return nil, nil, store.ErrAlreadySold
	}

	buyer = ledger.NormalizeAddress(buyer)
	seller := ledger.NormalizeAddress(listing.Seller)
	if buyer == seller {
		return nil, nil, ErrSelfTrade
	}

	attempt := &models.PurchaseAttempt{
		ID:        uuid.NewString(),
		ListingID: listing.ID,
		Buyer:     buyer,
		Seller:    seller,
		Amount:    listing.Price,
		Status:    models.PurchasePending,
		CreatedAt: time.Now(),
	}

	payCtx, cancel := context.WithTimeout(ctx, ps.paymentTimeout)
	defer cancel()

	err = ps.ledger.Transfer(payCtx, buyer, seller, listing.Price)
	switch {
	case err == nil:
		ps.transition(attempt, models.PurchasePaymentSent)
		ps.audit.LogTransfer(attempt.ID, buyer, seller, listing.Price, "SUCCESS")

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// Timed out mid-flight: the outcome is unknown, not a clean
		// failure. Confirm against the ledger's actual state before
		// deciding; never assume failure and never settle blind.
		if !ps.confirmPayment(attempt) {
			ps.audit.LogError(attempt.ID, buyer, err)
			return nil, attempt, fmt.Errorf("%w: transfer for purchase %s timed out", ErrPaymentUnknown, attempt.ID)
		}
		ps.transition(attempt, models.PurchasePaymentSent)
		ps.audit.LogOperation(attempt.ID, buyer, "PAYMENT_CONFIRMED", "confirmed via recent transfer record after timeout")

	default:
		ps.transition(attempt, models.PurchasePaymentFailed)
		ps.audit.LogError(attempt.ID, buyer, err)
		return nil, attempt, fmt.Errorf("payment failed: %w", err)
	}

	sold, err := ps.store.MarkSold(ctx, listing.ID)
	if err != nil {
		// Payment already committed; this needs manual reconciliation
		// and must not read as a payment failure.
		ps.transition(attempt, models.PurchaseSettlementFailed)
		ps.audit.LogSettlement(attempt.ID, listing.ID, "FAILED")
		ps.queueReconciliation(ctx, attempt)
		return nil, attempt, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	ps.transition(attempt, models.PurchaseSettled)
	ps.audit.LogSettlement(attempt.ID, listing.ID, "SUCCESS")
	return sold, attempt, nil
}

// confirmPayment checks whether the ledger's most recent transfer matches
// this attempt. A single overwritten record keeps this a bounded read; a
// full event index would make the check exact under heavy concurrency.
func (ps *PurchaseService) confirmPayment(attempt *models.PurchaseAttempt) bool {
	rec, ok := ps.ledger.RecentTransfer()
	if !ok {
		return false
	}
	return rec.Sender == attempt.Buyer &&
		rec.Receiver == attempt.Seller &&
		rec.Amount == attempt.Amount &&
		!rec.Timestamp.Before(attempt.CreatedAt)
}

func (ps *PurchaseService) transition(attempt *models.PurchaseAttempt, status string) {
	attempt.Status = status
	attempt.UpdatedAt = time.Now()
}

func (ps *PurchaseService) queueReconciliation(ctx context.Context, attempt *models.PurchaseAttempt) {
	data, err := json.Marshal(attempt)
	if err != nil {
		log.Printf("[PURCHASE] Failed to marshal reconciliation record for %s: %v", attempt.ID, err)
		return
	}

	if ps.redis == nil {
		log.Printf("[PURCHASE] Redis unavailable, reconciliation record for %s logged only: %s", attempt.ID, data)
		return
	}

	if err := ps.redis.RPush(ctx, reconciliationQueue, string(data)).Err(); err != nil {
		log.Printf("[PURCHASE] Failed to queue reconciliation record for %s: %v", attempt.ID, err)
	}
}

// CreatePurchase executes a purchase
// @Summary Purchase a listing
// @Description Pay for a listing with the marketplace token, then settle the listing as sold
// @Tags purchases
// @Accept json
// @Produce json
// @Param request body object{listingId=int64,buyer=string} true "Purchase request"
// @Success 200 {object} object{success=bool,purchaseId=string,model=models.Listing}
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /purchases [post]
func (ps *PurchaseService) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID int64  `json:"listingId" validate:"required,gt=0"`
		Buyer     string `json:"buyer" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := ps.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	listing, attempt, err := ps.Purchase(r.Context(), req.ListingID, req.Buyer)
	if err != nil {
		if attempt != nil {
			log.Printf("[PURCHASE] Attempt %s for listing %d ended %s: %v", attempt.ID, req.ListingID, attempt.Status, err)
		} else {
			log.Printf("[PURCHASE] Purchase of listing %d rejected: %v", req.ListingID, err)
		}
		SendDomainError(w, err)
		return
	}

	log.Printf("[PURCHASE] Attempt %s settled listing %d for %s", attempt.ID, listing.ID, attempt.Buyer)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"purchaseId": attempt.ID,
		"model":      listing,
	})
}
