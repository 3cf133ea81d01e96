package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmart/backend/internal/config"
	"github.com/modelmart/backend/internal/ledger"
	"github.com/modelmart/backend/internal/models"
	"github.com/modelmart/backend/internal/store"
)

func testConfig() *config.MarketplaceConfig {
	return &config.MarketplaceConfig{
		TokenName:      "UniGallery Token",
		TokenSymbol:    "UGT",
		TokenDecimals:  18,
		PaymentTimeout: time.Second,
		QRCodeTimeout:  5 * time.Minute,
		MaxUploadBytes: 1 << 20,
	}
}

func seedListing(t *testing.T, s store.Store, seller string, price int64) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		Name:        "M1",
		Description: "a test model",
		Price:       price,
		Seller:      seller,
		AssetRef:    "asset.bin",
	}
	require.NoError(t, s.Create(context.Background(), listing))
	return listing
}

func TestPurchaseService_Purchase(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path settles listing and moves tokens", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		require.NoError(t, tokenLedger.Mint("0xb", 150))
		seedListing(t, listingStore, "0xA", 100)

		ps := NewPurchaseService(listingStore, tokenLedger, nil, testConfig())

		sold, attempt, err := ps.Purchase(ctx, 1, "0xB")
		require.NoError(t, err)
		assert.Equal(t, models.PurchaseSettled, attempt.Status)
		assert.Equal(t, models.ListingSold, sold.Status)
		assert.Equal(t, int64(100), tokenLedger.BalanceOf("0xa"))
		assert.Equal(t, int64(50), tokenLedger.BalanceOf("0xb"))
	})

	t.Run("second purchase fails with already sold and moves nothing", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		require.NoError(t, tokenLedger.Mint("0xb", 150))
		require.NoError(t, tokenLedger.Mint("0xc", 500))
		seedListing(t, listingStore, "0xa", 100)

		ps := NewPurchaseService(listingStore, tokenLedger, nil, testConfig())

		_, _, err := ps.Purchase(ctx, 1, "0xb")
		require.NoError(t, err)

		_, _, err = ps.Purchase(ctx, 1, "0xc")
		assert.ErrorIs(t, err, store.ErrAlreadySold)
		assert.Equal(t, int64(500), tokenLedger.BalanceOf("0xc"))
		assert.Equal(t, int64(100), tokenLedger.BalanceOf("0xa"))
	})

	t.Run("seller cannot buy own listing regardless of case", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		require.NoError(t, tokenLedger.Mint("0xabc", 500))
		seedListing(t, listingStore, "0xAbC", 100)

		ps := NewPurchaseService(listingStore, tokenLedger, nil, testConfig())

		_, _, err := ps.Purchase(ctx, 1, "0xABC")
		assert.ErrorIs(t, err, ErrSelfTrade)

		listing, getErr := listingStore.Get(ctx, 1)
		require.NoError(t, getErr)
		assert.Equal(t, models.ListingAvailable, listing.Status)
	})

	t.Run("insufficient balance leaves listing available", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		require.NoError(t, tokenLedger.Mint("0xb", 50))
		seedListing(t, listingStore, "0xa", 100)

		ps := NewPurchaseService(listingStore, tokenLedger, nil, testConfig())

		_, attempt, err := ps.Purchase(ctx, 1, "0xb")
		assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
		assert.Equal(t, models.PurchasePaymentFailed, attempt.Status)

		listing, getErr := listingStore.Get(ctx, 1)
		require.NoError(t, getErr)
		assert.Equal(t, models.ListingAvailable, listing.Status)
		assert.Equal(t, int64(50), tokenLedger.BalanceOf("0xb"))
	})

	t.Run("unknown listing", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		ps := NewPurchaseService(listingStore, tokenLedger, nil, testConfig())

		_, _, err := ps.Purchase(ctx, 42, "0xb")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

// settleFailStore wraps a working store but refuses the status commit,
// simulating a listing-store outage after the payment landed.
type settleFailStore struct {
	store.Store
}

func (s *settleFailStore) MarkSold(ctx context.Context, id int64) (*models.Listing, error) {
	return nil, errors.New("listing store unavailable")
}

func TestPurchaseService_SettlementFailure(t *testing.T) {
	ctx := context.Background()

	listingStore := store.NewMemory()
	tokenLedger := ledger.New("UGT", "UGT", 18, nil)
	require.NoError(t, tokenLedger.Mint("0xb", 150))
	seedListing(t, listingStore, "0xa", 100)

	redisClient, redisMock := redismock.NewClientMock()
	redisMock.Regexp().ExpectRPush(reconciliationQueue, `.*SETTLEMENT_FAILED.*`).SetVal(1)

	ps := NewPurchaseService(&settleFailStore{listingStore}, tokenLedger, redisClient, testConfig())

	_, attempt, err := ps.Purchase(ctx, 1, "0xb")
	assert.ErrorIs(t, err, ErrSettlementFailed)
	assert.Equal(t, models.PurchaseSettlementFailed, attempt.Status)

	// The payment stays committed; reconciliation is manual, not a refund.
	assert.Equal(t, int64(100), tokenLedger.BalanceOf("0xa"))
	assert.Equal(t, int64(50), tokenLedger.BalanceOf("0xb"))
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

// flakyLedger reports a deadline on every transfer; whether the transfer
// actually landed is controlled per test.
type flakyLedger struct {
	inner *ledger.Ledger
	lands bool
}

func (f *flakyLedger) Transfer(ctx context.Context, sender, recipient string, amount int64) error {
	if f.lands {
		if err := f.inner.Transfer(context.Background(), sender, recipient, amount); err != nil {
			return err
		}
	}
	return context.DeadlineExceeded
}

func (f *flakyLedger) RecentTransfer() (models.TransferRecord, bool) {
	return f.inner.RecentTransfer()
}

func TestPurchaseService_UnknownOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("timeout with confirmed payment settles", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		require.NoError(t, tokenLedger.Mint("0xb", 150))
		seedListing(t, listingStore, "0xa", 100)

		ps := NewPurchaseService(listingStore, &flakyLedger{inner: tokenLedger, lands: true}, nil, testConfig())

		sold, attempt, err := ps.Purchase(ctx, 1, "0xb")
		require.NoError(t, err)
		assert.Equal(t, models.PurchaseSettled, attempt.Status)
		assert.Equal(t, models.ListingSold, sold.Status)
	})

	t.Run("timeout without confirmation does not settle", func(t *testing.T) {
		listingStore := store.NewMemory()
		tokenLedger := ledger.New("UGT", "UGT", 18, nil)
		require.NoError(t, tokenLedger.Mint("0xb", 150))
		seedListing(t, listingStore, "0xa", 100)

		ps := NewPurchaseService(listingStore, &flakyLedger{inner: tokenLedger, lands: false}, nil, testConfig())

		_, attempt, err := ps.Purchase(ctx, 1, "0xb")
		assert.ErrorIs(t, err, ErrPaymentUnknown)
		assert.Equal(t, models.PurchasePending, attempt.Status)

		listing, getErr := listingStore.Get(ctx, 1)
		require.NoError(t, getErr)
		assert.Equal(t, models.ListingAvailable, listing.Status)
	})
}

func TestPurchaseService_CreatePurchase(t *testing.T) {
	listingStore := store.NewMemory()
	tokenLedger := ledger.New("UGT", "UGT", 18, nil)
	require.NoError(t, tokenLedger.Mint("0xb", 150))
	seedListing(t, listingStore, "0xa", 100)

	ps := NewPurchaseService(listingStore, tokenLedger, nil, testConfig())

	t.Run("invalid request body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/purchases", bytes.NewBufferString("invalid"))
		w := httptest.NewRecorder()

		ps.CreatePurchase(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mismatched id type is rejected, never coerced", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/purchases", bytes.NewBufferString(`{"listingId":"1","buyer":"0xb"}`))
		w := httptest.NewRecorder()

		ps.CreatePurchase(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("successful purchase over HTTP", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"listingId": 1, "buyer": "0xb"})
		r := httptest.NewRequest("POST", "/purchases", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		ps.CreatePurchase(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.NotEmpty(t, resp["purchaseId"])
	})

	t.Run("sold listing maps to conflict", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"listingId": 1, "buyer": "0xc"})
		r := httptest.NewRequest("POST", "/purchases", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		ps.CreatePurchase(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, KindAlreadySold, resp.Kind)
	})
}
