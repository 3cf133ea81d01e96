package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmart/backend/internal/store"
)

func TestQRService_GeneratePaymentQR(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	t.Run("issues a code for an available listing", func(t *testing.T) {
		listingStore := store.NewMemory()
		listing := seedListing(t, listingStore, "0xseller", 100)

		redisClient, redisMock := redismock.NewClientMock()
		redisMock.Regexp().ExpectSet(`qr:.+`, `.+`, cfg.QRCodeTimeout).SetVal("OK")

		qs := NewQRService(listingStore, redisClient, cfg)

		code, image, err := qs.GeneratePaymentQR(ctx, listing.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, image)

		// The code decodes to the payment request the wallet will act on.
		payload, err := base64.URLEncoding.DecodeString(code)
		require.NoError(t, err)
		var request map[string]any
		require.NoError(t, json.Unmarshal(payload, &request))
		assert.Equal(t, float64(listing.ID), request["listingId"])
		assert.Equal(t, "0xseller", request["seller"])
		assert.Equal(t, float64(100), request["amount"])
		assert.NotEmpty(t, request["nonce"])

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("rejects sold listings", func(t *testing.T) {
		listingStore := store.NewMemory()
		listing := seedListing(t, listingStore, "0xseller", 100)
		_, err := listingStore.MarkSold(ctx, listing.ID)
		require.NoError(t, err)

		redisClient, _ := redismock.NewClientMock()
		qs := NewQRService(listingStore, redisClient, cfg)

		_, _, err = qs.GeneratePaymentQR(ctx, listing.ID)
		assert.ErrorIs(t, err, store.ErrAlreadySold)
	})

	t.Run("rejects unknown listings", func(t *testing.T) {
		redisClient, _ := redismock.NewClientMock()
		qs := NewQRService(store.NewMemory(), redisClient, cfg)

		_, _, err := qs.GeneratePaymentQR(ctx, 42)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("unavailable without redis", func(t *testing.T) {
		qs := NewQRService(store.NewMemory(), nil, cfg)

		_, _, err := qs.GeneratePaymentQR(ctx, 1)
		assert.Error(t, err)
	})
}

func TestQRService_ProcessPaymentQR(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	t.Run("consumes a stored code once", func(t *testing.T) {
		payload := `{"listingId":1,"seller":"0xseller","amount":100}`

		redisClient, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("qr:token").SetVal(payload)
		redisMock.ExpectDel("qr:token").SetVal(1)

		qs := NewQRService(store.NewMemory(), redisClient, cfg)

		request, err := qs.ProcessPaymentQR(ctx, "token")
		require.NoError(t, err)
		assert.Equal(t, "0xseller", request["seller"])
		assert.Equal(t, float64(100), request["amount"])

		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired or unknown code", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("qr:stale").RedisNil()

		qs := NewQRService(store.NewMemory(), redisClient, cfg)

		_, err := qs.ProcessPaymentQR(ctx, "stale")
		assert.EqualError(t, err, "invalid or expired QR code")
	})
}
