package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/modelmart/backend/internal/config"
	"github.com/modelmart/backend/internal/models"
	"github.com/modelmart/backend/internal/store"
)

// QRService issues single-use payment-request codes for available
// listings. The payload a wallet scans carries the seller address and the
// listing price so the buyer signs the right transfer.
type QRService struct {
	store   store.Store
	redis   *redis.Client
	timeout time.Duration
}

func NewQRService(listingStore store.Store, redisClient *redis.Client, cfg *config.MarketplaceConfig) *QRService {
	return &QRService{
		store:   listingStore,
		redis:   redisClient,
		timeout: cfg.QRCodeTimeout,
	}
}

func (s *QRService) GeneratePaymentQR(ctx context.Context, listingID int64) (string, string, error) {
	if s.redis == nil {
		return "", "", fmt.Errorf("payment QR codes unavailable without redis")
	}

	listing, err := s.store.Get(ctx, listingID)
	if err != nil {
		return "", "", err
	}
	if listing.Status != models.ListingAvailable {
		return "", "", store.ErrAlreadySold
	}

	qrData := map[string]any{
		"listingId": listing.ID,
		"seller":    listing.Seller,
		"amount":    listing.Price,
		"timestamp": time.Now().Unix(),
		"nonce":     s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", qrCode)
	if err := s.redis.Set(ctx, key, jsonData, s.timeout).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return qrCode, qrImage, nil
}

// ProcessPaymentQR consumes a scanned code; each code is single use.
func (s *QRService) ProcessPaymentQR(ctx context.Context, qrData string) (map[string]any, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("payment QR codes unavailable without redis")
	}

	key := fmt.Sprintf("qr:%s", qrData)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
