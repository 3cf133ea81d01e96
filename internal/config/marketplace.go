package config

import (
	"os"
	"strconv"
	"time"
)

type MarketplaceConfig struct {
	TokenName       string
	TokenSymbol     string
	TokenDecimals   int
	InitialSupply   int64
	TreasuryAddress string
	PaymentTimeout  time.Duration
	UploadDir       string
	MaxUploadBytes  int64
	QRCodeTimeout   time.Duration
}

func LoadMarketplaceConfig() *MarketplaceConfig {
	return &MarketplaceConfig{
		TokenName:       getEnv("TOKEN_NAME", "UniGallery Token"),
		TokenSymbol:     getEnv("TOKEN_SYMBOL", "UGT"),
		TokenDecimals:   getEnvAsInt("TOKEN_DECIMALS", 18),
		InitialSupply:   getEnvAsInt64("TOKEN_INITIAL_SUPPLY", 1_000_000),
		TreasuryAddress: getEnv("TREASURY_ADDRESS", "0xtreasury"),
		PaymentTimeout:  getEnvAsDuration("PAYMENT_TIMEOUT", 30*time.Second),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 50*1024*1024),
		QRCodeTimeout:   getEnvAsDuration("QR_CODE_TIMEOUT", 5*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
