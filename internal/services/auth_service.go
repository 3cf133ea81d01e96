package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// AuthService issues bearer tokens bound to a wallet address. Signature
// verification of the wallet itself happens in the browser extension; the
// API only needs a session token to rate-scope QR issuance.
type AuthService struct {
	validator *ValidationHelper
}

func NewAuthService() *AuthService {
	return &AuthService{validator: NewValidationHelper()}
}

// IssueToken issues a JWT for a wallet address
// @Summary Issue session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{address=string} true "Wallet address"
// @Success 200 {object} object{token=string,expiresAt=string}
// @Failure 400 {object} ErrorResponse
// @Router /auth/token [post]
func (as *AuthService) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address" validate:"required"`
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

	if err := as.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	expiryHours := viper.GetInt("jwt.expiry_hours")
	if expiryHours <= 0 {
		expiryHours = 24
	}
	expiresAt := time.Now().Add(time.Duration(expiryHours) * time.Hour)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"address": req.Address,
		"exp":     expiresAt.Unix(),
	})

	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	if err != nil {
		log.Printf("[AUTH] Failed to sign token: %v", err)
		SendErrorResponse(w, "Failed to issue token", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token":     signed,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}
