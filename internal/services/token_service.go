package services

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/modelmart/backend/internal/ledger"
)

type TokenService struct {
	ledger    *ledger.Ledger
	validator *ValidationHelper
}

func NewTokenService(tokenLedger *ledger.Ledger) *TokenService {
	return &TokenService{
		ledger:    tokenLedger,
		validator: NewValidationHelper(),
	}
}

// GetToken returns token metadata
// @Summary Token metadata
// @Tags token
// @Produce json
// @Success 200 {object} models.TokenInfo
// @Router /token [get]
func (ts *TokenService) GetToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ts.ledger.Info())
}

// GetBalance returns an address balance
// @Summary Balance enquiry
// @Description Balance of an address; unknown addresses hold 0
// @Tags token
// @Produce json
// @Param address query string true "Wallet address"
// @Success 200 {object} object{address=string,balance=int64}
// @Failure 400 {object} ErrorResponse
// @Router /token/balance [get]
func (ts *TokenService) GetBalance(w http.ResponseWriter, r *http.Request) {
	address := ledger.NormalizeAddress(r.URL.Query().Get("address"))
	if address == "" {
		SendErrorResponse(w, "address is required", http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"address": address,
		"balance": ts.ledger.BalanceOf(address),
	})
}

// GetAllowance returns the approved allowance from owner to spender
// @Summary Allowance enquiry
// @Tags token
// @Produce json
// @Param owner query string true "Owner address"
// @Param spender query string true "Spender address"
// @Success 200 {object} object{owner=string,spender=string,allowance=int64}
// @Failure 400 {object} ErrorResponse
// @Router /token/allowance [get]
func (ts *TokenService) GetAllowance(w http.ResponseWriter, r *http.Request) {
	owner := ledger.NormalizeAddress(r.URL.Query().Get("owner"))
	spender := ledger.NormalizeAddress(r.URL.Query().Get("spender"))
	if owner == "" || spender == "" {
		SendErrorResponse(w, "owner and spender are required", http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"owner":     owner,
		"spender":   spender,
		"allowance": ts.ledger.Allowance(owner, spender),
	})
}

// Approve overwrites a spender allowance
// @Summary Approve spender
// @Tags token
// @Accept json
// @Produce json
// @Param request body object{owner=string,spender=string,amount=int64} true "Approval"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Router /token/approve [post]
func (ts *TokenService) Approve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner   string `json:"owner" validate:"required"`
		Spender string `json:"spender" validate:"required"`
		Amount  int64  `json:"amount" validate:"gte=0"`
	}
	if !ts.decode(w, r, &req) {
		return
	}

	if err := ts.ledger.Approve(req.Owner, req.Spender, req.Amount); err != nil {
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// Transfer moves tokens between addresses
// @Summary Transfer tokens
// @Tags token
// @Accept json
// @Produce json
// @Param request body object{sender=string,recipient=string,amount=int64} true "Transfer"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Router /token/transfer [post]
func (ts *TokenService) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sender    string `json:"sender" validate:"required"`
		Recipient string `json:"recipient" validate:"required"`
		Amount    int64  `json:"amount" validate:"required,gt=0"`
	}
	if !ts.decode(w, r, &req) {
		return
	}

	if err := ts.ledger.Transfer(r.Context(), req.Sender, req.Recipient, req.Amount); err != nil {
		log.Printf("[TOKEN] Transfer %s -> %s (%d) rejected: %v", req.Sender, req.Recipient, req.Amount, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// TransferFrom spends an allowance on the owner's behalf
// @Summary Transfer from allowance
// @Tags token
// @Accept json
// @Produce json
// @Param request body object{spender=string,owner=string,recipient=string,amount=int64} true "Delegated transfer"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse
// @Router /token/transfer-from [post]
func (ts *TokenService) TransferFrom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Spender   string `json:"spender" validate:"required"`
		Owner     string `json:"owner" validate:"required"`
		Recipient string `json:"recipient" validate:"required"`
		Amount    int64  `json:"amount" validate:"required,gt=0"`
	}
	if !ts.decode(w, r, &req) {
		return
	}

	if err := ts.ledger.TransferFrom(r.Context(), req.Spender, req.Owner, req.Recipient, req.Amount); err != nil {
		log.Printf("[TOKEN] TransferFrom by %s (%s -> %s, %d) rejected: %v", req.Spender, req.Owner, req.Recipient, req.Amount, err)
		SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// GetRecentTransfer returns the single most recent transfer record
// @Summary Recent transfer
// @Description The most recent successful transfer; 404 before any transfer has occurred
// @Tags token
// @Produce json
// @Success 200 {object} models.TransferRecord
// @Failure 404 {object} ErrorResponse
// @Router /token/recent-transfer [get]
func (ts *TokenService) GetRecentTransfer(w http.ResponseWriter, r *http.Request) {
	rec, ok := ts.ledger.RecentTransfer()
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "no transfers recorded", Kind: KindNotFound})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (ts *TokenService) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := ts.validator.ValidateStruct(req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
