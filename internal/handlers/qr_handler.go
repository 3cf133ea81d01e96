package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/modelmart/backend/internal/middleware"
	"github.com/modelmart/backend/internal/services"
)

type QRHandler struct {
	service   *services.QRService
	validator *services.ValidationHelper
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR generates a payment-request QR code for a listing
// @Summary Generate payment QR
// @Description Generate a single-use payment-request QR code for an available listing
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{listingId=int64} true "QR generation request"
// @Success 200 {object} object{qrCode=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	address, ok := r.Context().Value(middleware.AddressKey).(string)
	if !ok || address == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		ListingID int64 `json:"listingId" validate:"required,gt=0"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	qrCode, qrImage, err := h.service.GeneratePaymentQR(r.Context(), req.ListingID)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"qrCode":  qrCode,
		"qrImage": qrImage,
	})
}

// ProcessQR processes a scanned payment-request QR code
// @Summary Process payment QR
// @Description Consume a scanned payment-request QR code; each code is single use
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR processing request"
// @Success 200 {object} object{listingId=int64,seller=string,amount=int64}
// @Failure 400 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessPaymentQR(r.Context(), req.QRData)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
