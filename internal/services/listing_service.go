package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/modelmart/backend/internal/config"
	"github.com/modelmart/backend/internal/ledger"
	"github.com/modelmart/backend/internal/models"
	"github.com/modelmart/backend/internal/store"
)

type ListingService struct {
	store     store.Store
	validator *ValidationHelper
	cfg       *config.MarketplaceConfig
}

func NewListingService(listingStore store.Store, cfg *config.MarketplaceConfig) *ListingService {
	return &ListingService{
		store:     listingStore,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// ListModels returns all listings in creation order
// @Summary List models
// @Description Get all model listings in creation order
// @Tags models
// @Produce json
// @Success 200 {array} models.Listing
// @Failure 500 {object} ErrorResponse
// @Router /models [get]
func (s *ListingService) ListModels(w http.ResponseWriter, r *http.Request) {
	listings, err := s.store.List(r.Context())
	if err != nil {
		log.Printf("[LISTING] Failed to list models: %v", err)
		SendErrorResponse(w, "Failed to list models", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listings)
}

// CreateModel creates a new model listing from a multipart form
// @Summary Create model listing
// @Description List a digital model for sale; the uploaded file is stored and referenced by the listing
// @Tags models
// @Accept mpfd
// @Produce json
// @Param name formData string true "Model name"
// @Param description formData string true "Model description"
// @Param price formData int true "Price in token's smallest unit"
// @Param seller formData string true "Seller wallet address"
// @Param file formData file true "Model file"
// @Success 201 {object} models.Listing
// @Failure 400 {object} ErrorResponse
// @Router /models [post]
func (s *ListingService) CreateModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		SendErrorResponse(w, "Invalid multipart form", http.StatusBadRequest, nil)
		return
	}

	price, err := strconv.ParseInt(r.FormValue("price"), 10, 64)
	if err != nil {
		SendErrorResponse(w, "price must be an integer token amount", http.StatusBadRequest, nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		SendErrorResponse(w, "file is required", http.StatusBadRequest, nil)
		return
	}
	defer file.Close()

	listing := models.Listing{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       price,
		Seller:      ledger.NormalizeAddress(r.FormValue("seller")),
	}

	assetRef, err := s.saveAsset(file, header.Filename)
	if err != nil {
		log.Printf("[LISTING] Failed to store uploaded asset: %v", err)
		SendErrorResponse(w, "Failed to store uploaded file", http.StatusInternalServerError, nil)
		return
	}
	listing.AssetRef = assetRef

	if err := s.validator.ValidateStruct(&listing); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := s.store.Create(r.Context(), &listing); err != nil {
		log.Printf("[LISTING] Failed to create listing: %v", err)
		SendErrorResponse(w, "Failed to create listing", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[LISTING] Created listing %d (%s) by %s at price %d", listing.ID, listing.Name, listing.Seller, listing.Price)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(listing)
}

// MarkSold flips a listing to sold
// @Summary Mark listing sold
// @Description Mark a listing as sold; rejects unknown ids and duplicate transitions
// @Tags models
// @Accept json
// @Produce json
// @Param request body object{listingId=int64} true "Listing id"
// @Success 200 {object} object{success=bool,model=models.Listing}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /models/sold [post]
func (s *ListingService) MarkSold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID int64 `json:"listingId" validate:"required,gt=0"`
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

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	listing, err := s.store.MarkSold(r.Context(), req.ListingID)
	if err != nil {
		log.Printf("[LISTING] MarkSold %d rejected: %v", req.ListingID, err)
		SendDomainError(w, err)
		return
	}

	log.Printf("[LISTING] Listing %d marked sold", listing.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"model":   listing,
	})
}

func (s *ListingService) saveAsset(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + filepath.Ext(originalName)
	path := filepath.Join(s.cfg.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write asset file: %w", err)
	}
	return name, nil
}
