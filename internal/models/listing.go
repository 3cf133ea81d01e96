package models

import "time"

// Listing lifecycle statuses. A listing moves available -> sold exactly
// once and never back.
const (
	ListingAvailable = "available"
	ListingSold      = "sold"
)

// Listing is a digital asset offered for sale, priced in the marketplace
// token's smallest unit.
type Listing struct {
	ID          int64      `json:"id" db:"id"`
	Name        string     `json:"name" db:"name" validate:"required"`
	Description string     `json:"description" db:"description" validate:"required"`
	Price       int64      `json:"price" db:"price" validate:"required,gt=0"`
	Seller      string     `json:"seller" db:"seller" validate:"required"`
	AssetRef    string     `json:"assetRef" db:"asset_ref" validate:"required"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	SoldAt      *time.Time `json:"soldAt,omitempty" db:"sold_at"`
}
