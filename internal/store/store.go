package store

import (
	"context"
	"errors"

	"github.com/modelmart/backend/internal/models"
)

var (
	ErrNotFound    = errors.New("listing not found")
	ErrAlreadySold = errors.New("listing already sold")
)

// Store holds listings and their lifecycle state. Implementations must
// serialize concurrent MarkSold calls on the same listing so exactly one
// succeeds; every later call gets ErrAlreadySold.
type Store interface {
	Create(ctx context.Context, listing *models.Listing) error
	List(ctx context.Context) ([]models.Listing, error)
	Get(ctx context.Context, id int64) (*models.Listing, error)
	MarkSold(ctx context.Context, id int64) (*models.Listing, error)
}
