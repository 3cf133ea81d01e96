package store

import (
	"context"
	"sync"
	"time"

	"github.com/modelmart/backend/internal/models"
)

// Memory is the default process-lifetime listing store. A restart loses
// all listings and ids reset; substitute Postgres when persistence is
// required.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	order    []int64
	listings map[int64]*models.Listing
}

func NewMemory() *Memory {
	return &Memory{
		nextID:   1,
		listings: make(map[int64]*models.Listing),
	}
}

func (m *Memory) Create(_ context.Context, listing *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing.ID = m.nextID
	m.nextID++
	listing.Status = models.ListingAvailable
	listing.CreatedAt = time.Now()

	stored := *listing
	m.listings[stored.ID] = &stored
	m.order = append(m.order, stored.ID)
	return nil
}

func (m *Memory) List(_ context.Context) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Listing, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.listings[id])
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, id int64) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *listing
	return &copied, nil
}

// MarkSold flips available -> sold. The store rejects a duplicate
// transition rather than silently succeeding, so double mark-as-sold is
// never observable as two successes.
func (m *Memory) MarkSold(_ context.Context, id int64) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listing, ok := m.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if listing.Status == models.ListingSold {
		return nil, ErrAlreadySold
	}

	now := time.Now()
	listing.Status = models.ListingSold
	listing.SoldAt = &now

	copied := *listing
	return &copied, nil
}
