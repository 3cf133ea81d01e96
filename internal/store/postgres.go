package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/modelmart/backend/internal/models"
)

const listingSchema = `
	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		price BIGINT NOT NULL CHECK (price > 0),
		seller TEXT NOT NULL,
		asset_ref TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'available',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sold_at TIMESTAMPTZ
	)`

// Postgres is the durable listing store. The status flip relies on a
// conditional UPDATE so concurrent MarkSold calls resolve in the database,
// not in application memory.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the listings table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, listingSchema); err != nil {
		return fmt.Errorf("failed to ensure listings schema: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, listing *models.Listing) error {
	listing.Status = models.ListingAvailable
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO listings (name, description, price, seller, asset_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, listing.Name, listing.Description, listing.Price, listing.Seller,
		listing.AssetRef, listing.Status).Scan(&listing.ID, &listing.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]models.Listing, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, description, price, seller, asset_ref, status, created_at, sold_at
		FROM listings
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		var l models.Listing
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.Price, &l.Seller,
			&l.AssetRef, &l.Status, &l.CreatedAt, &l.SoldAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, id int64) (*models.Listing, error) {
	var l models.Listing
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, seller, asset_ref, status, created_at, sold_at
		FROM listings
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Description, &l.Price, &l.Seller,
		&l.AssetRef, &l.Status, &l.CreatedAt, &l.SoldAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (p *Postgres) MarkSold(ctx context.Context, id int64) (*models.Listing, error) {
	var l models.Listing
	err := p.db.QueryRowContext(ctx, `
		UPDATE listings
		SET status = $1, sold_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING id, name, description, price, seller, asset_ref, status, created_at, sold_at
	`, models.ListingSold, id, models.ListingAvailable).Scan(
		&l.ID, &l.Name, &l.Description, &l.Price, &l.Seller,
		&l.AssetRef, &l.Status, &l.CreatedAt, &l.SoldAt)
	if err == nil {
		return &l, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// No row updated: either the listing is unknown or it was sold first.
	var status string
	err = p.db.QueryRowContext(ctx, `SELECT status FROM listings WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if status == models.ListingSold {
		return nil, ErrAlreadySold
	}
	return nil, fmt.Errorf("listing %d in unexpected status %q", id, status)
}
