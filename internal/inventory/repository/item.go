package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jumak/jumak-backend/pkg/database"
	"github.com/jumak/jumak-backend/pkg/errors"
)

// Item represents a catalog entry for a tracked ingredient
type Item struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Unit            string    `db:"unit" json:"unit"`
	Category        *string   `db:"category" json:"category,omitempty"`
	MinQuantity     int       `db:"min_quantity" json:"min_quantity"`
	CurrentQuantity int       `db:"current_quantity" json:"current_quantity"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the item is at or below its restock threshold
func (i *Item) IsLowStock() bool {
	return i.CurrentQuantity <= i.MinQuantity
}

// ItemRepository handles item catalog persistence
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, name, unit, category, min_quantity, current_quantity, is_active, created_at, updated_at`

// Create creates a new catalog item
func (r *ItemRepository) Create(ctx context.Context, item *Item) error {
	query := `
		INSERT INTO items (name, unit, category, min_quantity, current_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		item.Name, item.Unit, item.Category, item.MinQuantity,
		item.CurrentQuantity, item.IsActive,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id int64) (*Item, error) {
	var item Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// GetByName gets an active item by its catalog name
func (r *ItemRepository) GetByName(ctx context.Context, name string) (*Item, error) {
	var item Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE name = $1 AND is_active = true`
	if err := r.db.GetContext(ctx, &item, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// GetByNameForUpdateTx locks the item row for the duration of the transaction.
// Consume and register serialize per item on this lock.
func (r *ItemRepository) GetByNameForUpdateTx(ctx context.Context, tx *sqlx.Tx, name string) (*Item, error) {
	var item Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE name = $1 AND is_active = true FOR UPDATE`
	if err := tx.GetContext(ctx, &item, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("item")
		}
		return nil, err
	}
	return &item, nil
}

// List lists catalog items with pagination
func (r *ItemRepository) List(ctx context.Context, page, perPage int, category string) ([]*Item, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM items WHERE is_active = true`
	args := []interface{}{}

	if category != "" {
		countQuery += ` AND category = $1`
		args = append(args, category)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query := `SELECT ` + itemColumns + ` FROM items WHERE is_active = true`

	if category != "" {
		query += ` AND category = $1 ORDER BY name LIMIT $2 OFFSET $3`
		args = append(args, perPage, offset)
	} else {
		query += ` ORDER BY name LIMIT $1 OFFSET $2`
		args = append(args, perPage, offset)
	}

	var items []*Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// GetAllActive gets all active items
func (r *ItemRepository) GetAllActive(ctx context.Context) ([]*Item, error) {
	var items []*Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE is_active = true ORDER BY name`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}

// Update updates the mutable catalog fields of an item
func (r *ItemRepository) Update(ctx context.Context, item *Item) error {
	query := `
		UPDATE items SET
			unit = $2, category = $3, min_quantity = $4, updated_at = NOW()
		WHERE id = $1 AND is_active = true
	`

	result, err := r.db.ExecContext(ctx, query,
		item.ID, item.Unit, item.Category, item.MinQuantity,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// Deactivate soft-deactivates an item; its batches are retained
func (r *ItemRepository) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE items SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active = true`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("item")
	}

	return nil
}

// UpdateQuantityCacheTx refreshes the cached availability total inside a transaction
func (r *ItemRepository) UpdateQuantityCacheTx(ctx context.Context, tx *sqlx.Tx, itemID int64, total int) error {
	query := `UPDATE items SET current_quantity = $2, updated_at = NOW() WHERE id = $1`
	_, err := tx.ExecContext(ctx, query, itemID, total)
	return err
}
