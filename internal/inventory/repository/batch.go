package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jumak/jumak-backend/pkg/database"
	"github.com/jumak/jumak-backend/pkg/errors"
)

// Batch represents one received delivery in the append-only ledger.
// Quantity never changes after insert; used_quantity only grows as the
// allocator draws stock.
type Batch struct {
	ID             int64     `db:"id" json:"id"`
	ItemID         int64     `db:"item_id" json:"item_id"`
	BatchNumber    string    `db:"batch_number" json:"batch_number"`
	Quantity       int       `db:"quantity" json:"quantity"`
	UsedQuantity   int       `db:"used_quantity" json:"used_quantity"`
	ExpirationDate time.Time `db:"expiration_date" json:"expiration_date"`
	ReceivedDate   time.Time `db:"received_date" json:"received_date"`
	Supplier       *string   `db:"supplier" json:"supplier,omitempty"`
	PurchasePrice  *float64  `db:"purchase_price" json:"purchase_price,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AvailableQuantity returns the undrawn remainder of the batch
func (b *Batch) AvailableQuantity() int {
	return b.Quantity - b.UsedQuantity
}

// IsExhausted reports whether the batch has been fully drawn
func (b *Batch) IsExhausted() bool {
	return b.AvailableQuantity() <= 0
}

// IsExpired reports whether the batch is past its expiration date.
// A batch expiring today still counts as usable.
func (b *Batch) IsExpired(today time.Time) bool {
	return b.ExpirationDate.Before(dateOnly(today))
}

// DaysUntilExpiration returns whole days from today to the expiration date
func (b *Batch) DaysUntilExpiration(today time.Time) int {
	return int(b.ExpirationDate.Sub(dateOnly(today)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BatchRepository handles batch ledger persistence
type BatchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *database.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, item_id, batch_number, quantity, used_quantity, expiration_date, received_date, supplier, purchase_price, created_at`

// CreateTx appends a batch to the ledger inside a transaction
func (r *BatchRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, batch *Batch) error {
	query := `
		INSERT INTO batches (
			item_id, batch_number, quantity, used_quantity,
			expiration_date, received_date, supplier, purchase_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := tx.QueryRowxContext(ctx, query,
		batch.ItemID, batch.BatchNumber, batch.Quantity, batch.UsedQuantity,
		batch.ExpirationDate, batch.ReceivedDate, batch.Supplier, batch.PurchasePrice,
	).Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a batch by ID
func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*Batch, error) {
	var batch Batch
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = $1`
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("batch")
		}
		return nil, err
	}
	return &batch, nil
}

// ListByItem lists batches for an item in FIFO order: earliest expiration
// first, insertion order breaking ties. Exhausted and expired batches can
// be filtered out for allocation and availability reads.
func (r *BatchRepository) ListByItem(ctx context.Context, itemID int64, includeExhausted, onlyUnexpired bool, today time.Time) ([]*Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE item_id = $1`
	args := []interface{}{itemID}

	if !includeExhausted {
		query += ` AND used_quantity < quantity`
	}
	if onlyUnexpired {
		query += ` AND expiration_date >= $2`
		args = append(args, dateOnly(today))
	}
	query += ` ORDER BY expiration_date, id`

	var batches []*Batch
	if err := r.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListByItemForUpdateTx returns the unexpired, unexhausted batches of an item
// in FIFO order, locked for the duration of the transaction.
func (r *BatchRepository) ListByItemForUpdateTx(ctx context.Context, tx *sqlx.Tx, itemID int64, today time.Time) ([]*Batch, error) {
	query := `
		SELECT ` + batchColumns + ` FROM batches
		WHERE item_id = $1 AND used_quantity < quantity AND expiration_date >= $2
		ORDER BY expiration_date, id
		FOR UPDATE
	`
	var batches []*Batch
	if err := tx.SelectContext(ctx, &batches, query, itemID, dateOnly(today)); err != nil {
		return nil, err
	}
	return batches, nil
}

// AddUsedTx advances a batch's used_quantity inside a transaction.
// The CHECK constraint guards against drawing past the batch quantity.
func (r *BatchRepository) AddUsedTx(ctx context.Context, tx *sqlx.Tx, batchID int64, used int) error {
	query := `UPDATE batches SET used_quantity = used_quantity + $2 WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, batchID, used)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("batch")
	}

	return nil
}

// CountForItemOnDateTx counts batches received for an item on a given date.
// Used to derive the daily sequence part of new batch numbers.
func (r *BatchRepository) CountForItemOnDateTx(ctx context.Context, tx *sqlx.Tx, itemID int64, received time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM batches WHERE item_id = $1 AND received_date = $2`
	if err := tx.GetContext(ctx, &count, query, itemID, dateOnly(received)); err != nil {
		return 0, err
	}
	return count, nil
}

// TotalAvailable sums the undrawn quantity across unexpired batches of an item
func (r *BatchRepository) TotalAvailable(ctx context.Context, itemID int64, today time.Time) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(quantity - used_quantity) FROM batches
		WHERE item_id = $1 AND used_quantity < quantity AND expiration_date >= $2
	`
	if err := r.db.GetContext(ctx, &total, query, itemID, dateOnly(today)); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// TotalAvailableTx is TotalAvailable within a transaction
func (r *BatchRepository) TotalAvailableTx(ctx context.Context, tx *sqlx.Tx, itemID int64, today time.Time) (int, error) {
	var total sql.NullInt64
	query := `
		SELECT SUM(quantity - used_quantity) FROM batches
		WHERE item_id = $1 AND used_quantity < quantity AND expiration_date >= $2
	`
	if err := tx.GetContext(ctx, &total, query, itemID, dateOnly(today)); err != nil {
		return 0, err
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// ListExpiring lists unexhausted batches of active items expiring within
// the horizon, today inclusive on both ends
func (r *BatchRepository) ListExpiring(ctx context.Context, horizonDays int, today time.Time) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT b.id, b.item_id, b.batch_number, b.quantity, b.used_quantity,
		       b.expiration_date, b.received_date, b.supplier, b.purchase_price, b.created_at
		FROM batches b
		JOIN items i ON i.id = b.item_id
		WHERE i.is_active = true
		  AND b.used_quantity < b.quantity
		  AND b.expiration_date >= $1
		  AND b.expiration_date <= $1 + $2 * INTERVAL '1 day'
		ORDER BY b.expiration_date, b.id
	`
	if err := r.db.SelectContext(ctx, &batches, query, dateOnly(today), horizonDays); err != nil {
		return nil, err
	}
	return batches, nil
}

// ListExpired lists unexhausted batches of active items already past expiration
func (r *BatchRepository) ListExpired(ctx context.Context, today time.Time) ([]*Batch, error) {
	var batches []*Batch
	query := `
		SELECT b.id, b.item_id, b.batch_number, b.quantity, b.used_quantity,
		       b.expiration_date, b.received_date, b.supplier, b.purchase_price, b.created_at
		FROM batches b
		JOIN items i ON i.id = b.item_id
		WHERE i.is_active = true
		  AND b.used_quantity < b.quantity
		  AND b.expiration_date < $1
		ORDER BY b.expiration_date, b.id
	`
	if err := r.db.SelectContext(ctx, &batches, query, dateOnly(today)); err != nil {
		return nil, err
	}
	return batches, nil
}
