package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jumak/jumak-backend/pkg/database"
)

// Draw records how much a single batch contributed to a consumption
type Draw struct {
	BatchID     int64  `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

// Consumption is one immutable entry in the consumption journal
type Consumption struct {
	ID        string          `db:"id" json:"id"`
	ItemID    int64           `db:"item_id" json:"item_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Reason    *string         `db:"reason" json:"reason,omitempty"`
	DrawsJSON json.RawMessage `db:"draws" json:"-"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`

	Draws []Draw `db:"-" json:"draws"`
}

// ConsumptionRepository handles the append-only consumption journal
type ConsumptionRepository struct {
	db *database.DB
}

// NewConsumptionRepository creates a new consumption repository
func NewConsumptionRepository(db *database.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// CreateTx appends a consumption record inside a transaction
func (r *ConsumptionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, c *Consumption) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	draws, err := json.Marshal(c.Draws)
	if err != nil {
		return err
	}
	c.DrawsJSON = draws

	query := `
		INSERT INTO consumptions (id, item_id, quantity, reason, draws)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return tx.QueryRowxContext(ctx, query,
		c.ID, c.ItemID, c.Quantity, c.Reason, c.DrawsJSON,
	).Scan(&c.CreatedAt)
}

// ListByItem lists consumption records for an item, newest first
func (r *ConsumptionRepository) ListByItem(ctx context.Context, itemID int64, limit int) ([]*Consumption, error) {
	var records []*Consumption
	query := `
		SELECT id, item_id, quantity, reason, draws, created_at
		FROM consumptions
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &records, query, itemID, limit); err != nil {
		return nil, err
	}

	for _, c := range records {
		if len(c.DrawsJSON) > 0 {
			if err := json.Unmarshal(c.DrawsJSON, &c.Draws); err != nil {
				return nil, err
			}
		}
	}

	return records, nil
}
