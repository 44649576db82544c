package database

import (
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/jumak/jumak-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "min_quantity_non_negative"):
		return errors.Validation(map[string]string{
			"min_quantity": "must not be negative",
		})

	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{
			"quantity": "must be greater than zero",
		})

	case strings.Contains(constraint, "used_within_quantity"):
		return errors.Validation(map[string]string{
			"used_quantity": "must be between zero and the batch quantity",
		})

	case strings.Contains(constraint, "purchase_price_non_negative"):
		return errors.Validation(map[string]string{
			"purchase_price": "must not be negative",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapUniqueConstraint maps unique constraint violations to domain errors.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "items_name"):
		return &errors.AppError{
			Err:        errors.ErrDuplicateItem,
			Code:       "DUPLICATE_ITEM",
			Message:    "an item with this name already exists",
			StatusCode: http.StatusConflict,
		}
	case strings.Contains(constraint, "batch_number"):
		return errors.Conflict("a batch with this batch number already exists")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}
