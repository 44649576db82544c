package service

import (
	"github.com/jumak/jumak-backend/internal/inventory/repository"
)

// allocate plans a FIFO draw of needed units across the given batches.
// Batches must already be filtered to unexpired, unexhausted ones and
// ordered earliest expiration first with insertion order breaking ties.
// Returns nil when the batches cannot cover the requested quantity.
func allocate(batches []*repository.Batch, needed int) []repository.Draw {
	if needed <= 0 {
		return nil
	}

	total := 0
	for _, b := range batches {
		total += b.AvailableQuantity()
	}
	if total < needed {
		return nil
	}

	draws := make([]repository.Draw, 0, len(batches))
	remaining := needed
	for _, b := range batches {
		if remaining == 0 {
			break
		}

		take := b.AvailableQuantity()
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}

		draws = append(draws, repository.Draw{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
		})
		remaining -= take
	}

	return draws
}
