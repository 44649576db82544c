package service

import (
	"time"

	"github.com/jumak/jumak-backend/internal/inventory/repository"
)

// totalAvailable sums the undrawn quantity over batches that have not
// expired. A batch expiring today still counts.
func totalAvailable(batches []*repository.Batch, today time.Time) int {
	total := 0
	for _, b := range batches {
		if b.IsExpired(today) {
			continue
		}
		total += b.AvailableQuantity()
	}
	return total
}

// expiringSoon returns the unexpired, unexhausted batches whose expiration
// falls within horizonDays from today, both ends inclusive.
func expiringSoon(batches []*repository.Batch, horizonDays int, today time.Time) []*repository.Batch {
	var result []*repository.Batch
	for _, b := range batches {
		if b.IsExhausted() || b.IsExpired(today) {
			continue
		}
		if b.DaysUntilExpiration(today) <= horizonDays {
			result = append(result, b)
		}
	}
	return result
}
