// internal/services/availability.go
package services

import (
	"context"
	"fmt"

	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/repository"
)

// Availability is the computed stock of one book.
type Availability struct {
	BookID          uint `json:"book_id"`
	TotalQuantity   int  `json:"total_quantity"`
	ActiveLoans     int  `json:"active_loans"`
	AvailableCopies int  `json:"available_copies"`
}

func (a Availability) IsAvailable() bool {
	return a.AvailableCopies > 0
}

// AvailabilityCalculator derives free copies from the current loans. Nothing
// is cached: every call reads the loans through the given counter, which
// inside a transaction is the transaction itself.
type AvailabilityCalculator struct{}

func (AvailabilityCalculator) AvailableCopies(ctx context.Context, loans repository.LoanCounter, book models.Book) (int, error) {
	counts, err := loans.CountActiveLoans(ctx, []uint{book.ID})
	if err != nil {
		return 0, err
	}
	return book.TotalQuantity - counts[book.ID], nil
}

// ForBooks computes availability for several books with one count query.
func (AvailabilityCalculator) ForBooks(ctx context.Context, loans repository.LoanCounter, books []models.Book) (map[uint]Availability, error) {
	ids := make([]uint, len(books))
	for i, book := range books {
		ids[i] = book.ID
	}
	counts, err := loans.CountActiveLoans(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}

	result := make(map[uint]Availability, len(books))
	for _, book := range books {
		result[book.ID] = Availability{
			BookID:          book.ID,
			TotalQuantity:   book.TotalQuantity,
			ActiveLoans:     counts[book.ID],
			AvailableCopies: book.TotalQuantity - counts[book.ID],
		}
	}
	return result, nil
}

// Check resolves ids against the non-deleted books in found and reports the
// ids that do not exist and the ids with no free copy.
func (c AvailabilityCalculator) Check(ctx context.Context, loans repository.LoanCounter, ids []uint, found []models.Book) (UnavailableBooks, error) {
	var report UnavailableBooks

	byID := make(map[uint]struct{}, len(found))
	for _, book := range found {
		byID[book.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			report.NotFound = append(report.NotFound, id)
		}
	}

	stock, err := c.ForBooks(ctx, loans, found)
	if err != nil {
		return report, err
	}
	for _, id := range ids {
		if a, ok := stock[id]; ok && !a.IsAvailable() {
			report.Unavailable = append(report.Unavailable, id)
		}
	}
	return report, nil
}
