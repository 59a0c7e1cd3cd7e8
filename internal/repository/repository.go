// internal/repository/repository.go

// Package repository is the persistence boundary of the borrowing workflow,
// backed by GormStore.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/utils"
)

var ErrNotFound = errors.New("record not found")

// RequestSortFields are the columns a request listing may be ordered by.
// The first entry is the default.
var RequestSortFields = []string{"date_requested", "date_processed", "due_date", "status", "id"}

type RequestFilter struct {
	utils.PaginationParams
	RequestorID   *uint
	Statuses      []models.RequestStatus
	RequestedFrom *time.Time // inclusive
	RequestedTo   *time.Time // exclusive
}

type BookReader interface {
	// FindBooksByIDs returns the non-deleted books among ids. Missing or
	// deleted ids are simply absent from the result.
	FindBooksByIDs(ctx context.Context, ids []uint) ([]models.Book, error)
}

type LoanCounter interface {
	// CountActiveLoans counts, per book, the unreturned items of approved requests.
	CountActiveLoans(ctx context.Context, bookIDs []uint) (map[uint]int, error)
}

type RequestCounter interface {
	// CountActiveRequests counts the user's waiting or approved requests
	// with date_requested in [from, to).
	CountActiveRequests(ctx context.Context, userID uint, from, to time.Time) (int, error)
}

// Tx is the view of the store inside a transaction. Lock* methods hold a row
// lock until the transaction ends.
type Tx interface {
	BookReader
	LoanCounter
	RequestCounter

	LockBooks(ctx context.Context, ids []uint) ([]models.Book, error)
	LockRequest(ctx context.Context, id uint) (*models.BorrowingRequest, error)
	FindItemByID(ctx context.Context, id uint) (*models.BorrowingRequestItem, error)

	CreateRequest(ctx context.Context, req *models.BorrowingRequest) error
	// SaveRequest writes the request and all of its items.
	SaveRequest(ctx context.Context, req *models.BorrowingRequest) error
}

type UserStore interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// FindUsersByIDs includes deleted users so old requests keep their names.
	FindUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

type AuditRecorder interface {
	RecordAudit(ctx context.Context, entry *models.AuditLog) error
}

type Store interface {
	BookReader
	LoanCounter
	RequestCounter
	UserStore
	AuditRecorder

	// Transaction runs fn atomically: either every write in fn is committed
	// or none is.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	FindBookByID(ctx context.Context, id uint) (*models.Book, error)
	// FindBooksIncludingDeleted is used for display lookups.
	FindBooksIncludingDeleted(ctx context.Context, ids []uint) ([]models.Book, error)
	FindRequestByID(ctx context.Context, id uint) (*models.BorrowingRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]models.BorrowingRequest, int64, error)
}

func statusStrings(statuses []models.RequestStatus) []string {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return values
}

// UniqueIDs drops zero and repeated ids, keeping the first occurrence order.
func UniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
