// internal/services/borrowing_views.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/repository"
	"github.com/javajoker/library-backend/internal/utils"
)

type BorrowingItemView struct {
	ID              uint       `json:"id"`
	BookID          uint       `json:"book_id"`
	BookTitle       string     `json:"book_title"`
	DueDate         *time.Time `json:"due_date"`
	OriginalDueDate *time.Time `json:"original_due_date"`
	ReturnedDate    *time.Time `json:"returned_date"`
	IsExtensionUsed bool       `json:"is_extension_used"`
	CanExtend       bool       `json:"can_extend"`
}

type BorrowingRequestListView struct {
	ID            uint                 `json:"id"`
	RequestorID   uint                 `json:"requestor_id"`
	RequestorName string               `json:"requestor_name"`
	ApproverID    *uint                `json:"approver_id,omitempty"`
	ApproverName  string               `json:"approver_name,omitempty"`
	Status        models.RequestStatus `json:"status"`
	DateRequested time.Time            `json:"date_requested"`
	DateProcessed *time.Time           `json:"date_processed"`
	DueDate       *time.Time           `json:"due_date"`
	BookCount     int                  `json:"book_count"`
	BookTitles    []string             `json:"book_titles"`
}

type BorrowingRequestDetailView struct {
	BorrowingRequestListView
	RejectionReason string              `json:"rejection_reason,omitempty"`
	CanCancel       bool                `json:"can_cancel"`
	Items           []BorrowingItemView `json:"items"`
}

// BookIDs returns the book ids of the items in order.
func (v *BorrowingRequestDetailView) BookIDs() []uint {
	ids := make([]uint, len(v.Items))
	for i, item := range v.Items {
		ids[i] = item.BookID
	}
	return ids
}

// viewMapper resolves display names and titles at mapping time. Lookup
// failures degrade to empty names, since the mapped data was already read
// or committed.
type viewMapper struct {
	store repository.Store
	log   logrus.FieldLogger
}

type viewLookup struct {
	users map[uint]string
	books map[uint]string
}

func (m viewMapper) lookup(ctx context.Context, requests []models.BorrowingRequest) viewLookup {
	lookup := viewLookup{
		users: make(map[uint]string),
		books: make(map[uint]string),
	}

	var userIDs, bookIDs []uint
	for _, req := range requests {
		userIDs = append(userIDs, req.RequestorID)
		if req.ApproverID != nil {
			userIDs = append(userIDs, *req.ApproverID)
		}
		bookIDs = append(bookIDs, req.BookIDs()...)
	}

	users, err := m.store.FindUsersByIDs(ctx, repository.UniqueIDs(userIDs))
	if err != nil {
		m.log.WithError(err).Warn("Failed to load user names for borrowing requests")
	}
	for _, user := range users {
		lookup.users[user.ID] = user.DisplayName()
	}

	books, err := m.store.FindBooksIncludingDeleted(ctx, repository.UniqueIDs(bookIDs))
	if err != nil {
		m.log.WithError(err).Warn("Failed to load book titles for borrowing requests")
	}
	for _, book := range books {
		lookup.books[book.ID] = book.Title
	}

	return lookup
}

func (l viewLookup) listView(req models.BorrowingRequest) BorrowingRequestListView {
	view := BorrowingRequestListView{
		ID:            req.ID,
		RequestorID:   req.RequestorID,
		RequestorName: l.users[req.RequestorID],
		ApproverID:    req.ApproverID,
		Status:        req.Status,
		DateRequested: req.DateRequested,
		DateProcessed: req.DateProcessed,
		DueDate:       req.DueDate,
		BookCount:     len(req.Items),
		BookTitles:    make([]string, 0, len(req.Items)),
	}
	if req.ApproverID != nil {
		view.ApproverName = l.users[*req.ApproverID]
	}
	for _, item := range req.Items {
		view.BookTitles = append(view.BookTitles, l.books[item.BookID])
	}
	return view
}

func (l viewLookup) detailView(req models.BorrowingRequest) BorrowingRequestDetailView {
	view := BorrowingRequestDetailView{
		BorrowingRequestListView: l.listView(req),
		RejectionReason:          req.RejectionReason,
		CanCancel:                req.Status.CanTransitionTo(models.RequestStatusCancelled),
		Items:                    make([]BorrowingItemView, 0, len(req.Items)),
	}
	approved := req.Status == models.RequestStatusApproved
	for _, item := range req.Items {
		view.Items = append(view.Items, BorrowingItemView{
			ID:              item.ID,
			BookID:          item.BookID,
			BookTitle:       l.books[item.BookID],
			DueDate:         item.DueDate,
			OriginalDueDate: item.OriginalDueDate,
			ReturnedDate:    item.ReturnedDate,
			IsExtensionUsed: item.IsExtensionUsed,
			CanExtend:       approved && item.CanExtend(),
		})
	}
	return view
}

func (m viewMapper) detail(ctx context.Context, req *models.BorrowingRequest) *BorrowingRequestDetailView {
	view := m.lookup(ctx, []models.BorrowingRequest{*req}).detailView(*req)
	return &view
}

func (m viewMapper) page(ctx context.Context, requests []models.BorrowingRequest, total int64, params utils.PaginationParams) utils.PaginationResult {
	lookup := m.lookup(ctx, requests)
	views := make([]BorrowingRequestListView, 0, len(requests))
	for _, req := range requests {
		views = append(views, lookup.listView(req))
	}
	return utils.CreatePaginationResult(views, total, params)
}
