// internal/models/borrowing.go
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusWaiting   RequestStatus = "waiting"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
	RequestStatusReturned  RequestStatus = "returned"
)

// requestTransitions is the complete borrowing request state machine.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusWaiting:  {RequestStatusApproved, RequestStatusRejected, RequestStatusCancelled},
	RequestStatusApproved: {RequestStatusReturned},
}

var (
	ErrInvalidTransition    = errors.New("invalid request status transition")
	ErrItemReturned         = errors.New("book already returned")
	ErrExtensionAlreadyUsed = errors.New("extension already used")
	ErrDueDateNotSet        = errors.New("due date is not set")
)

func ParseRequestStatus(value string) (RequestStatus, error) {
	status := RequestStatus(strings.ToLower(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown request status %q", value)
	}
	return status, nil
}

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestStatusWaiting, RequestStatusApproved, RequestStatusRejected,
		RequestStatusCancelled, RequestStatusReturned:
		return true
	}
	return false
}

func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive reports whether a request in this status counts against the monthly quota.
func (s RequestStatus) IsActive() bool {
	return s == RequestStatusWaiting || s == RequestStatusApproved
}

// ActiveRequestStatuses lists the statuses counted by the monthly quota.
func ActiveRequestStatuses() []RequestStatus {
	return []RequestStatus{RequestStatusWaiting, RequestStatusApproved}
}

type BorrowingRequest struct {
	BaseModel
	RequestorID     uint          `json:"requestor_id" gorm:"not null;index:idx_borrowing_requests_quota,priority:1"`
	ApproverID      *uint         `json:"approver_id"`
	DateRequested   time.Time     `json:"date_requested" gorm:"not null;index;index:idx_borrowing_requests_quota,priority:3"`
	DateProcessed   *time.Time    `json:"date_processed"`
	DueDate         *time.Time    `json:"due_date"`
	Status          RequestStatus `json:"status" gorm:"type:varchar(20);not null;index;index:idx_borrowing_requests_quota,priority:2"`
	RejectionReason string        `json:"rejection_reason,omitempty" gorm:"type:text"`

	// Relationships
	Items []BorrowingRequestItem `json:"items" gorm:"foreignKey:RequestID"`
}

type BorrowingRequestItem struct {
	BaseModel
	RequestID       uint       `json:"request_id" gorm:"not null;index"`
	BookID          uint       `json:"book_id" gorm:"not null;index:idx_borrowing_request_items_active,priority:1"`
	DueDate         *time.Time `json:"due_date"`
	OriginalDueDate *time.Time `json:"original_due_date"`
	ReturnedDate    *time.Time `json:"returned_date" gorm:"index:idx_borrowing_request_items_active,priority:2"`
	IsExtensionUsed bool       `json:"is_extension_used" gorm:"not null"`

	// Relationships
	Request *BorrowingRequest `json:"-" gorm:"foreignKey:RequestID"`
}

func (r *BorrowingRequest) BookIDs() []uint {
	ids := make([]uint, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.BookID)
	}
	return ids
}

func (r *BorrowingRequest) IsOwnedBy(userID uint) bool {
	return r.RequestorID == userID
}

func (r *BorrowingRequest) transition(next RequestStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}

// Approve moves a waiting request to approved and starts the loan for every item.
func (r *BorrowingRequest) Approve(approverID uint, now time.Time, loanPeriod time.Duration) error {
	if err := r.transition(RequestStatusApproved); err != nil {
		return err
	}

	dueDate := now.Add(loanPeriod)
	r.ApproverID = &approverID
	r.DateProcessed = &now
	r.DueDate = &dueDate
	for i := range r.Items {
		itemDue := dueDate
		originalDue := dueDate
		r.Items[i].DueDate = &itemDue
		r.Items[i].OriginalDueDate = &originalDue
	}
	return nil
}

func (r *BorrowingRequest) Reject(approverID uint, now time.Time, reason string) error {
	if err := r.transition(RequestStatusRejected); err != nil {
		return err
	}

	r.ApproverID = &approverID
	r.DateProcessed = &now
	r.DueDate = nil
	r.RejectionReason = strings.TrimSpace(reason)
	return nil
}

func (r *BorrowingRequest) Cancel() error {
	return r.transition(RequestStatusCancelled)
}

// MarkReturned closes an approved request once every item is back.
func (r *BorrowingRequest) MarkReturned() error {
	if !r.AllItemsReturned() {
		return fmt.Errorf("%w: request %d still has unreturned items", ErrInvalidTransition, r.ID)
	}
	return r.transition(RequestStatusReturned)
}

func (r *BorrowingRequest) AllItemsReturned() bool {
	if len(r.Items) == 0 {
		return false
	}
	for _, item := range r.Items {
		if !item.IsReturned() {
			return false
		}
	}
	return true
}

func (i *BorrowingRequestItem) IsReturned() bool {
	return i.ReturnedDate != nil
}

// CanExtend reports whether the item is still eligible for its single extension.
// The parent request status is checked by the caller.
func (i *BorrowingRequestItem) CanExtend() bool {
	return !i.IsReturned() && !i.IsExtensionUsed && i.DueDate != nil
}

// Extend pushes the due date once. The pre-extension due date is kept in
// OriginalDueDate if approval did not already record it.
func (i *BorrowingRequestItem) Extend(by time.Duration) error {
	switch {
	case i.IsReturned():
		return ErrItemReturned
	case i.IsExtensionUsed:
		return ErrExtensionAlreadyUsed
	case i.DueDate == nil:
		return ErrDueDateNotSet
	}

	if i.OriginalDueDate == nil {
		original := *i.DueDate
		i.OriginalDueDate = &original
	}
	newDue := i.DueDate.Add(by)
	i.DueDate = &newDue
	i.IsExtensionUsed = true
	return nil
}

func (i *BorrowingRequestItem) MarkReturned(now time.Time) error {
	if i.IsReturned() {
		return ErrItemReturned
	}
	i.ReturnedDate = &now
	return nil
}
