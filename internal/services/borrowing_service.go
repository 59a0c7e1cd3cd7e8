// internal/services/borrowing_service.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/library-backend/internal/config"
	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/repository"
	"github.com/javajoker/library-backend/internal/utils"
)

type BorrowingService struct {
	store        repository.Store
	cfg          config.BorrowingConfig
	log          logrus.FieldLogger
	now          func() time.Time
	availability AvailabilityCalculator
	quota        QuotaChecker
	views        viewMapper
}

type CreateBorrowingRequest struct {
	BookIDs []uint `json:"book_ids" validate:"required,min=1,unique,dive,gt=0"`
}

type RejectBorrowingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type BorrowingSearchParams struct {
	utils.PaginationParams
	RequestorID   *uint
	Statuses      []models.RequestStatus
	RequestedFrom *time.Time
	RequestedTo   *time.Time
}

func NewBorrowingService(store repository.Store, cfg config.BorrowingConfig, log logrus.FieldLogger) *BorrowingService {
	return &BorrowingService{
		store:        store,
		cfg:          cfg,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
		availability: AvailabilityCalculator{},
		quota:        QuotaChecker{Limit: cfg.MonthlyRequestLimit},
		views:        viewMapper{store: store, log: log},
	}
}

// WithClock replaces the time source.
func (s *BorrowingService) WithClock(now func() time.Time) *BorrowingService {
	s.now = now
	return s
}

func (s *BorrowingService) clock() time.Time {
	return s.now().UTC()
}

func (s *BorrowingService) loanPeriod() time.Duration {
	return time.Duration(s.cfg.LoanPeriodDays) * 24 * time.Hour
}

func (s *BorrowingService) extension() time.Duration {
	return time.Duration(s.cfg.ExtensionDays) * 24 * time.Hour
}

// fail passes domain failures through and logs everything else as an
// infrastructure failure of the operation.
func (s *BorrowingService) fail(operation string, fields logrus.Fields, err error) error {
	if se, ok := AsServiceError(err); ok {
		return se
	}
	s.log.WithError(err).WithFields(fields).WithField("operation", operation).Error("Borrowing operation failed")
	return infrastructureError(err)
}

func (s *BorrowingService) CreateRequest(ctx context.Context, requestorID uint, req *CreateBorrowingRequest) (*BorrowingRequestDetailView, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, validationError(utils.GetValidationErrors(err))
	}
	if len(req.BookIDs) > s.cfg.MaxBooksPerRequest {
		return nil, tooManyBooksError(s.cfg.MaxBooksPerRequest)
	}

	now := s.clock()
	request := &models.BorrowingRequest{
		RequestorID:   requestorID,
		DateRequested: now,
		Status:        models.RequestStatusWaiting,
		Items:         make([]models.BorrowingRequestItem, 0, len(req.BookIDs)),
	}
	for _, bookID := range req.BookIDs {
		request.Items = append(request.Items, models.BorrowingRequestItem{BookID: bookID})
	}

	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		exceeded, err := s.quota.Exceeded(ctx, tx, requestorID, now)
		if err != nil {
			return err
		}
		if exceeded {
			return quotaExceededError(s.cfg.MonthlyRequestLimit)
		}

		books, err := tx.FindBooksByIDs(ctx, req.BookIDs)
		if err != nil {
			return err
		}
		report, err := s.availability.Check(ctx, tx, req.BookIDs, books)
		if err != nil {
			return err
		}
		if !report.empty() {
			return booksUnavailableError(report)
		}

		return tx.CreateRequest(ctx, request)
	})
	if err != nil {
		return nil, s.fail("CreateRequest", logrus.Fields{"requestor_id": requestorID, "book_ids": req.BookIDs}, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":   request.ID,
		"requestor_id": requestorID,
		"books":        len(request.Items),
	}).Info("Borrowing request created")

	return s.views.detail(ctx, request), nil
}

// ApproveRequest re-checks availability with the request and its books
// locked, so two approvals competing for the last copy cannot both commit.
func (s *BorrowingService) ApproveRequest(ctx context.Context, requestID, approverID uint) (*BorrowingRequestDetailView, error) {
	now := s.clock()

	var approved *models.BorrowingRequest
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		request, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != models.RequestStatusWaiting {
			return alreadyProcessedError(request.Status)
		}

		bookIDs := request.BookIDs()
		books, err := tx.LockBooks(ctx, bookIDs)
		if err != nil {
			return err
		}
		report, err := s.availability.Check(ctx, tx, bookIDs, books)
		if err != nil {
			return err
		}
		if !report.empty() {
			return booksUnavailableError(report)
		}

		if err := request.Approve(approverID, now, s.loanPeriod()); err != nil {
			return invalidStateError(request.Status)
		}
		if err := tx.SaveRequest(ctx, request); err != nil {
			return err
		}
		approved = request
		return nil
	})
	if err != nil {
		return nil, s.fail("ApproveRequest", logrus.Fields{"request_id": requestID, "approver_id": approverID}, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"approver_id": approverID,
		"due_date":    approved.DueDate,
	}).Info("Borrowing request approved")

	return s.views.detail(ctx, approved), nil
}

func (s *BorrowingService) RejectRequest(ctx context.Context, requestID, approverID uint, req *RejectBorrowingRequest) (*BorrowingRequestDetailView, error) {
	var reason string
	if req != nil {
		reason = strings.TrimSpace(req.Reason)
	}
	if err := utils.ValidateStruct(&RejectBorrowingRequest{Reason: reason}); err != nil {
		return nil, validationError(utils.GetValidationErrors(err))
	}

	now := s.clock()

	var rejected *models.BorrowingRequest
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		request, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != models.RequestStatusWaiting {
			return alreadyProcessedError(request.Status)
		}
		if err := request.Reject(approverID, now, reason); err != nil {
			return invalidStateError(request.Status)
		}
		if err := tx.SaveRequest(ctx, request); err != nil {
			return err
		}
		rejected = request
		return nil
	})
	if err != nil {
		return nil, s.fail("RejectRequest", logrus.Fields{"request_id": requestID, "approver_id": approverID}, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"approver_id": approverID,
	}).Info("Borrowing request rejected")

	return s.views.detail(ctx, rejected), nil
}

func (s *BorrowingService) CancelRequest(ctx context.Context, requestID, callerID uint) (*BorrowingRequestDetailView, error) {
	var cancelled *models.BorrowingRequest
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		request, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if !request.IsOwnedBy(callerID) {
			return notOwnerError()
		}
		if err := request.Cancel(); err != nil {
			return invalidStateError(request.Status)
		}
		if err := tx.SaveRequest(ctx, request); err != nil {
			return err
		}
		cancelled = request
		return nil
	})
	if err != nil {
		return nil, s.fail("CancelRequest", logrus.Fields{"request_id": requestID, "caller_id": callerID}, err)
	}

	s.log.WithField("request_id", requestID).Info("Borrowing request cancelled")
	return s.views.detail(ctx, cancelled), nil
}

// ExtendDueDate pushes one item's due date once by the configured extension.
func (s *BorrowingService) ExtendDueDate(ctx context.Context, itemID, callerID uint) (*BorrowingRequestDetailView, error) {
	var extended *models.BorrowingRequest
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		request, item, err := s.lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if !request.IsOwnedBy(callerID) {
			return notOwnerError()
		}
		if request.Status != models.RequestStatusApproved {
			return invalidStateError(request.Status)
		}
		if request.DueDate == nil {
			return invalidStateError(request.Status)
		}

		if err := item.Extend(s.extension()); err != nil {
			switch {
			case errors.Is(err, models.ErrItemReturned):
				return alreadyReturnedError()
			case errors.Is(err, models.ErrExtensionAlreadyUsed):
				return extensionUsedError()
			default:
				return invalidStateError(request.Status)
			}
		}
		if err := tx.SaveRequest(ctx, request); err != nil {
			return err
		}
		extended = request
		return nil
	})
	if err != nil {
		return nil, s.fail("ExtendDueDate", logrus.Fields{"item_id": itemID, "caller_id": callerID}, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": extended.ID,
		"item_id":    itemID,
	}).Info("Borrowing item due date extended")

	return s.views.detail(ctx, extended), nil
}

// ReturnItem records the return of one item. The request becomes returned
// with its last item.
func (s *BorrowingService) ReturnItem(ctx context.Context, itemID, adminID uint) (*BorrowingRequestDetailView, error) {
	now := s.clock()

	var updated *models.BorrowingRequest
	err := s.store.Transaction(ctx, func(tx repository.Tx) error {
		request, item, err := s.lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if request.Status != models.RequestStatusApproved {
			return invalidStateError(request.Status)
		}
		if err := item.MarkReturned(now); err != nil {
			return alreadyReturnedError()
		}
		if request.AllItemsReturned() {
			if err := request.MarkReturned(); err != nil {
				return invalidStateError(request.Status)
			}
		}
		if err := tx.SaveRequest(ctx, request); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, s.fail("ReturnItem", logrus.Fields{"item_id": itemID, "admin_id": adminID}, err)
	}

	s.log.WithFields(logrus.Fields{
		"request_id": updated.ID,
		"item_id":    itemID,
		"admin_id":   adminID,
		"status":     updated.Status,
	}).Info("Borrowing item returned")

	return s.views.detail(ctx, updated), nil
}

func (s *BorrowingService) GetMyRequests(ctx context.Context, userID uint, params *BorrowingSearchParams) (*utils.PaginationResult, error) {
	filter := s.filter(params)
	filter.RequestorID = &userID
	return s.list(ctx, "GetMyRequests", filter)
}

func (s *BorrowingService) GetAllRequests(ctx context.Context, params *BorrowingSearchParams) (*utils.PaginationResult, error) {
	return s.list(ctx, "GetAllRequests", s.filter(params))
}

// GetRequestByID returns the request to its owner or an admin. Anyone else
// gets the same NotFound as for a missing request.
func (s *BorrowingService) GetRequestByID(ctx context.Context, requestID, callerID uint, isAdmin bool) (*BorrowingRequestDetailView, error) {
	request, err := s.store.FindRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, requestNotFoundError()
		}
		return nil, s.fail("GetRequestByID", logrus.Fields{"request_id": requestID}, err)
	}
	if !isAdmin && !request.IsOwnedBy(callerID) {
		return nil, requestNotFoundError()
	}
	return s.views.detail(ctx, request), nil
}

// GetBookAvailability reports the current stock of a non-deleted book.
func (s *BorrowingService) GetBookAvailability(ctx context.Context, bookID uint) (*Availability, error) {
	book, err := s.store.FindBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bookNotFoundError()
		}
		return nil, s.fail("GetBookAvailability", logrus.Fields{"book_id": bookID}, err)
	}

	copies, err := s.availability.AvailableCopies(ctx, s.store, *book)
	if err != nil {
		return nil, s.fail("GetBookAvailability", logrus.Fields{"book_id": bookID}, err)
	}
	return &Availability{
		BookID:          book.ID,
		TotalQuantity:   book.TotalQuantity,
		ActiveLoans:     book.TotalQuantity - copies,
		AvailableCopies: copies,
	}, nil
}

func (s *BorrowingService) filter(params *BorrowingSearchParams) repository.RequestFilter {
	if params == nil {
		params = &BorrowingSearchParams{}
	}
	return repository.RequestFilter{
		PaginationParams: utils.NormalizePagination(params.PaginationParams),
		RequestorID:      params.RequestorID,
		Statuses:         params.Statuses,
		RequestedFrom:    params.RequestedFrom,
		RequestedTo:      params.RequestedTo,
	}
}

func (s *BorrowingService) list(ctx context.Context, operation string, filter repository.RequestFilter) (*utils.PaginationResult, error) {
	requests, total, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, s.fail(operation, logrus.Fields{"requestor_id": filter.RequestorID}, err)
	}
	result := s.views.page(ctx, requests, total, filter.PaginationParams)
	return &result, nil
}

func (s *BorrowingService) lockRequest(ctx context.Context, tx repository.Tx, requestID uint) (*models.BorrowingRequest, error) {
	request, err := tx.LockRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, requestNotFoundError()
		}
		return nil, err
	}
	return request, nil
}

// lockItem locks the parent request of itemID and returns it with a pointer
// to the item inside request.Items, so changes to the item are saved with
// the request.
func (s *BorrowingService) lockItem(ctx context.Context, tx repository.Tx, itemID uint) (*models.BorrowingRequest, *models.BorrowingRequestItem, error) {
	found, err := tx.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, itemNotFoundError()
		}
		return nil, nil, err
	}

	request, err := tx.LockRequest(ctx, found.RequestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, itemNotFoundError()
		}
		return nil, nil, err
	}
	for i := range request.Items {
		if request.Items[i].ID == itemID {
			return request, &request.Items[i], nil
		}
	}
	return nil, nil, itemNotFoundError()
}
