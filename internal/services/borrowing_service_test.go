// internal/services/borrowing_service_test.go
package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/library-backend/internal/config"
	"github.com/javajoker/library-backend/internal/database"
	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/repository"
	"github.com/javajoker/library-backend/internal/utils"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type BorrowingServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	store   *repository.GormStore
	hook    *test.Hook
	service *BorrowingService

	queryFailure  *injectedFailure
	updateFailure *injectedFailure

	alice models.User
	bob   models.User
	admin models.User

	goBook     models.Book
	ddiaBook   models.Book
	singleCopy models.Book
}

func (suite *BorrowingServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()

	dbLogger, _ := test.NewNullLogger()
	db, err := database.Initialize(config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     "silent",
	}, dbLogger)
	suite.Require().NoError(err)
	suite.Require().NoError(database.RunMigrations(db, dbLogger))
	suite.db = db
	suite.store = repository.NewGormStore(db)
	suite.clearFailures()
	suite.registerFailureCallbacks()

	logger, hook := test.NewNullLogger()
	suite.hook = hook
	suite.service = NewBorrowingService(suite.store, config.DefaultBorrowingConfig(), logger).
		WithClock(func() time.Time { return testNow })

	suite.alice = suite.addUser(models.User{FullName: "Alice Reader", Email: "alice@example.com"})
	suite.bob = suite.addUser(models.User{FullName: "Bob Reader", Email: "bob@example.com"})
	suite.admin = suite.addUser(models.User{FullName: "Librarian", Email: "librarian@example.com", Role: models.UserRoleAdmin})

	suite.goBook = suite.addBook(models.Book{Title: "The Go Programming Language", TotalQuantity: 3})
	suite.ddiaBook = suite.addBook(models.Book{Title: "Designing Data-Intensive Applications", TotalQuantity: 2})
	suite.singleCopy = suite.addBook(models.Book{Title: "The Pragmatic Programmer", TotalQuantity: 1})
}

func (suite *BorrowingServiceTestSuite) TearDownTest() {
	logger, _ := test.NewNullLogger()
	database.Close(suite.db, logger)
}

func (suite *BorrowingServiceTestSuite) addUser(user models.User) models.User {
	if user.Role == "" {
		user.Role = models.UserRoleMember
	}
	user.Status = models.UserStatusActive
	suite.Require().NoError(user.SetPassword("secret-password"))
	suite.Require().NoError(suite.db.Create(&user).Error)
	return user
}

func (suite *BorrowingServiceTestSuite) addBook(book models.Book) models.Book {
	suite.Require().NoError(suite.db.Create(&book).Error)
	return book
}

func (suite *BorrowingServiceTestSuite) deleteBook(id uint) {
	suite.Require().NoError(suite.db.Delete(&models.Book{}, id).Error)
}

func (suite *BorrowingServiceTestSuite) storedRequest(id uint) *models.BorrowingRequest {
	req, err := suite.store.FindRequestByID(suite.ctx, id)
	suite.Require().NoError(err)
	return req
}

func (suite *BorrowingServiceTestSuite) requestCount() int64 {
	var count int64
	suite.Require().NoError(suite.db.Model(&models.BorrowingRequest{}).Count(&count).Error)
	return count
}

type injectedFailure struct {
	table string
	err   error
}

func (f *injectedFailure) apply(db *gorm.DB) {
	if f != nil && db.Statement.Table == f.table {
		db.AddError(f.err)
	}
}

func (suite *BorrowingServiceTestSuite) registerFailureCallbacks() {
	suite.Require().NoError(suite.db.Callback().Query().Before("gorm:query").
		Register("test:inject_query_failure", func(db *gorm.DB) { suite.queryFailure.apply(db) }))
	suite.Require().NoError(suite.db.Callback().Update().Before("gorm:update").
		Register("test:inject_update_failure", func(db *gorm.DB) { suite.updateFailure.apply(db) }))
}

func (suite *BorrowingServiceTestSuite) clearFailures() {
	suite.queryFailure = nil
	suite.updateFailure = nil
}

func (suite *BorrowingServiceTestSuite) create(userID uint, bookIDs ...uint) *BorrowingRequestDetailView {
	view, err := suite.service.CreateRequest(suite.ctx, userID, &CreateBorrowingRequest{BookIDs: bookIDs})
	suite.Require().NoError(err)
	return view
}

func (suite *BorrowingServiceTestSuite) approve(requestID uint) *BorrowingRequestDetailView {
	view, err := suite.service.ApproveRequest(suite.ctx, requestID, suite.admin.ID)
	suite.Require().NoError(err)
	return view
}

func (suite *BorrowingServiceTestSuite) assertKind(err error, kind ErrorKind) *ServiceError {
	se, ok := AsServiceError(err)
	suite.Require().True(ok, "expected a ServiceError, got %v", err)
	suite.Equal(kind, se.Kind)
	return se
}

func (suite *BorrowingServiceTestSuite) TestCreateRequest() {
	view := suite.create(suite.alice.ID, suite.goBook.ID, suite.ddiaBook.ID)

	suite.NotZero(view.ID)
	suite.Equal(models.RequestStatusWaiting, view.Status)
	suite.Equal(suite.alice.ID, view.RequestorID)
	suite.Equal("Alice Reader", view.RequestorName)
	suite.Equal(testNow, view.DateRequested)
	suite.Nil(view.DueDate)
	suite.Nil(view.ApproverID)
	suite.True(view.CanCancel)
	suite.Equal([]string{suite.goBook.Title, suite.ddiaBook.Title}, view.BookTitles)
	suite.Require().Len(view.Items, 2)
	for _, item := range view.Items {
		suite.NotZero(item.ID)
		suite.Nil(item.DueDate)
		suite.False(item.IsExtensionUsed)
		suite.False(item.CanExtend)
	}
}

func (suite *BorrowingServiceTestSuite) TestCreateRequestRoundTrip() {
	created := suite.create(suite.alice.ID, suite.singleCopy.ID, suite.goBook.ID)

	fetched, err := suite.service.GetRequestByID(suite.ctx, created.ID, suite.alice.ID, false)
	suite.Require().NoError(err)

	suite.Equal(created.RequestorID, fetched.RequestorID)
	suite.Equal(created.Status, fetched.Status)
	suite.ElementsMatch(created.BookIDs(), fetched.BookIDs())
}

func (suite *BorrowingServiceTestSuite) TestCreateRequestValidation() {
	sixBooks := make([]uint, 0, 6)
	for i := 0; i < 6; i++ {
		sixBooks = append(sixBooks, suite.addBook(models.Book{Title: "Extra", TotalQuantity: 1}).ID)
	}

	cases := map[string][]uint{
		"nil list":        nil,
		"empty list":      {},
		"duplicate books": {suite.goBook.ID, suite.goBook.ID},
		"zero id":         {0},
		"too many books":  sixBooks,
	}

	for name, bookIDs := range cases {
		suite.Run(name, func() {
			_, err := suite.service.CreateRequest(suite.ctx, suite.alice.ID, &CreateBorrowingRequest{BookIDs: bookIDs})
			suite.assertKind(err, KindValidation)
		})
	}
	suite.Equal(int64(0), suite.requestCount())
}

func (suite *BorrowingServiceTestSuite) TestCreateRequestAcceptsMaximumBooks() {
	ids := make([]uint, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, suite.addBook(models.Book{Title: "Shelf", TotalQuantity: 1}).ID)
	}
	view := suite.create(suite.alice.ID, ids...)
	suite.Len(view.Items, 5)
}

func (suite *BorrowingServiceTestSuite) putRequest(userID uint, status models.RequestStatus, requested time.Time, bookIDs ...uint) models.BorrowingRequest {
	req := models.BorrowingRequest{
		RequestorID:   userID,
		DateRequested: requested,
		Status:        status,
	}
	for _, id := range bookIDs {
		req.Items = append(req.Items, models.BorrowingRequestItem{BookID: id})
	}
	if status == models.RequestStatusApproved {
		due := requested.Add(14 * 24 * time.Hour)
		req.ApproverID = &suite.admin.ID
		req.DateProcessed = &requested
		req.DueDate = &due
		for i := range req.Items {
			itemDue, original := due, due
			req.Items[i].DueDate = &itemDue
			req.Items[i].OriginalDueDate = &original
		}
	}
	suite.Require().NoError(suite.db.Create(&req).Error)
	return req
}

func (suite *BorrowingServiceTestSuite) TestCreateRequestQuotaExceeded() {
	thisMonth := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	suite.putRequest(suite.alice.ID, models.RequestStatusWaiting, thisMonth, suite.goBook.ID)
	suite.putRequest(suite.alice.ID, models.RequestStatusApproved, thisMonth, suite.goBook.ID)
	suite.putRequest(suite.alice.ID, models.RequestStatusWaiting, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), suite.ddiaBook.ID)

	_, err := suite.service.CreateRequest(suite.ctx, suite.alice.ID, &CreateBorrowingRequest{BookIDs: []uint{suite.ddiaBook.ID}})
	se := suite.assertKind(err, KindQuotaExceeded)
	suite.Contains(se.Message, "3")
	suite.Equal(int64(3), suite.requestCount())

	// Other users keep their own quota
	suite.create(suite.bob.ID, suite.ddiaBook.ID)
}

func (suite *BorrowingServiceTestSuite) TestQuotaIgnoresTerminalAndOtherMonths() {
	thisMonth := time.Date(2026, time.March, 5, 9, 0, 0, 0, time.UTC)
	suite.putRequest(suite.alice.ID, models.RequestStatusWaiting, thisMonth, suite.goBook.ID)
	suite.putRequest(suite.alice.ID, models.RequestStatusApproved, thisMonth, suite.goBook.ID)
	suite.putRequest(suite.alice.ID, models.RequestStatusRejected, thisMonth, suite.goBook.ID)
	suite.putRequest(suite.alice.ID, models.RequestStatusCancelled, thisMonth, suite.goBook.ID)
	suite.putRequest(suite.alice.ID, models.RequestStatusWaiting, time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC), suite.goBook.ID)

	count, err := QuotaChecker{Limit: 3}.ActiveRequestCountThisMonth(suite.ctx, suite.store, suite.alice.ID, 2026, time.March)
	suite.Require().NoError(err)
	suite.Equal(2, count)

	suite.create(suite.alice.ID, suite.ddiaBook.ID)
}

func (suite *BorrowingServiceTestSuite) TestCreateRequestBooksUnavailable() {
	suite.putRequest(suite.bob.ID, models.RequestStatusApproved, testNow.Add(-time.Hour), suite.singleCopy.ID)

	copies, err := AvailabilityCalculator{}.AvailableCopies(suite.ctx, suite.store, suite.singleCopy)
	suite.Require().NoError(err)
	suite.Equal(0, copies)

	_, err = suite.service.CreateRequest(suite.ctx, suite.alice.ID, &CreateBorrowingRequest{BookIDs: []uint{suite.goBook.ID, suite.singleCopy.ID}})
	se := suite.assertKind(err, KindBooksUnavailable)
	details, ok := se.Details.(UnavailableBooks)
	suite.Require().True(ok)
	suite.Equal([]uint{suite.singleCopy.ID}, details.Unavailable)
	suite.Empty(details.NotFound)
	suite.Equal(int64(1), suite.requestCount())
}

func (suite *BorrowingServiceTestSuite) TestCreateRequestMissingAndDeletedBooks() {
	suite.deleteBook(suite.ddiaBook.ID)

	_, err := suite.service.CreateRequest(suite.ctx, suite.alice.ID, &CreateBorrowingRequest{BookIDs: []uint{suite.goBook.ID, suite.ddiaBook.ID, 999}})
	se := suite.assertKind(err, KindBooksUnavailable)
	details := se.Details.(UnavailableBooks)
	suite.Equal([]uint{suite.ddiaBook.ID, 999}, details.NotFound)
	suite.Empty(details.Unavailable)
	suite.Equal(int64(0), suite.requestCount())
}

func (suite *BorrowingServiceTestSuite) TestWaitingRequestsDoNotHoldCopies() {
	suite.create(suite.alice.ID, suite.singleCopy.ID)
	suite.create(suite.bob.ID, suite.singleCopy.ID)

	availability, err := suite.service.GetBookAvailability(suite.ctx, suite.singleCopy.ID)
	suite.Require().NoError(err)
	suite.Equal(1, availability.AvailableCopies)
	suite.Equal(0, availability.ActiveLoans)
}

func (suite *BorrowingServiceTestSuite) TestApproveRequest() {
	created := suite.create(suite.alice.ID, suite.goBook.ID, suite.singleCopy.ID)

	view := suite.approve(created.ID)

	expectedDue := testNow.Add(14 * 24 * time.Hour)
	suite.Equal(models.RequestStatusApproved, view.Status)
	suite.Require().NotNil(view.ApproverID)
	suite.Equal(suite.admin.ID, *view.ApproverID)
	suite.Equal("Librarian", view.ApproverName)
	suite.Require().NotNil(view.DateProcessed)
	suite.Equal(testNow, *view.DateProcessed)
	suite.Require().NotNil(view.DueDate)
	suite.Equal(expectedDue, *view.DueDate)
	suite.False(view.CanCancel)
	for _, item := range view.Items {
		suite.Require().NotNil(item.DueDate)
		suite.Require().NotNil(item.OriginalDueDate)
		suite.Equal(expectedDue, *item.DueDate)
		suite.Equal(expectedDue, *item.OriginalDueDate)
		suite.True(item.CanExtend)
	}

	availability, err := suite.service.GetBookAvailability(suite.ctx, suite.singleCopy.ID)
	suite.Require().NoError(err)
	suite.Equal(suite.singleCopy.ID, availability.BookID)
	suite.Equal(1, availability.TotalQuantity)
	suite.Equal(1, availability.ActiveLoans)
	suite.Equal(0, availability.AvailableCopies)

	_, err = suite.service.GetBookAvailability(suite.ctx, 4242)
	suite.assertKind(err, KindNotFound)
}

func (suite *BorrowingServiceTestSuite) TestApproveRequestBookNoLongerAvailable() {
	first := suite.create(suite.alice.ID, suite.singleCopy.ID)
	second := suite.create(suite.bob.ID, suite.goBook.ID, suite.singleCopy.ID)

	suite.approve(first.ID)

	_, err := suite.service.ApproveRequest(suite.ctx, second.ID, suite.admin.ID)
	se := suite.assertKind(err, KindBooksUnavailable)
	suite.Equal([]uint{suite.singleCopy.ID}, se.Details.(UnavailableBooks).Unavailable)

	stored := suite.storedRequest(second.ID)
	suite.Equal(models.RequestStatusWaiting, stored.Status)
	suite.Nil(stored.DueDate)
	suite.Nil(stored.ApproverID)
	for _, item := range stored.Items {
		suite.Nil(item.DueDate)
	}
}

func (suite *BorrowingServiceTestSuite) TestApproveRequestBookDeleted() {
	created := suite.create(suite.alice.ID, suite.ddiaBook.ID)
	suite.deleteBook(suite.ddiaBook.ID)

	_, err := suite.service.ApproveRequest(suite.ctx, created.ID, suite.admin.ID)
	se := suite.assertKind(err, KindBooksUnavailable)
	suite.Equal([]uint{suite.ddiaBook.ID}, se.Details.(UnavailableBooks).NotFound)

	stored := suite.storedRequest(created.ID)
	suite.Equal(models.RequestStatusWaiting, stored.Status)
}

func (suite *BorrowingServiceTestSuite) TestApproveRequestInvalidState() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)
	suite.approve(created.ID)

	_, err := suite.service.ApproveRequest(suite.ctx, created.ID, suite.admin.ID)
	se := suite.assertKind(err, KindInvalidState)
	suite.Equal("Borrowing request has already been processed", se.Message)

	_, err = suite.service.ApproveRequest(suite.ctx, 4242, suite.admin.ID)
	suite.assertKind(err, KindNotFound)
}

func (suite *BorrowingServiceTestSuite) TestConcurrentApprovalsOfLastCopy() {
	first := suite.create(suite.alice.ID, suite.singleCopy.ID)
	second := suite.create(suite.bob.ID, suite.singleCopy.ID)

	var (
		wg      sync.WaitGroup
		results = make([]error, 2)
	)
	for i, id := range []uint{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, results[i] = suite.service.ApproveRequest(suite.ctx, id, suite.admin.ID)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		suite.True(IsKind(err, KindBooksUnavailable), "unexpected error: %v", err)
	}
	suite.Equal(1, succeeded)

	availability, err := suite.service.GetBookAvailability(suite.ctx, suite.singleCopy.ID)
	suite.Require().NoError(err)
	suite.Equal(0, availability.AvailableCopies)
	suite.Equal(1, availability.ActiveLoans)
}

func (suite *BorrowingServiceTestSuite) TestRejectRequest() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)

	view, err := suite.service.RejectRequest(suite.ctx, created.ID, suite.admin.ID, &RejectBorrowingRequest{Reason: "  damaged copy  "})
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusRejected, view.Status)
	suite.Equal("damaged copy", view.RejectionReason)
	suite.Nil(view.DueDate)
	suite.Require().NotNil(view.ApproverID)
	suite.Equal(suite.admin.ID, *view.ApproverID)

	_, err = suite.service.RejectRequest(suite.ctx, created.ID, suite.admin.ID, nil)
	suite.assertKind(err, KindInvalidState)
}

func (suite *BorrowingServiceTestSuite) TestRejectRequestWithoutReason() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)

	view, err := suite.service.RejectRequest(suite.ctx, created.ID, suite.admin.ID, nil)
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusRejected, view.Status)
	suite.Empty(view.RejectionReason)
}

func (suite *BorrowingServiceTestSuite) TestRejectRequestReasonTooLong() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)

	reason := make([]byte, 501)
	for i := range reason {
		reason[i] = 'x'
	}
	_, err := suite.service.RejectRequest(suite.ctx, created.ID, suite.admin.ID, &RejectBorrowingRequest{Reason: string(reason)})
	suite.assertKind(err, KindValidation)

	stored := suite.storedRequest(created.ID)
	suite.Equal(models.RequestStatusWaiting, stored.Status)
}

func (suite *BorrowingServiceTestSuite) TestRejectRequestReasonMeasuredAfterTrimming() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)
	reason := strings.Repeat("x", 500)

	view, err := suite.service.RejectRequest(suite.ctx, created.ID, suite.admin.ID, &RejectBorrowingRequest{Reason: "  " + reason + "\n"})
	suite.Require().NoError(err)
	suite.Equal(reason, view.RejectionReason)
	suite.Equal(reason, suite.storedRequest(created.ID).RejectionReason)
}

func (suite *BorrowingServiceTestSuite) TestCancelRequest() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)

	_, err := suite.service.CancelRequest(suite.ctx, created.ID, suite.bob.ID)
	suite.assertKind(err, KindForbidden)

	view, err := suite.service.CancelRequest(suite.ctx, created.ID, suite.alice.ID)
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusCancelled, view.Status)
	suite.False(view.CanCancel)

	_, err = suite.service.CancelRequest(suite.ctx, 4242, suite.alice.ID)
	suite.assertKind(err, KindNotFound)
}

func (suite *BorrowingServiceTestSuite) TestCancelApprovedRequest() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)
	suite.approve(created.ID)

	_, err := suite.service.CancelRequest(suite.ctx, created.ID, suite.alice.ID)
	suite.assertKind(err, KindInvalidState)

	stored := suite.storedRequest(created.ID)
	suite.Equal(models.RequestStatusApproved, stored.Status)
}

func (suite *BorrowingServiceTestSuite) TestExtendDueDateOnce() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)
	approved := suite.approve(created.ID)
	itemID := approved.Items[0].ID
	originalDue := *approved.Items[0].DueDate

	view, err := suite.service.ExtendDueDate(suite.ctx, itemID, suite.alice.ID)
	suite.Require().NoError(err)
	item := view.Items[0]
	suite.WithinDuration(originalDue.Add(7*24*time.Hour), *item.DueDate, 0)
	suite.WithinDuration(originalDue, *item.OriginalDueDate, 0)
	suite.True(item.IsExtensionUsed)
	suite.False(item.CanExtend)

	_, err = suite.service.ExtendDueDate(suite.ctx, itemID, suite.alice.ID)
	suite.assertKind(err, KindExtensionAlreadyUsed)

	stored := suite.storedRequest(created.ID)
	suite.WithinDuration(originalDue.Add(7*24*time.Hour), *stored.Items[0].DueDate, 0)
	suite.WithinDuration(originalDue, *stored.Items[0].OriginalDueDate, 0)
	suite.True(stored.Items[0].IsExtensionUsed)
}

func (suite *BorrowingServiceTestSuite) TestExtendDueDateFailures() {
	waiting := suite.create(suite.alice.ID, suite.goBook.ID)
	_, err := suite.service.ExtendDueDate(suite.ctx, waiting.Items[0].ID, suite.alice.ID)
	suite.assertKind(err, KindInvalidState)

	approved := suite.approve(suite.create(suite.alice.ID, suite.goBook.ID, suite.ddiaBook.ID).ID)
	_, err = suite.service.ExtendDueDate(suite.ctx, approved.Items[0].ID, suite.bob.ID)
	suite.assertKind(err, KindForbidden)

	_, err = suite.service.ExtendDueDate(suite.ctx, 4242, suite.alice.ID)
	suite.assertKind(err, KindNotFound)

	_, err = suite.service.ReturnItem(suite.ctx, approved.Items[1].ID, suite.admin.ID)
	suite.Require().NoError(err)
	_, err = suite.service.ExtendDueDate(suite.ctx, approved.Items[1].ID, suite.alice.ID)
	suite.assertKind(err, KindAlreadyReturned)
}

func (suite *BorrowingServiceTestSuite) TestReturnItems() {
	approved := suite.approve(suite.create(suite.alice.ID, suite.singleCopy.ID, suite.goBook.ID).ID)

	view, err := suite.service.ReturnItem(suite.ctx, approved.Items[0].ID, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusApproved, view.Status)
	suite.Require().NotNil(view.Items[0].ReturnedDate)
	suite.Equal(testNow, *view.Items[0].ReturnedDate)

	_, err = suite.service.ReturnItem(suite.ctx, approved.Items[0].ID, suite.admin.ID)
	suite.assertKind(err, KindAlreadyReturned)

	availability, err := suite.service.GetBookAvailability(suite.ctx, suite.singleCopy.ID)
	suite.Require().NoError(err)
	suite.Equal(1, availability.AvailableCopies)

	view, err = suite.service.ReturnItem(suite.ctx, approved.Items[1].ID, suite.admin.ID)
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusReturned, view.Status)

	_, err = suite.service.ReturnItem(suite.ctx, approved.Items[1].ID, suite.admin.ID)
	suite.assertKind(err, KindInvalidState)
}

func (suite *BorrowingServiceTestSuite) TestReturnItemOfWaitingRequest() {
	waiting := suite.create(suite.alice.ID, suite.goBook.ID)

	_, err := suite.service.ReturnItem(suite.ctx, waiting.Items[0].ID, suite.admin.ID)
	suite.assertKind(err, KindInvalidState)
}

func (suite *BorrowingServiceTestSuite) TestGetRequestByIDHidesOtherUsersRequests() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)

	_, err := suite.service.GetRequestByID(suite.ctx, created.ID, suite.bob.ID, false)
	suite.assertKind(err, KindNotFound)

	view, err := suite.service.GetRequestByID(suite.ctx, created.ID, suite.admin.ID, true)
	suite.Require().NoError(err)
	suite.Equal(created.ID, view.ID)

	_, err = suite.service.GetRequestByID(suite.ctx, 4242, suite.admin.ID, true)
	suite.assertKind(err, KindNotFound)
}

func (suite *BorrowingServiceTestSuite) TestListRequests() {
	a1 := suite.create(suite.alice.ID, suite.goBook.ID)
	suite.create(suite.alice.ID, suite.ddiaBook.ID)
	suite.create(suite.bob.ID, suite.goBook.ID)
	suite.approve(a1.ID)

	mine, err := suite.service.GetMyRequests(suite.ctx, suite.alice.ID, &BorrowingSearchParams{})
	suite.Require().NoError(err)
	suite.Equal(int64(2), mine.TotalItems)
	suite.Equal(1, mine.TotalPages)
	for _, view := range mine.Data.([]BorrowingRequestListView) {
		suite.Equal(suite.alice.ID, view.RequestorID)
	}

	approved, err := suite.service.GetMyRequests(suite.ctx, suite.alice.ID, &BorrowingSearchParams{
		Statuses: []models.RequestStatus{models.RequestStatusApproved},
	})
	suite.Require().NoError(err)
	suite.Require().Len(approved.Data.([]BorrowingRequestListView), 1)
	suite.Equal(a1.ID, approved.Data.([]BorrowingRequestListView)[0].ID)

	all, err := suite.service.GetAllRequests(suite.ctx, &BorrowingSearchParams{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 2, Sort: "id", Order: "asc"},
	})
	suite.Require().NoError(err)
	suite.Equal(int64(3), all.TotalItems)
	suite.Equal(2, all.TotalPages)
	suite.Equal(2, all.PageSize)
	page := all.Data.([]BorrowingRequestListView)
	suite.Require().Len(page, 2)
	suite.Less(page[0].ID, page[1].ID)

	from := testNow.Add(time.Hour)
	none, err := suite.service.GetAllRequests(suite.ctx, &BorrowingSearchParams{RequestedFrom: &from})
	suite.Require().NoError(err)
	suite.Equal(int64(0), none.TotalItems)
}

func (suite *BorrowingServiceTestSuite) TestInfrastructureFailureIsOpaqueAndLogged() {
	suite.queryFailure = &injectedFailure{table: "borrowing_requests", err: errors.New("connection refused")}

	_, err := suite.service.CreateRequest(suite.ctx, suite.alice.ID, &CreateBorrowingRequest{BookIDs: []uint{suite.goBook.ID}})
	se := suite.assertKind(err, KindInfrastructure)
	suite.Equal("Something went wrong, please try again later", se.Message)
	suite.clearFailures()
	suite.Equal(int64(0), suite.requestCount())

	entry := suite.hook.LastEntry()
	suite.Require().NotNil(entry)
	suite.Equal(logrus.ErrorLevel, entry.Level)
	suite.Equal("CreateRequest", entry.Data["operation"])
	suite.Equal(suite.alice.ID, entry.Data["requestor_id"])
}

func (suite *BorrowingServiceTestSuite) TestFailedItemSaveRollsBackRequest() {
	created := suite.create(suite.alice.ID, suite.goBook.ID)
	suite.updateFailure = &injectedFailure{table: "borrowing_request_items", err: errors.New("disk full")}

	_, err := suite.service.ApproveRequest(suite.ctx, created.ID, suite.admin.ID)
	suite.assertKind(err, KindInfrastructure)
	suite.clearFailures()

	stored := suite.storedRequest(created.ID)
	suite.Equal(models.RequestStatusWaiting, stored.Status)
	suite.Nil(stored.ApproverID)
	suite.Nil(stored.DueDate)
	suite.Nil(stored.Items[0].DueDate)
}

func (suite *BorrowingServiceTestSuite) TestCancelledContextCommitsNothing() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err := suite.service.CreateRequest(ctx, suite.alice.ID, &CreateBorrowingRequest{BookIDs: []uint{suite.goBook.ID}})
	suite.assertKind(err, KindInfrastructure)
	suite.ErrorIs(err, context.Canceled)
	suite.Equal(int64(0), suite.requestCount())
}

func TestBorrowingServiceTestSuite(t *testing.T) {
	suite.Run(t, new(BorrowingServiceTestSuite))
}

func TestServiceErrorLocalize(t *testing.T) {
	err := quotaExceededError(3)

	assert.Equal(t, "You can have at most 3 active requests per month", err.Message)
	assert.Equal(t, err.Message, err.Localize("fr"))
	assert.NotEqual(t, err.Message, err.Localize("zh_TW"))
	assert.True(t, IsKind(err, KindQuotaExceeded))
	assert.False(t, IsKind(errors.New("plain"), KindQuotaExceeded))
}

func TestMonthBounds(t *testing.T) {
	from, to := MonthBounds(2026, time.December)

	require.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC), to)
}
