// internal/repository/gorm_store.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/library-backend/internal/database"
	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/utils"
)

// GormStore implements Store and Tx on top of a *gorm.DB. Inside Transaction
// it wraps the transaction handle, so the same methods serve both.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func itemsByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// Books

func (s *GormStore) FindBookByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := s.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, translate(err)
	}
	return &book, nil
}

func (s *GormStore) FindBooksByIDs(ctx context.Context, ids []uint) ([]models.Book, error) {
	var books []models.Book
	if len(ids) == 0 {
		return books, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch books: %w", err)
	}
	return books, nil
}

func (s *GormStore) FindBooksIncludingDeleted(ctx context.Context, ids []uint) ([]models.Book, error) {
	var books []models.Book
	if len(ids) == 0 {
		return books, nil
	}
	if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch books: %w", err)
	}
	return books, nil
}

// LockBooks takes the rows in id order so concurrent lockers cannot deadlock.
func (s *GormStore) LockBooks(ctx context.Context, ids []uint) ([]models.Book, error) {
	var books []models.Book
	if len(ids) == 0 {
		return books, nil
	}
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to lock books: %w", err)
	}
	return books, nil
}

func (s *GormStore) CountActiveLoans(ctx context.Context, bookIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(bookIDs))
	if len(bookIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		BookID uint
		Total  int64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.BorrowingRequestItem{}).
		Select("borrowing_request_items.book_id AS book_id, COUNT(*) AS total").
		Joins("JOIN borrowing_requests ON borrowing_requests.id = borrowing_request_items.request_id").
		Where("borrowing_request_items.book_id IN ?", bookIDs).
		Where("borrowing_requests.status = ?", string(models.RequestStatusApproved)).
		Where("borrowing_request_items.returned_date IS NULL").
		Group("borrowing_request_items.book_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}

	for _, row := range rows {
		counts[row.BookID] = int(row.Total)
	}
	return counts, nil
}

// Requests

func (s *GormStore) CountActiveRequests(ctx context.Context, userID uint, from, to time.Time) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.BorrowingRequest{}).
		Where("requestor_id = ?", userID).
		Where("status IN ?", statusStrings(models.ActiveRequestStatuses())).
		Where("date_requested >= ? AND date_requested < ?", from, to).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count active requests: %w", err)
	}
	return int(count), nil
}

func (s *GormStore) FindRequestByID(ctx context.Context, id uint) (*models.BorrowingRequest, error) {
	var req models.BorrowingRequest
	if err := s.db.WithContext(ctx).Preload("Items", itemsByID).First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *GormStore) LockRequest(ctx context.Context, id uint) (*models.BorrowingRequest, error) {
	var req models.BorrowingRequest
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", itemsByID).
		First(&req, id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (s *GormStore) FindItemByID(ctx context.Context, id uint) (*models.BorrowingRequestItem, error) {
	var item models.BorrowingRequestItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (s *GormStore) CreateRequest(ctx context.Context, req *models.BorrowingRequest) error {
	if len(req.Items) == 0 {
		return errors.New("borrowing request without items")
	}
	// Items are inserted with the request through the has-many association
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("failed to create borrowing request: %w", err)
	}
	return nil
}

func (s *GormStore) SaveRequest(ctx context.Context, req *models.BorrowingRequest) error {
	db := s.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(req).Error; err != nil {
		return fmt.Errorf("failed to update borrowing request %d: %w", req.ID, err)
	}
	for i := range req.Items {
		if err := db.Omit(clause.Associations).Save(&req.Items[i]).Error; err != nil {
			return fmt.Errorf("failed to update borrowing item %d: %w", req.Items[i].ID, err)
		}
	}
	return nil
}

func (s *GormStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.BorrowingRequest, int64, error) {
	params := utils.NormalizePagination(filter.PaginationParams)

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.RequestorID != nil {
			db = db.Where("requestor_id = ?", *filter.RequestorID)
		}
		if len(filter.Statuses) > 0 {
			db = db.Where("status IN ?", statusStrings(filter.Statuses))
		}
		if filter.RequestedFrom != nil {
			db = db.Where("date_requested >= ?", *filter.RequestedFrom)
		}
		if filter.RequestedTo != nil {
			db = db.Where("date_requested < ?", *filter.RequestedTo)
		}
		return db
	}

	// Get total count
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.BorrowingRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count borrowing requests: %w", err)
	}

	query := s.db.WithContext(ctx).Model(&models.BorrowingRequest{}).Scopes(scope)
	query = utils.ApplySort(query, params, RequestSortFields)
	// Tie-break so pages stay stable
	query = query.Order("id " + params.Order)
	query = utils.ApplyPagination(query, params)

	var requests []models.BorrowingRequest
	if err := query.Preload("Items", itemsByID).Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch borrowing requests: %w", err)
	}

	return requests, total, nil
}

// Users

func (s *GormStore) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) FindUsersByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	var users []models.User
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	return users, nil
}

func (s *GormStore) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at).Error; err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// Audit

func (s *GormStore) RecordAudit(ctx context.Context, entry *models.AuditLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

var (
	_ Store = (*GormStore)(nil)
	_ Tx    = (*GormStore)(nil)
)
