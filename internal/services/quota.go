// internal/services/quota.go
package services

import (
	"context"
	"time"

	"github.com/javajoker/library-backend/internal/repository"
)

// QuotaChecker counts the requests a user holds against the monthly limit.
type QuotaChecker struct {
	Limit int
}

// MonthBounds returns [start of month, start of next month) in UTC.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ActiveRequestCountThisMonth counts the user's waiting or approved requests
// submitted in the given calendar month.
func (QuotaChecker) ActiveRequestCountThisMonth(ctx context.Context, requests repository.RequestCounter, userID uint, year int, month time.Month) (int, error) {
	from, to := MonthBounds(year, month)
	return requests.CountActiveRequests(ctx, userID, from, to)
}

// Exceeded reports whether a new request at now would go over the limit.
// The count is taken before the insert, so reaching the limit is enough.
func (q QuotaChecker) Exceeded(ctx context.Context, requests repository.RequestCounter, userID uint, now time.Time) (bool, error) {
	now = now.UTC()
	count, err := q.ActiveRequestCountThisMonth(ctx, requests, userID, now.Year(), now.Month())
	if err != nil {
		return false, err
	}
	return count >= q.Limit, nil
}
