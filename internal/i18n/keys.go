// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeyInternalError = "error.internal"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthAccountInactive    = "auth.account_inactive"
	KeyAuthLoginSuccess       = "auth.login_success"

	// Users
	KeyUserNotFound = "user.not_found"

	// Books
	KeyBookNotFound = "book.not_found"

	// Borrowing
	KeyBorrowingCreated          = "borrowing.created"
	KeyBorrowingApproved         = "borrowing.approved"
	KeyBorrowingRejected         = "borrowing.rejected"
	KeyBorrowingCancelled        = "borrowing.cancelled"
	KeyBorrowingExtended         = "borrowing.extended"
	KeyBorrowingReturned         = "borrowing.returned"
	KeyBorrowingNotFound         = "borrowing.not_found"
	KeyBorrowingItemNotFound     = "borrowing_item.not_found"
	KeyBorrowingQuotaExceeded    = "borrowing.quota_exceeded"
	KeyBorrowingBooksUnavailable = "borrowing.books_unavailable"
	KeyBorrowingAlreadyProcessed = "borrowing.already_processed"
	KeyBorrowingInvalidState     = "borrowing.invalid_state"
	KeyBorrowingNotOwner         = "borrowing.not_owner"
	KeyBorrowingAlreadyReturned  = "borrowing.already_returned"
	KeyBorrowingExtensionUsed    = "borrowing.extension_used"
	KeyBorrowingTooManyBooks     = "borrowing.too_many_books"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Requests
	KeyRequestTooLarge = "request.too_large"

	// Rate limiting
	KeyRateLimited = "rate_limit.exceeded"
)
