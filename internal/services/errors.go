// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/javajoker/library-backend/internal/i18n"
	"github.com/javajoker/library-backend/internal/models"
)

type ErrorKind string

const (
	KindValidation           ErrorKind = "VALIDATION_ERROR"
	KindQuotaExceeded        ErrorKind = "QUOTA_EXCEEDED"
	KindNotFound             ErrorKind = "NOT_FOUND"
	KindForbidden            ErrorKind = "FORBIDDEN"
	KindInvalidState         ErrorKind = "INVALID_STATE"
	KindBooksUnavailable     ErrorKind = "BOOKS_UNAVAILABLE"
	KindAlreadyReturned      ErrorKind = "ALREADY_RETURNED"
	KindExtensionAlreadyUsed ErrorKind = "EXTENSION_ALREADY_USED"
	KindUnauthorized         ErrorKind = "UNAUTHORIZED"
	KindInfrastructure       ErrorKind = "INTERNAL_ERROR"
)

// ServiceError is a failure the caller can act on. Key and Args are used to
// translate Message for the caller's language.
type ServiceError struct {
	Kind    ErrorKind
	Key     string
	Args    []interface{}
	Message string
	Details interface{}
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Localize returns the message in lang, falling back to the English one.
func (e *ServiceError) Localize(lang string) string {
	if e.Key == "" || !i18n.Has(lang, e.Key) {
		return e.Message
	}
	return i18n.T(lang, e.Key, e.Args...)
}

func newError(kind ErrorKind, key string, args ...interface{}) *ServiceError {
	return &ServiceError{
		Kind:    kind,
		Key:     key,
		Args:    args,
		Message: i18n.T("en", key, args...),
	}
}

func (e *ServiceError) withDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// AsServiceError unwraps err into a *ServiceError if it is one.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsKind reports whether err is a ServiceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	se, ok := AsServiceError(err)
	return ok && se.Kind == kind
}

// UnavailableBooks lists the offending book ids of a BooksUnavailable failure.
type UnavailableBooks struct {
	NotFound    []uint `json:"not_found,omitempty"`
	Unavailable []uint `json:"unavailable,omitempty"`
}

func (u UnavailableBooks) empty() bool {
	return len(u.NotFound) == 0 && len(u.Unavailable) == 0
}

func validationError(details interface{}) *ServiceError {
	return newError(KindValidation, i18n.KeyValidationInvalid, "request").withDetails(details)
}

func tooManyBooksError(max int) *ServiceError {
	return newError(KindValidation, i18n.KeyBorrowingTooManyBooks, max)
}

func quotaExceededError(limit int) *ServiceError {
	return newError(KindQuotaExceeded, i18n.KeyBorrowingQuotaExceeded, limit)
}

func booksUnavailableError(u UnavailableBooks) *ServiceError {
	return newError(KindBooksUnavailable, i18n.KeyBorrowingBooksUnavailable).withDetails(u)
}

func requestNotFoundError() *ServiceError {
	return newError(KindNotFound, i18n.KeyBorrowingNotFound)
}

func itemNotFoundError() *ServiceError {
	return newError(KindNotFound, i18n.KeyBorrowingItemNotFound)
}

func bookNotFoundError() *ServiceError {
	return newError(KindNotFound, i18n.KeyBookNotFound)
}

func notOwnerError() *ServiceError {
	return newError(KindForbidden, i18n.KeyBorrowingNotOwner)
}

func alreadyProcessedError(status models.RequestStatus) *ServiceError {
	return newError(KindInvalidState, i18n.KeyBorrowingAlreadyProcessed).withDetails(map[string]string{"status": string(status)})
}

func invalidStateError(status models.RequestStatus) *ServiceError {
	return newError(KindInvalidState, i18n.KeyBorrowingInvalidState).withDetails(map[string]string{"status": string(status)})
}

func alreadyReturnedError() *ServiceError {
	return newError(KindAlreadyReturned, i18n.KeyBorrowingAlreadyReturned)
}

func extensionUsedError() *ServiceError {
	return newError(KindExtensionAlreadyUsed, i18n.KeyBorrowingExtensionUsed)
}

func invalidCredentialsError() *ServiceError {
	return newError(KindUnauthorized, i18n.KeyAuthInvalidCredentials)
}

func accountInactiveError() *ServiceError {
	return newError(KindForbidden, i18n.KeyAuthAccountInactive)
}

func infrastructureError(err error) *ServiceError {
	se := newError(KindInfrastructure, i18n.KeyInternalError)
	se.Err = err
	return se
}
