// internal/handlers/common.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/library-backend/internal/i18n"
	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/services"
	"github.com/javajoker/library-backend/internal/utils"
)

// respondError writes err with the status code of its kind.
func respondError(c *gin.Context, err error) {
	se, ok := services.AsServiceError(err)
	if !ok {
		_ = c.Error(err)
		utils.InternalErrorResponse(c, "")
		return
	}

	message := se.Localize(utils.GetLangFromContext(c))
	code := string(se.Kind)

	switch se.Kind {
	case services.KindValidation:
		utils.ErrorResponse(c, http.StatusBadRequest, code, message, se.Details)
	case services.KindUnauthorized:
		utils.UnauthorizedResponse(c, message)
	case services.KindForbidden:
		utils.ErrorResponse(c, http.StatusForbidden, code, message, se.Details)
	case services.KindNotFound:
		utils.ErrorResponse(c, http.StatusNotFound, code, message, se.Details)
	case services.KindQuotaExceeded, services.KindInvalidState, services.KindBooksUnavailable,
		services.KindAlreadyReturned, services.KindExtensionAlreadyUsed:
		utils.ConflictResponse(c, code, message, se.Details)
	default:
		_ = c.Error(err)
		utils.InternalErrorResponse(c, message)
	}
}

// parseID reads a positive numeric path parameter.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, name), nil)
		return 0, false
	}
	return uint(id), true
}

func currentUserID(c *gin.Context) (uint, bool) {
	userID, ok := utils.GetUserIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
	}
	return userID, ok
}

// bindJSON binds an optional JSON body. An empty body leaves req untouched.
func bindJSON(c *gin.Context, req interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}
	return true
}

// parseSearchParams reads status, from, to and the pagination query.
// status takes a comma separated list; from and to take RFC 3339 times or
// dates, with to exclusive.
func parseSearchParams(c *gin.Context) (*services.BorrowingSearchParams, error) {
	params := &services.BorrowingSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}

	if raw := c.Query("status"); raw != "" {
		for _, value := range strings.Split(raw, ",") {
			status, err := models.ParseRequestStatus(value)
			if err != nil {
				return nil, err
			}
			params.Statuses = append(params.Statuses, status)
		}
	}

	var err error
	if params.RequestedFrom, err = parseTimeQuery(c, "from"); err != nil {
		return nil, err
	}
	if params.RequestedTo, err = parseTimeQuery(c, "to"); err != nil {
		return nil, err
	}
	if params.RequestedFrom != nil && params.RequestedTo != nil && !params.RequestedFrom.Before(*params.RequestedTo) {
		return nil, errors.New("from must be before to")
	}

	return params, nil
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid %s: %q", name, raw)
}
