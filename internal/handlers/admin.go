// internal/handlers/admin.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/javajoker/library-backend/internal/i18n"
	"github.com/javajoker/library-backend/internal/services"
	"github.com/javajoker/library-backend/internal/utils"
)

type AdminHandler struct {
	borrowingService *services.BorrowingService
}

func NewAdminHandler(borrowingService *services.BorrowingService) *AdminHandler {
	return &AdminHandler{
		borrowingService: borrowingService,
	}
}

// GET /admin/borrowing-requests
func (h *AdminHandler) GetBorrowingRequests(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	params, err := parseSearchParams(c)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	if raw := c.Query("requestor_id"); raw != "" {
		requestorID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || requestorID == 0 {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "requestor_id"), nil)
			return
		}
		id := uint(requestorID)
		params.RequestorID = &id
	}

	result, err := h.borrowingService.GetAllRequests(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// PUT /admin/borrowing-requests/:id/approve
func (h *AdminHandler) ApproveBorrowingRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	request, err := h.borrowingService.ApproveRequest(c.Request.Context(), id, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBorrowingApproved),
		"request": request,
	})
}

// PUT /admin/borrowing-requests/:id/reject
func (h *AdminHandler) RejectBorrowingRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.RejectBorrowingRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.borrowingService.RejectRequest(c.Request.Context(), id, adminID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBorrowingRejected),
		"request": request,
	})
}

// PUT /admin/borrowing-items/:itemId/return
func (h *AdminHandler) ReturnBorrowingItem(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	request, err := h.borrowingService.ReturnItem(c.Request.Context(), itemID, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBorrowingReturned),
		"request": request,
	})
}
