// internal/handlers/borrowing.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/javajoker/library-backend/internal/i18n"
	"github.com/javajoker/library-backend/internal/models"
	"github.com/javajoker/library-backend/internal/services"
	"github.com/javajoker/library-backend/internal/utils"
)

type BorrowingHandler struct {
	borrowingService *services.BorrowingService
}

func NewBorrowingHandler(borrowingService *services.BorrowingService) *BorrowingHandler {
	return &BorrowingHandler{
		borrowingService: borrowingService,
	}
}

// POST /borrowing-requests
func (h *BorrowingHandler) CreateRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateBorrowingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	request, err := h.borrowingService.CreateRequest(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBorrowingCreated),
		"request": request,
	})
}

// GET /borrowing-requests/my
func (h *BorrowingHandler) GetMyRequests(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params, err := parseSearchParams(c)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	result, err := h.borrowingService.GetMyRequests(c.Request.Context(), userID, params)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.PaginatedResponse(c, *result)
}

// GET /borrowing-requests/:id
func (h *BorrowingHandler) GetRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	isAdmin := utils.HasRole(c, string(models.UserRoleAdmin))
	request, err := h.borrowingService.GetRequestByID(c.Request.Context(), id, userID, isAdmin)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"request": request,
	})
}

// POST /borrowing-requests/:id/cancel
func (h *BorrowingHandler) CancelRequest(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	request, err := h.borrowingService.CancelRequest(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBorrowingCancelled),
		"request": request,
	})
}

// POST /borrowing-requests/items/:itemId/extend
func (h *BorrowingHandler) ExtendDueDate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	request, err := h.borrowingService.ExtendDueDate(c.Request.Context(), itemID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyBorrowingExtended),
		"request": request,
	})
}

// GET /books/:id/availability
func (h *BorrowingHandler) GetBookAvailability(c *gin.Context) {
	bookID, ok := parseID(c, "id")
	if !ok {
		return
	}

	availability, err := h.borrowingService.GetBookAvailability(c.Request.Context(), bookID)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"availability": availability,
	})
}
