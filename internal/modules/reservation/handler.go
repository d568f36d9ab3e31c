package reservation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"slothold/internal/pkg/resilience"
	"slothold/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/holds", h.CreateHold)
	rg.GET("/holds/:id", h.GetHold)
	rg.POST("/holds/:id/extend", h.ExtendHold)
	rg.POST("/holds/:id/cancel", h.CancelHold)
}

// RegisterWebhookRoutes is separate: webhooks are authenticated by payload
// token, not by the user JWT.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/contract-signed", h.ContractSigned)
}

func (h *Handler) CreateHold(c *gin.Context) {
	var req CreateHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	resp, err := h.service.CreateHold(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrSlotConflict) {
			var details any
			if resp != nil {
				details = resp.Conflicts
			}
			response.ErrorWithDetails(c, http.StatusConflict, "SLOT_CONFLICT", "Slot is no longer available", details)
			return
		}
		h.writeError(c, err, "Failed to create hold")
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	response.Success(c, status, resp)
}

func (h *Handler) GetHold(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	res, err := h.service.GetHold(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Failed to load hold")
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ExtendHold(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req ExtendHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.ExtendHold(c.Request.Context(), id, req.HoldToken)
	if err != nil {
		h.writeError(c, err, "Failed to extend hold")
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) CancelHold(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req CancelHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.CancelHold(c.Request.Context(), id, req.HoldToken)
	if err != nil {
		h.writeError(c, err, "Failed to cancel hold")
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ContractSigned(c *gin.Context) {
	var evt ContractSignedEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid webhook payload")
		return
	}

	result, err := h.service.HandleContractSigned(c.Request.Context(), evt)
	if err != nil {
		h.writeError(c, err, "Failed to process contract event")
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Reservation not found")
	case errors.Is(err, ErrInvalidToken):
		response.Error(c, http.StatusForbidden, "UNAUTHORIZED", "Hold token does not match")
	case errors.Is(err, ErrHoldExpired):
		response.Error(c, http.StatusGone, "HOLD_EXPIRED", "The hold has expired")
	case errors.Is(err, ErrAlreadyProcessed):
		response.Error(c, http.StatusConflict, "ALREADY_PROCESSED", "Reservation is no longer in a hold state")
	case errors.Is(err, ErrExtensionExhausted):
		response.Error(c, http.StatusConflict, "EXTENSION_LIMIT", "No extensions remaining for this hold")
	case errors.Is(err, ErrSlotConflict):
		response.Error(c, http.StatusConflict, "SLOT_CONFLICT", "Slot is no longer available")
	case errors.Is(err, ErrPreauthDeclined):
		response.Error(c, http.StatusPaymentRequired, "PREAUTH_FAILED", "Pre-authorization was not approved")
	case errors.Is(err, ErrPaymentFailed):
		response.Error(c, http.StatusBadGateway, "PAYMENT_FAILED", "Payment capture failed, retry later")
	case errors.Is(err, resilience.ErrCircuitOpen):
		response.Error(c, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE", "Upstream dependency is unavailable, retry later")
	case errors.Is(err, ErrConfirmFailed):
		response.Error(c, http.StatusInternalServerError, "CONFIRM_FAILED", "Confirmation failed and was rolled back")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}
