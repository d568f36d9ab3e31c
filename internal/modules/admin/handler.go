package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"slothold/internal/domain"
	"slothold/internal/modules/reservation"
	"slothold/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reservations/:id/force-confirm", h.ForceConfirm)
	rg.POST("/reservations/:id/force-expire", h.ForceExpire)
	rg.POST("/reservations/:id/retry-sync", h.RetrySync)
	rg.GET("/audit", h.ListAuditLog)
}

type overrideFunc func(ctx context.Context, reservationID, operatorID int64) (*domain.Reservation, error)

func (h *Handler) ForceConfirm(c *gin.Context) {
	h.override(c, h.service.ForceConfirm, "Failed to force-confirm reservation")
}

func (h *Handler) ForceExpire(c *gin.Context) {
	h.override(c, h.service.ForceExpire, "Failed to force-expire reservation")
}

func (h *Handler) RetrySync(c *gin.Context) {
	h.override(c, h.service.RetrySync, "Failed to retry calendar sync")
}

func (h *Handler) override(c *gin.Context, op overrideFunc, fallback string) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	operatorID := h.operatorID(c)
	if operatorID <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "X-Operator-Id header is required")
		return
	}

	res, err := op(c.Request.Context(), id, operatorID)
	if err != nil {
		h.writeError(c, err, fallback)
		return
	}
	response.Success(c, http.StatusOK, res)
}

func (h *Handler) ListAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.service.ListAuditLog(c.Request.Context(), c.Query("reservation_id"), limit, offset)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load audit log")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reservation id")
		return 0, false
	}
	return id, true
}

func (h *Handler) operatorID(c *gin.Context) int64 {
	id, err := strconv.ParseInt(c.GetHeader("X-Operator-Id"), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, reservation.ErrNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Reservation not found")
	case errors.Is(err, reservation.ErrAlreadyProcessed):
		response.Error(c, http.StatusConflict, "ALREADY_PROCESSED", "Reservation is not in an overridable state")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}
