package waitlist

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

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
	rg.POST("/waitlist", h.Join)
	rg.GET("/waitlist/:id", h.GetEntry)
	rg.POST("/waitlist/:id/claim", h.Claim)
}

func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	e, err := h.service.Join(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid waitlist request")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to join waitlist")
		return
	}
	response.Success(c, http.StatusCreated, e)
}

func (h *Handler) GetEntry(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	e, err := h.service.GetEntry(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Waitlist entry not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load waitlist entry")
		return
	}
	response.Success(c, http.StatusOK, e)
}

func (h *Handler) Claim(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	resp, err := h.service.Claim(c.Request.Context(), id, req.RequesterID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Waitlist entry not found")
		case errors.Is(err, ErrForbidden):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Entry belongs to another requester")
		case errors.Is(err, ErrNoOffer):
			response.Error(c, http.StatusConflict, "NO_ACTIVE_OFFER", "Entry has no active offer")
		case errors.Is(err, ErrOfferExpired):
			response.Error(c, http.StatusGone, "OFFER_EXPIRED", "The offer window has lapsed")
		case errors.Is(err, reservation.ErrSlotConflict):
			var details any
			if resp != nil {
				details = resp.Conflicts
			}
			response.ErrorWithDetails(c, http.StatusConflict, "SLOT_CONFLICT", "Slot was taken before the claim", details)
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to claim offer")
		}
		return
	}
	response.Success(c, http.StatusCreated, resp)
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid entry id")
		return 0, false
	}
	return id, true
}
