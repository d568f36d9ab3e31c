package availability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"slothold/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/availability", h.GetAvailability)
	rg.GET("/availability/check", h.CheckAvailability)
	rg.GET("/availability/unavailable-dates", h.GetUnavailableDates)
}

// GET /availability?provider_id=&date=YYYY-MM-DD
func (h *Handler) GetAvailability(c *gin.Context) {
	providerID, err := strconv.ParseInt(c.Query("provider_id"), 10, 64)
	if err != nil || providerID <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid provider_id")
		return
	}

	resp, err := h.service.GetAvailability(c.Request.Context(), providerID, c.Query("date"))
	if err != nil {
		if err == ErrValidation {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid date, expected YYYY-MM-DD")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load availability")
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// GET /availability/check?provider_id=&start=&end= (RFC 3339 timestamps)
func (h *Handler) CheckAvailability(c *gin.Context) {
	providerID, err := strconv.ParseInt(c.Query("provider_id"), 10, 64)
	if err != nil || providerID <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid provider_id")
		return
	}
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid start, expected RFC 3339")
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid end, expected RFC 3339")
		return
	}

	resp, err := h.service.CheckAvailability(c.Request.Context(), providerID, start, end)
	if err != nil {
		if err == ErrValidation {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid time window")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to check availability")
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// GET /availability/unavailable-dates?provider_id=&from=&to=
func (h *Handler) GetUnavailableDates(c *gin.Context) {
	providerID, err := strconv.ParseInt(c.Query("provider_id"), 10, 64)
	if err != nil || providerID <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid provider_id")
		return
	}

	resp, err := h.service.GetUnavailableDates(c.Request.Context(), providerID, c.Query("from"), c.Query("to"))
	if err != nil {
		if err == ErrValidation {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid date range")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load unavailable dates")
		return
	}
	response.Success(c, http.StatusOK, resp)
}
