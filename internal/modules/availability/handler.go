package availability

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"servicehub/internal/domain"
	"servicehub/internal/pkg/response"
)

type Handler struct {
	index *Index
}

func NewHandler(index *Index) *Handler {
	return &Handler{index: index}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers/:id/slots", h.GetSlots)
}

// GET /providers/:id/slots?date=YYYY-MM-DD
func (h *Handler) GetSlots(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "date query parameter is required")
		return
	}

	slots, err := h.index.GetAvailableSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		case errors.Is(err, domain.ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Provider not found")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load availability")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"provider_id": c.Param("id"),
		"date":        date,
		"slots":       slots,
	})
}
