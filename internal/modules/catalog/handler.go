package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"servicehub/internal/pkg/response"
	"servicehub/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/categories", h.GetCategories)
	rg.GET("/categories/:id/providers", h.GetCategoryProviders)
}

// RegisterAdminRoutes expects an admin-only group.
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/categories", h.CreateCategory)
}

// GetCategories handles GET /api/v1/categories
func (h *Handler) GetCategories(c *gin.Context) {
	items, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		response.DomainError(c, err, "Failed to list categories")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"categories": items})
}

// GetCategoryProviders handles GET /api/v1/categories/:id/providers
func (h *Handler) GetCategoryProviders(c *gin.Context) {
	items, err := h.service.ListProviders(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to list providers")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"providers": items, "count": len(items)})
}

// CreateCategory handles POST /api/v1/admin/categories
func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid category fields", errs)
		return
	}

	cat, err := h.service.CreateCategory(c.Request.Context(), req)
	if err != nil {
		response.DomainError(c, err, "Failed to create category")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"category": cat})
}
