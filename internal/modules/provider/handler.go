package provider

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"servicehub/internal/domain"
	"servicehub/internal/middleware"
	"servicehub/internal/pkg/response"
	"servicehub/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/providers/:id", h.GetProvider)
}

// RegisterProtectedRoutes expects an authenticated group.
func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	own := rg.Group("/providers")
	own.Use(middleware.RequireRole(domain.RoleProvider))
	{
		own.POST("", h.Register)
		own.GET("/me", h.GetMine)
		own.GET("/me/availability", h.GetMySchedule)
		own.PUT("/me/availability", h.ReplaceMySchedule)
	}
}

// RegisterAdminRoutes expects an admin-only group.
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/providers", h.ListProviders)
	admin.POST("/providers/:id/approve", h.Approve)
	admin.POST("/providers/:id/reject", h.Reject)
	admin.POST("/providers/:id/suspend", h.Suspend)
	admin.POST("/providers/:id/reinstate", h.Reinstate)
}

// GET /providers/:id
// Only approved providers are public.
func (h *Handler) GetProvider(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to load provider")
		return
	}
	if p.Status != domain.ProviderApproved {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Provider not found")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"provider": p})
}

// POST /providers
func (h *Handler) Register(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid provider fields", errs)
		return
	}

	p, err := h.service.Register(c.Request.Context(), RegisterInput{
		UserID:       actor.UserID,
		CategoryID:   req.CategoryID,
		BusinessName: req.BusinessName,
		Description:  req.Description,
		Price:        req.Price,
	})
	if err != nil {
		response.DomainError(c, err, "Failed to register provider")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"provider": p})
}

// GET /providers/me
func (h *Handler) GetMine(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	p, err := h.service.GetByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		response.DomainError(c, err, "Failed to load provider")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"provider": p})
}

// GET /providers/me/availability
func (h *Handler) GetMySchedule(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	p, err := h.service.GetByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		response.DomainError(c, err, "Failed to load provider")
		return
	}

	entries, err := h.service.WeeklySchedule(c.Request.Context(), p.ID)
	if err != nil {
		response.DomainError(c, err, "Failed to load schedule")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// PUT /providers/me/availability
func (h *Handler) ReplaceMySchedule(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)

	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid schedule entries", errs)
		return
	}

	p, err := h.service.GetByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		response.DomainError(c, err, "Failed to load provider")
		return
	}

	entries, err := h.service.ReplaceWeeklySchedule(c.Request.Context(), p.ID, req.toDomain())
	if err != nil {
		response.DomainError(c, err, "Failed to save schedule")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// GET /admin/providers?status=PENDING&page=1&limit=20
func (h *Handler) ListProviders(c *gin.Context) {
	status := domain.ProviderStatus(c.DefaultQuery("status", string(domain.ProviderPending)))
	page := parseIntDefault(c.Query("page"), 1)
	limit := parseIntDefault(c.Query("limit"), 20)

	items, total, err := h.service.ListByStatus(c.Request.Context(), status, page, limit)
	if err != nil {
		response.DomainError(c, err, "Failed to list providers")
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"providers": items,
		"count":     total,
	})
}

func (h *Handler) Approve(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	p, err := h.service.Approve(c.Request.Context(), c.Param("id"), actor.UserID)
	if err != nil {
		response.DomainError(c, err, "Failed to approve provider")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"provider": p})
}

func (h *Handler) Reject(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	actor, _ := middleware.CurrentActor(c)
	p, err := h.service.RejectApplication(c.Request.Context(), c.Param("id"), actor.UserID, reason)
	if err != nil {
		response.DomainError(c, err, "Failed to reject provider")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"provider": p})
}

func (h *Handler) Suspend(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	actor, _ := middleware.CurrentActor(c)
	p, err := h.service.Suspend(c.Request.Context(), c.Param("id"), actor.UserID, reason)
	if err != nil {
		response.DomainError(c, err, "Failed to suspend provider")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"provider": p})
}

func (h *Handler) Reinstate(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	p, err := h.service.Reinstate(c.Request.Context(), c.Param("id"), actor.UserID)
	if err != nil {
		response.DomainError(c, err, "Failed to reinstate provider")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"provider": p})
}

func bindReason(c *gin.Context) (string, bool) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return "", false
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid reason", errs)
		return "", false
	}
	return req.Reason, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
