package request

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"servicehub/internal/domain"
	"servicehub/internal/middleware"
	"servicehub/internal/pkg/response"
	"servicehub/internal/pkg/validator"
)

// ProviderLookup resolves the provider profile owned by a user account.
type ProviderLookup interface {
	GetByUserID(ctx context.Context, userID string) (*domain.ServiceProvider, error)
}

type Handler struct {
	service   *Service
	providers ProviderLookup
}

func NewHandler(service *Service, providers ProviderLookup) *Handler {
	return &Handler{service: service, providers: providers}
}

// RegisterRoutes expects rg to be authenticated already. submitLimiter guards POST /requests.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, submitLimiter gin.HandlerFunc) {
	if submitLimiter == nil {
		submitLimiter = func(c *gin.Context) { c.Next() }
	}
	requests := rg.Group("/requests")
	{
		requests.POST("", middleware.RequireRole(domain.RoleClient), submitLimiter, h.Submit)
		requests.GET("/mine", middleware.RequireRole(domain.RoleClient), h.ListMine)
		requests.GET("/assigned", middleware.RequireRole(domain.RoleProvider), h.ListAssigned)
		requests.GET("/:id", h.Get)
		requests.POST("/:id/accept", middleware.RequireRole(domain.RoleProvider), h.Accept)
		requests.POST("/:id/reject", middleware.RequireRole(domain.RoleProvider), h.Reject)
		requests.POST("/:id/complete", middleware.RequireRole(domain.RoleClient), h.Complete)
		requests.POST("/:id/cancel", middleware.RequireRole(domain.RoleClient, domain.RoleAdmin), h.Cancel)
	}
}

// POST /requests
func (h *Handler) Submit(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)

	var body SubmitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request fields", errs)
		return
	}

	req, err := h.service.Submit(c.Request.Context(), SubmitInput{
		ClientID:      actor.UserID,
		CategoryID:    body.CategoryID,
		ScheduledDate: body.ScheduledDate,
		ScheduledTime: body.ScheduledTime,
	})
	if err != nil {
		response.DomainError(c, err, "Failed to submit request")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"request": req})
}

// GET /requests/mine?status=&limit=&offset=
func (h *Handler) ListMine(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	limit, offset := pageParams(c)

	items, err := h.service.ListForClient(c.Request.Context(), actor.UserID, domain.RequestStatus(c.Query("status")), limit, offset)
	if err != nil {
		response.DomainError(c, err, "Failed to list requests")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"requests": items, "count": len(items)})
}

// GET /requests/assigned?status=&limit=&offset=
func (h *Handler) ListAssigned(c *gin.Context) {
	p, ok := h.callerProvider(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)

	items, err := h.service.ListForProvider(c.Request.Context(), p.ID, domain.RequestStatus(c.Query("status")), limit, offset)
	if err != nil {
		response.DomainError(c, err, "Failed to list requests")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"requests": items, "count": len(items)})
}

// GET /requests/:id
// Visible to the owning client, the assigned provider and admins.
func (h *Handler) Get(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)

	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to load request")
		return
	}

	switch {
	case actor.IsAdmin(), req.ClientID == actor.UserID:
	case actor.Role == domain.RoleProvider:
		p, err := h.providers.GetByUserID(c.Request.Context(), actor.UserID)
		if err != nil || !req.AssignedTo(p.ID) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Request not found")
			return
		}
	default:
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Request not found")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"request": req})
}

// POST /requests/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	p, ok := h.callerProvider(c)
	if !ok {
		return
	}

	req, err := h.service.Accept(c.Request.Context(), c.Param("id"), p.ID)
	if err != nil {
		response.DomainError(c, err, "Failed to accept request")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"request": req})
}

// POST /requests/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	p, ok := h.callerProvider(c)
	if !ok {
		return
	}

	req, err := h.service.Reject(c.Request.Context(), c.Param("id"), p.ID)
	if err != nil {
		response.DomainError(c, err, "Failed to reject request")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"request": req})
}

// POST /requests/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	if _, ok := h.ownedRequest(c); !ok {
		return
	}

	var body CompleteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(body); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request fields", errs)
		return
	}

	req, err := h.service.Complete(c.Request.Context(), c.Param("id"), body.Rating, body.Feedback)
	if err != nil {
		response.DomainError(c, err, "Failed to complete request")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"request": req})
}

// POST /requests/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	actor, _ := middleware.CurrentActor(c)
	if !actor.IsAdmin() {
		if _, ok := h.ownedRequest(c); !ok {
			return
		}
	}

	var body CancelRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
		if errs := validator.Validate(body); errs != nil {
			response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request fields", errs)
			return
		}
	}

	req, err := h.service.Cancel(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		response.DomainError(c, err, "Failed to cancel request")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"request": req})
}

// ownedRequest loads :id and checks the caller is its client. Someone else's
// request answers 404 so ids do not leak.
func (h *Handler) ownedRequest(c *gin.Context) (*domain.ServiceRequest, bool) {
	actor, _ := middleware.CurrentActor(c)
	req, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to load request")
		return nil, false
	}
	if req.ClientID != actor.UserID {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Request not found")
		return nil, false
	}
	return req, true
}

func (h *Handler) callerProvider(c *gin.Context) (*domain.ServiceProvider, bool) {
	actor, _ := middleware.CurrentActor(c)
	p, err := h.providers.GetByUserID(c.Request.Context(), actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		response.Error(c, http.StatusForbidden, "PROVIDER_PROFILE_REQUIRED", "No provider profile for this account")
		return nil, false
	}
	if err != nil {
		response.DomainError(c, err, "Failed to load provider profile")
		return nil, false
	}
	return p, true
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit = parseIntDefault(c.Query("limit"), 20)
	offset = parseIntDefault(c.Query("offset"), 0)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
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
