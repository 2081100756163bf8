package ledger

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"servicehub/internal/domain"
	"servicehub/internal/pkg/response"
	"servicehub/internal/pkg/validator"
)

type Handler struct {
	ledger  *Ledger
	loggerf func(format string, args ...interface{})
}

func NewHandler(ledger *Ledger, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{ledger: ledger, loggerf: loggerf}
}

// RegisterAdminRoutes expects an admin-only group.
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/payments", h.ListPayments)
	admin.GET("/payments/summary", h.GetSummary)
	admin.GET("/payments/:id", h.GetPayment)
	admin.POST("/payments", h.RecordPayment)
	admin.POST("/payments/:id/payout", h.MarkPaidOut)
	admin.POST("/payments/:id/refund", h.Refund)
}

// RegisterInternalRoutes expects a group behind the internal token.
func (h *Handler) RegisterInternalRoutes(internal *gin.RouterGroup) {
	internal.POST("/payments/confirmed", h.PaymentConfirmed)
}

// ListPayments godoc
// @Summary      List payments
// @Tags         Admin - Payments
// @Security     BearerAuth
// @Param        status query string false "PENDING|COMPLETED|FAILED|REFUNDED|PAID_TO_PROVIDER"
// @Param        page   query int    false "Page (default 1)"
// @Param        limit  query int    false "Page size (default 20)"
// @Router       /admin/payments [get]
func (h *Handler) ListPayments(c *gin.Context) {
	page := parseIntDefault(c.Query("page"), 1)
	limit := parseIntDefault(c.Query("limit"), 20)

	items, total, err := h.ledger.List(c.Request.Context(), domain.PaymentStatus(c.Query("status")), page, limit)
	if err != nil {
		response.DomainError(c, err, "Failed to list payments")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"payments": items,
		"count":    total,
		"page":     page,
	})
}

// GetSummary godoc
// @Summary      Payment totals for the admin dashboard
// @Tags         Admin - Payments
// @Security     BearerAuth
// @Router       /admin/payments/summary [get]
func (h *Handler) GetSummary(c *gin.Context) {
	totals, err := h.ledger.Summary(c.Request.Context())
	if err != nil {
		response.DomainError(c, err, "Failed to compute payment summary")
		return
	}
	response.Success(c, http.StatusOK, totals)
}

func (h *Handler) GetPayment(c *gin.Context) {
	p, err := h.ledger.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to load payment")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

// RecordPayment godoc
// @Summary      Record a payment by hand
// @Description  Used for offline captures and cancellation fees. kind picks the configured fee rate.
// @Tags         Admin - Payments
// @Security     BearerAuth
// @Param        body body RecordPaymentRequest true "Payment"
// @Router       /admin/payments [post]
func (h *Handler) RecordPayment(c *gin.Context) {
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payment fields", errs)
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = KindStandard
	}
	p, err := h.ledger.RecordPayment(c.Request.Context(), req.RequestID, req.Amount, h.ledger.Rates().For(kind))
	if err != nil {
		response.DomainError(c, err, "Failed to record payment")
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"payment": p})
}

// MarkPaidOut godoc
// @Summary      Mark a payment as paid to the provider
// @Tags         Admin - Payments
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Router       /admin/payments/{id}/payout [post]
func (h *Handler) MarkPaidOut(c *gin.Context) {
	p, err := h.ledger.MarkPaidOut(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to mark payout")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

// Refund godoc
// @Summary      Refund a payment
// @Description  Applies the provider penalty (10% of the gross amount).
// @Tags         Admin - Payments
// @Security     BearerAuth
// @Param        id path string true "Payment ID"
// @Router       /admin/payments/{id}/refund [post]
func (h *Handler) Refund(c *gin.Context) {
	p, err := h.ledger.Reverse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.DomainError(c, err, "Failed to refund payment")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"payment": p})
}

// PaymentConfirmed godoc
// @Summary      Payment processor confirmation hook
// @Description  Idempotent: a replayed confirmation returns the stored payment.
// @Tags         Internal
// @Param        body body ConfirmPaymentRequest true "Confirmation"
// @Router       /internal/payments/confirmed [post]
func (h *Handler) PaymentConfirmed(c *gin.Context) {
	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.loggerf("level=error msg=invalid_payment_confirmation err=%v", err)
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid confirmation fields", errs)
		return
	}

	p, err := h.ledger.ConfirmPayment(c.Request.Context(), PaymentConfirmation{
		RequestID:  req.RequestID,
		Amount:     req.Amount,
		Status:     req.Status,
		ExternalID: req.ExternalID,
	})
	if err != nil {
		h.loggerf("level=error msg=payment_confirmation_failed request_id=%s external_id=%s err=%v", req.RequestID, req.ExternalID, err)
		response.DomainError(c, err, "Failed to record payment")
		return
	}
	if p == nil {
		response.Success(c, http.StatusAccepted, gin.H{"recorded": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"recorded": true, "payment": p})
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
