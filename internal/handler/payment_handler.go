package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/service"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
	"github.com/atelier-ops/atelier-api/pkg/response"
)

type paymentService interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.PaymentDetail, error)
	Create(ctx context.Context, req service.CreatePaymentRequest) (*models.PaymentDetail, error)
	NotifySent(ctx context.Context, id string) (*models.PaymentDetail, error)
	Confirm(ctx context.Context, id string, actorID *string) (*models.PaymentDetail, error)
	Reject(ctx context.Context, id string, actorID *string) (*models.PaymentDetail, error)
	RecordFiscalData(ctx context.Context, id string, req service.RecordFiscalRequest, actorID *string) (*models.PaymentDetail, error)
	IssueInvoice(ctx context.Context, id string, req service.IssueInvoiceRequest, actorID *string) (*models.PaymentDetail, error)
	Receipt(ctx context.Context, id string) ([]byte, error)
	ExportCSV(ctx context.Context, filter models.PaymentFilter) ([]byte, error)
}

// PaymentHandler exposes payment lifecycle endpoints.
type PaymentHandler struct {
	payments paymentService
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments paymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

func paymentFilterFromQuery(c *gin.Context) models.PaymentFilter {
	var filter models.PaymentFilter
	filter.StudentID = c.Query("studentId")
	filter.EnrollmentID = c.Query("enrollmentId")
	filter.Status = models.PaymentStatus(strings.ToUpper(c.Query("status")))
	if month, err := strconv.Atoi(c.Query("month")); err == nil {
		filter.PeriodMonth = month
	}
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.PeriodYear = year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// List godoc
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param enrollmentId query string false "Filter by enrollment"
// @Param status query string false "Filter by status"
// @Param month query int false "Period month"
// @Param year query int false "Period year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	payments, pagination, err := h.payments.List(c.Request.Context(), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Get godoc
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	payment, err := h.payments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Create godoc
// @Summary Register a payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreatePaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// NotifySent godoc
// @Summary Mark payment as sent by the student
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/notify-sent [post]
func (h *PaymentHandler) NotifySent(c *gin.Context) {
	payment, err := h.payments.NotifySent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Confirm godoc
// @Summary Confirm payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	payment, err := h.payments.Confirm(c.Request.Context(), c.Param("id"), actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Reject godoc
// @Summary Reject payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/reject [post]
func (h *PaymentHandler) Reject(c *gin.Context) {
	payment, err := h.payments.Reject(c.Request.Context(), c.Param("id"), actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// RecordFiscal godoc
// @Summary Record externally issued fiscal data
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.RecordFiscalRequest true "Fiscal payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/fiscal [post]
func (h *PaymentHandler) RecordFiscal(c *gin.Context) {
	var req service.RecordFiscalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.RecordFiscalData(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// IssueInvoice godoc
// @Summary Issue electronic invoice through the fiscal authority
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.IssueInvoiceRequest true "Invoice payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/invoice [post]
func (h *PaymentHandler) IssueInvoice(c *gin.Context) {
	var req service.IssueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	payment, err := h.payments.IssueInvoice(c.Request.Context(), c.Param("id"), req, actorIDFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Receipt godoc
// @Summary Download payment receipt PDF
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	id := c.Param("id")
	data, err := h.payments.Receipt(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", id))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Export godoc
// @Summary Export payments as CSV
// @Tags Payments
// @Produce text/csv
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param month query int false "Period month"
// @Param year query int false "Period year"
// @Success 200 {file} binary
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	data, err := h.payments.ExportCSV(c.Request.Context(), paymentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("payments-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
