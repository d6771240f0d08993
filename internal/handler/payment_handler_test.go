package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-api/internal/middleware"
	"github.com/atelier-ops/atelier-api/internal/models"
	"github.com/atelier-ops/atelier-api/internal/service"
	appErrors "github.com/atelier-ops/atelier-api/pkg/errors"
)

type paymentServiceMock struct {
	listResp      []models.PaymentDetail
	detailResp    *models.PaymentDetail
	detailErr     error
	receiptResp   []byte
	receiptErr    error
	lastFilter    models.PaymentFilter
	lastActorID   *string
	confirmCalled bool
	invoiceCalled bool
}

func (m *paymentServiceMock) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func (m *paymentServiceMock) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) Create(ctx context.Context, req service.CreatePaymentRequest) (*models.PaymentDetail, error) {
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) NotifySent(ctx context.Context, id string) (*models.PaymentDetail, error) {
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) Confirm(ctx context.Context, id string, actorID *string) (*models.PaymentDetail, error) {
	m.confirmCalled = true
	m.lastActorID = actorID
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) Reject(ctx context.Context, id string, actorID *string) (*models.PaymentDetail, error) {
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) RecordFiscalData(ctx context.Context, id string, req service.RecordFiscalRequest, actorID *string) (*models.PaymentDetail, error) {
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) IssueInvoice(ctx context.Context, id string, req service.IssueInvoiceRequest, actorID *string) (*models.PaymentDetail, error) {
	m.invoiceCalled = true
	return m.detailResp, m.detailErr
}

func (m *paymentServiceMock) Receipt(ctx context.Context, id string) ([]byte, error) {
	return m.receiptResp, m.receiptErr
}

func (m *paymentServiceMock) ExportCSV(ctx context.Context, filter models.PaymentFilter) ([]byte, error) {
	m.lastFilter = filter
	return []byte("ID,Student\n"), nil
}

func adminContext(t *testing.T, w *httptest.ResponseRecorder, req *http.Request) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})
	return c
}

func TestPaymentHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &paymentServiceMock{listResp: []models.PaymentDetail{{Payment: models.Payment{ID: "pay-1"}}}}
	handler := NewPaymentHandler(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/payments?studentId=stu-1&status=pendiente&month=3", nil)
	handler.List(adminContext(t, w, req))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mockSvc.lastFilter.StudentID)
	assert.Equal(t, models.PaymentStatusPendiente, mockSvc.lastFilter.Status)
	assert.Equal(t, 3, mockSvc.lastFilter.PeriodMonth)
	assert.Contains(t, w.Body.String(), `"pay-1"`)
}

func TestPaymentHandlerConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("passes the acting admin through", func(t *testing.T) {
		mockSvc := &paymentServiceMock{detailResp: &models.PaymentDetail{Payment: models.Payment{ID: "pay-1", Status: models.PaymentStatusConfirmado}}}
		handler := NewPaymentHandler(mockSvc)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/payments/pay-1/confirm", nil)
		c := adminContext(t, w, req)
		c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

		handler.Confirm(c)
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, mockSvc.confirmCalled)
		require.NotNil(t, mockSvc.lastActorID)
		assert.Equal(t, "adm-1", *mockSvc.lastActorID)
	})

	t.Run("terminal payment maps to conflict", func(t *testing.T) {
		mockSvc := &paymentServiceMock{detailErr: appErrors.ErrInvalidTransition}
		handler := NewPaymentHandler(mockSvc)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/payments/pay-1/confirm", nil)
		c := adminContext(t, w, req)
		c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

		handler.Confirm(c)
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TRANSITION")
	})
}

func TestPaymentHandlerRecordFiscalInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPaymentHandler(&paymentServiceMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/payments/pay-1/fiscal", bytes.NewBufferString(`{"cae":`))
	req.Header.Set("Content-Type", "application/json")
	c := adminContext(t, w, req)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

	handler.RecordFiscal(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandlerIssueInvoiceDependencyFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &paymentServiceMock{detailErr: appErrors.ErrDependencyFailure}
	handler := NewPaymentHandler(mockSvc)

	payload, _ := json.Marshal(service.IssueInvoiceRequest{DocumentType: "B", CustomerTaxID: "20-12345678-9"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/payments/pay-1/invoice", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c := adminContext(t, w, req)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

	handler.IssueInvoice(c)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.True(t, mockSvc.invoiceCalled)
	assert.Contains(t, w.Body.String(), "DEPENDENCY_FAILURE")
}

func TestPaymentHandlerReceipt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &paymentServiceMock{receiptResp: []byte("%PDF-1.4 test")}
	handler := NewPaymentHandler(mockSvc)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/payments/pay-1/receipt", nil)
	c := adminContext(t, w, req)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

	handler.Receipt(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "receipt-pay-1.pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}
