package fiscal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-ops/atelier-api/pkg/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.FiscalConfig{
		BaseURL:     url,
		APIToken:    "test-token",
		PointOfSale: 3,
		Timeout:     2 * time.Second,
	})
}

func TestClientIssueInvoice(t *testing.T) {
	t.Run("parses a granted authorization", func(t *testing.T) {
		var got InvoiceRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/invoices", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(InvoiceAuthorization{
				CAE:           "71234567890123",
				CAEDueDate:    time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
				InvoiceNumber: "0001-00001234",
			})
		}))
		defer srv.Close()

		auth, err := newTestClient(srv.URL).IssueInvoice(context.Background(), InvoiceRequest{
			DocumentType:  "B",
			CustomerTaxID: "20-12345678-9",
			Amount:        15000,
			Concept:       "Cuota marzo",
			PeriodMonth:   3,
			PeriodYear:    2026,
		})
		require.NoError(t, err)
		assert.Equal(t, "71234567890123", auth.CAE)
		assert.Equal(t, "0001-00001234", auth.InvoiceNumber)
		assert.Equal(t, 3, got.PointOfSale)
	})

	t.Run("authority error surfaces without an authorization", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid tax id"}`, http.StatusUnprocessableEntity)
		}))
		defer srv.Close()

		auth, err := newTestClient(srv.URL).IssueInvoice(context.Background(), InvoiceRequest{Amount: 100})
		require.Error(t, err)
		assert.Nil(t, auth)
		assert.Contains(t, err.Error(), "authority status 422")
	})

	t.Run("empty CAE is treated as a failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(InvoiceAuthorization{})
		}))
		defer srv.Close()

		auth, err := newTestClient(srv.URL).IssueInvoice(context.Background(), InvoiceRequest{Amount: 100})
		require.Error(t, err)
		assert.Nil(t, auth)
		assert.Contains(t, err.Error(), "empty CAE")
	})

	t.Run("unreachable authority returns a transport error", func(t *testing.T) {
		auth, err := newTestClient("http://127.0.0.1:1").IssueInvoice(context.Background(), InvoiceRequest{Amount: 100})
		require.Error(t, err)
		assert.Nil(t, auth)
	})
}
