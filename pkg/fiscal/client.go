package fiscal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/atelier-ops/atelier-api/pkg/config"
)

// InvoiceRequest carries the data the fiscal authority needs to authorize
// an invoice for a confirmed payment.
type InvoiceRequest struct {
	PointOfSale   int     `json:"point_of_sale"`
	DocumentType  string  `json:"document_type"`
	CustomerTaxID string  `json:"customer_tax_id"`
	Amount        float64 `json:"amount"`
	Concept       string  `json:"concept"`
	PeriodMonth   int     `json:"period_month"`
	PeriodYear    int     `json:"period_year"`
}

// InvoiceAuthorization is the authority's response. CAE values are issued
// externally and must never be regenerated or overwritten.
type InvoiceAuthorization struct {
	CAE           string    `json:"cae"`
	CAEDueDate    time.Time `json:"cae_due_date"`
	InvoiceNumber string    `json:"invoice_number"`
}

// Authority issues invoice authorizations.
type Authority interface {
	IssueInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceAuthorization, error)
}

// Client talks to the fiscal authority's HTTP gateway.
type Client struct {
	http        *resty.Client
	pointOfSale int
}

// NewClient builds a fiscal client from configuration.
func NewClient(cfg config.FiscalConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIToken).
		SetHeader("Accept", "application/json")

	return &Client{http: http, pointOfSale: cfg.PointOfSale}
}

// IssueInvoice requests authorization for a new invoice. Any transport or
// authority error is returned untouched so callers can abort before
// mutating payment state.
func (c *Client) IssueInvoice(ctx context.Context, req InvoiceRequest) (*InvoiceAuthorization, error) {
	if req.PointOfSale == 0 {
		req.PointOfSale = c.pointOfSale
	}

	var auth InvoiceAuthorization
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&auth).
		Post("/v1/invoices")
	if err != nil {
		return nil, fmt.Errorf("issue invoice: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, fmt.Errorf("issue invoice: authority status %d: %s", resp.StatusCode(), resp.String())
	}
	if auth.CAE == "" {
		return nil, fmt.Errorf("issue invoice: authority returned empty CAE")
	}

	return &auth, nil
}
