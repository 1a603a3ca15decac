// Package client holds the outbound adapters for the services the order
// write path depends on: cart reservation, invoicing, and payment. The
// coordinator consumes the interfaces; the HTTP implementations here are
// selected through configuration.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gcs-commerce/orderhub/internal/config"
)

// CartService releases reserved cart items after an order is placed.
type CartService interface {
	Release(ctx context.Context, itemRefs []uuid.UUID, token string) (bool, error)
}

// InvoiceService creates an invoice for a computed order amount.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest, token string) (uuid.UUID, error)
}

// PaymentService charges the payer account for an order.
type PaymentService interface {
	Pay(ctx context.Context, req PaymentRequest, token string) (uuid.UUID, error)
}

// CreateInvoiceRequest is the invoicing payload.
type CreateInvoiceRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	DueDate  string          `json:"dueDate"`
	Username string          `json:"username"`
}

// PaymentRequest is the payment payload.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Method      string          `json:"method"`
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	OrderNumber string          `json:"orderNumber"`
	AccountID   uuid.UUID       `json:"accountId"`
}

func newHTTPClient(ep config.Endpoint) *http.Client {
	return &http.Client{Timeout: ep.Timeout}
}

// postJSON sends a JSON body with a bearer token and decodes the response
// into out when the status is 2xx.
func postJSON(ctx context.Context, hc *http.Client, url, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", url, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
