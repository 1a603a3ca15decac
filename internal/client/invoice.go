package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/config"
)

type invoiceHTTP struct {
	base   string
	hc     *http.Client
	logger *zap.Logger
}

// NewInvoiceService builds the HTTP invoicing adapter.
func NewInvoiceService(cfg config.Config, logger *zap.Logger) InvoiceService {
	return &invoiceHTTP{
		base:   cfg.Clients.Invoice.BaseURL,
		hc:     newHTTPClient(cfg.Clients.Invoice),
		logger: logger,
	}
}

func (c *invoiceHTTP) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, token string) (uuid.UUID, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	if err := postJSON(ctx, c.hc, c.base+"/invoices", token, req, &out); err != nil {
		return uuid.Nil, err
	}
	c.logger.Debug("invoice created", zap.String("invoice_id", out.ID.String()), zap.String("username", req.Username))
	return out.ID, nil
}
