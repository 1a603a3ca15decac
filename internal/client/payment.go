package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/config"
)

type paymentHTTP struct {
	base   string
	hc     *http.Client
	logger *zap.Logger
}

// NewPaymentService builds the HTTP payment adapter.
func NewPaymentService(cfg config.Config, logger *zap.Logger) PaymentService {
	return &paymentHTTP{
		base:   cfg.Clients.Payment.BaseURL,
		hc:     newHTTPClient(cfg.Clients.Payment),
		logger: logger,
	}
}

func (c *paymentHTTP) Pay(ctx context.Context, req PaymentRequest, token string) (uuid.UUID, error) {
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	if err := postJSON(ctx, c.hc, c.base+"/payments", token, req, &out); err != nil {
		return uuid.Nil, err
	}
	c.logger.Debug("payment accepted", zap.String("payment_id", out.ID.String()), zap.String("order_number", req.OrderNumber))
	return out.ID, nil
}
