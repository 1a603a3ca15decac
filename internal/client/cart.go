package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/config"
)

type cartHTTP struct {
	base   string
	hc     *http.Client
	logger *zap.Logger
}

// NewCartService builds the HTTP cart reservation adapter.
func NewCartService(cfg config.Config, logger *zap.Logger) CartService {
	return &cartHTTP{
		base:   cfg.Clients.Cart.BaseURL,
		hc:     newHTTPClient(cfg.Clients.Cart),
		logger: logger,
	}
}

func (c *cartHTTP) Release(ctx context.Context, itemRefs []uuid.UUID, token string) (bool, error) {
	var out struct {
		Removed bool `json:"removed"`
	}
	body := struct {
		InventoryIDs []uuid.UUID `json:"inventoryIds"`
	}{InventoryIDs: itemRefs}

	if err := postJSON(ctx, c.hc, c.base+"/shopping-cart/items/release", token, body, &out); err != nil {
		return false, err
	}
	c.logger.Debug("cart items released", zap.Int("count", len(itemRefs)), zap.Bool("removed", out.Removed))
	return out.Removed, nil
}
