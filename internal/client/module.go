package client

import "go.uber.org/fx"

// Module provides the collaborator adapters to Fx.
var Module = fx.Provide(
	NewCartService,
	NewInvoiceService,
	NewPaymentService,
)
