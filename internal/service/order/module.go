package order

import (
	"go.uber.org/fx"

	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
)

// Module provides the order coordinators to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *repo.Repository) Store { return r },
		func() NumberGenerator { return NewNumberGenerator(nil) },
		NewReadService,
		NewWriteService,
	),
)
