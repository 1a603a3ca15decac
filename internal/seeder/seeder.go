package seeder

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/database"
	"github.com/gcs-commerce/orderhub/internal/entity"
)

// Module wires the seeder into Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Orders seeds example orders with items if they are missing.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.Order{
		{
			Number:      "GCS-20240101-SEED01",
			Status:      entity.StatusProcessing,
			TotalAmount: decimal.RequireFromString("199.98"),
			Username:    "alice",
			Created:     now,
			Updated:     now,
			Items: []*entity.Item{
				{InventoryID: uuid.New(), Price: decimal.RequireFromString("99.99"), Quantity: 2},
			},
		},
		{
			Number:      "GCS-20240101-SEED02",
			Status:      entity.StatusShipped,
			TotalAmount: decimal.RequireFromString("15.50"),
			Username:    "bob",
			Created:     now,
			Updated:     now,
			Items: []*entity.Item{
				{InventoryID: uuid.New(), Price: decimal.RequireFromString("3.10"), Quantity: 5},
			},
		},
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, sample := range samples {
			order := sample
			res, err := tx.NewInsert().Model(&order).
				On("CONFLICT (number) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return err
			}
			if affected, _ := res.RowsAffected(); affected == 0 {
				continue
			}
			for _, item := range order.Items {
				item.OrderID = order.ID
			}
			if _, err := tx.NewInsert().Model(&order.Items).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	}
	return nil
}
