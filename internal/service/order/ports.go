package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/gcs-commerce/orderhub/internal/entity"
	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
)

// Store is the persistence surface the coordinators depend on. The bun
// repository satisfies it; tests substitute in-memory fakes.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	Update(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id uuid.UUID, withItems bool) (*entity.Order, error)
	Query(ctx context.Context, criteria repo.SearchCriteria, page repo.Pageable) ([]entity.Order, int, error)
}
