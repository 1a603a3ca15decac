package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/cache"
	"github.com/gcs-commerce/orderhub/internal/config"
	"github.com/gcs-commerce/orderhub/internal/entity"
	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
	"github.com/gcs-commerce/orderhub/pkg/errorbank"
)

var readTracer = otel.Tracer("github.com/gcs-commerce/orderhub/service/order/read")

// ReadService is the thin read-side coordinator: point lookup with item
// expansion and filtered, paginated search. An empty result set is reported
// as not-found, not as an empty success.
type ReadService struct {
	store    Store
	cache    cache.Store
	cacheTTL time.Duration
	defaults repo.Pageable
	logger   *zap.Logger
}

// ReadParams defines dependencies for constructing ReadService.
type ReadParams struct {
	fx.In

	Store  Store
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// NewReadService wires a new ReadService instance.
func NewReadService(p ReadParams) *ReadService {
	return &ReadService{
		store:    p.Store,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		defaults: repo.Pageable{
			Number: p.Config.Pagination.DefaultNumber,
			Size:   p.Config.Pagination.DefaultSize,
		},
		logger: p.Logger,
	}
}

// Defaults exposes the configured pagination defaults to transports.
func (s *ReadService) Defaults() repo.Pageable {
	return s.defaults
}

// Get retrieves an order with its items, consulting cache first.
func (s *ReadService) Get(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	ctx, span := readTracer.Start(ctx, "OrderReadService.Get", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	if id == uuid.Nil {
		return nil, errorbank.NotFound("order id is required")
	}

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id.String()), zap.Error(err))
	}

	order, err := s.store.GetByID(ctx, id, true)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
			return nil, errorbank.NotFound(fmt.Sprintf("no order with id %s", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", id.String()), zap.Error(err))
	}

	return order, nil
}

// Find runs a filtered, paginated search. Empty criteria fall back to an
// unfiltered scan; a result without rows is a not-found condition carrying
// the criteria.
func (s *ReadService) Find(ctx context.Context, criteria repo.SearchCriteria, page repo.Pageable) ([]entity.Order, int, error) {
	ctx, span := readTracer.Start(ctx, "OrderReadService.Find", trace.WithAttributes(
		attribute.Int("page.number", page.Number),
		attribute.Int("page.size", page.Size),
	))
	defer span.End()

	if page.Size < 0 {
		page.Size = s.defaults.Size
	}
	if page.Number < 0 {
		page.Number = s.defaults.Number
	}

	orders, total, err := s.store.Query(ctx, criteria, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, 0, errorbank.Internal("order search failed", errorbank.WithCause(err))
	}

	if len(orders) == 0 {
		span.SetStatus(codes.Error, "no rows")
		if criteria.Empty() {
			return nil, 0, errorbank.NotFound(fmt.Sprintf("no orders on page %d", page.Number))
		}
		return nil, 0, errorbank.NotFound(fmt.Sprintf("no orders matching %s on page %d", criteria, page.Number))
	}

	return orders, total, nil
}

func (s *ReadService) cacheKey(id uuid.UUID) string {
	return "orders:" + id.String()
}

func (s *ReadService) getFromCache(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *ReadService) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *ReadService) evictFromCache(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache evict failed", zap.String("id", id.String()), zap.Error(err))
	}
}
