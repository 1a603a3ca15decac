package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/cache"
	"github.com/gcs-commerce/orderhub/internal/entity"
	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
	service "github.com/gcs-commerce/orderhub/internal/service/order"
	"github.com/gcs-commerce/orderhub/pkg/errorbank"
)

// mapCache is a minimal cache.Store for exercising the read-through path.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	value, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	c.hits++
	return value, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func seedOrder(t *testing.T, store *fakeStore, username string, status entity.Status) uuid.UUID {
	t.Helper()
	order := &entity.Order{
		Number:      "GCS-20240101-" + uuid.NewString()[:6],
		Status:      status,
		TotalAmount: decimal.RequireFromString("42.00"),
		Username:    username,
		Items: []*entity.Item{
			{InventoryID: uuid.New(), Price: decimal.RequireFromString("42.00"), Quantity: 1},
		},
		Created: time.Now().UTC(),
		Updated: time.Now().UTC(),
	}
	require.NoError(t, store.Create(context.Background(), order))
	return order.ID
}

func newReadService(store service.Store, c cache.Store) *service.ReadService {
	return service.NewReadService(service.ReadParams{
		Store:  store,
		Cache:  c,
		Config: testConfig(),
		Logger: zap.NewNop(),
	})
}

func TestGetRequiresID(t *testing.T) {
	read := newReadService(newFakeStore(), nil)

	_, err := read.Get(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))
}

func TestGetUnknownOrder(t *testing.T) {
	read := newReadService(newFakeStore(), nil)

	_, err := read.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))
}

func TestGetLoadsItems(t *testing.T) {
	store := newFakeStore()
	id := seedOrder(t, store, "alice", entity.StatusProcessing)
	read := newReadService(store, nil)

	order, err := read.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, order.Items, 1)
}

func TestGetUsesCacheOnRepeat(t *testing.T) {
	store := newFakeStore()
	id := seedOrder(t, store, "alice", entity.StatusProcessing)
	c := newMapCache()
	read := newReadService(store, c)

	first, err := read.Get(context.Background(), id)
	require.NoError(t, err)
	second, err := read.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TotalAmount.String(), second.TotalAmount.String())
	assert.Equal(t, 1, c.hits)
}

func TestFindEmptyCriteriaReturnsAllRows(t *testing.T) {
	store := newFakeStore()
	seedOrder(t, store, "alice", entity.StatusProcessing)
	seedOrder(t, store, "bob", entity.StatusShipped)
	read := newReadService(store, nil)

	orders, total, err := read.Find(context.Background(), repo.SearchCriteria{}, repo.Pageable{Size: 10})
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 2, total)
}

func TestFindNoMatchesIsNotFound(t *testing.T) {
	store := newFakeStore()
	seedOrder(t, store, "alice", entity.StatusProcessing)
	read := newReadService(store, nil)

	nobody := "nobody"
	_, _, err := read.Find(context.Background(), repo.SearchCriteria{Username: &nobody}, repo.Pageable{Size: 10})
	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindNotFound, appErr.Kind())
	assert.Contains(t, appErr.Message(), "username=nobody")
}

func TestFindEmptyStoreIsNotFound(t *testing.T) {
	read := newReadService(newFakeStore(), nil)

	_, _, err := read.Find(context.Background(), repo.SearchCriteria{}, repo.Pageable{Size: 10})
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))
}

func TestFindFiltersByStatus(t *testing.T) {
	store := newFakeStore()
	seedOrder(t, store, "alice", entity.StatusProcessing)
	seedOrder(t, store, "alice", entity.StatusShipped)
	read := newReadService(store, nil)

	shipped := entity.StatusShipped
	orders, total, err := read.Find(context.Background(), repo.SearchCriteria{Status: &shipped}, repo.Pageable{Size: 10})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, entity.StatusShipped, orders[0].Status)
}

func TestFindNormalizesNegativePagination(t *testing.T) {
	store := newFakeStore()
	seedOrder(t, store, "alice", entity.StatusProcessing)
	read := newReadService(store, nil)

	orders, _, err := read.Find(context.Background(), repo.SearchCriteria{}, repo.Pageable{Number: -1, Size: -1})
	require.NoError(t, err)
	assert.NotEmpty(t, orders)
}

func TestDefaultsComeFromConfig(t *testing.T) {
	read := newReadService(newFakeStore(), nil)
	defaults := read.Defaults()
	assert.Equal(t, 5, defaults.Size)
	assert.Equal(t, 0, defaults.Number)
}
