package order_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/client"
	"github.com/gcs-commerce/orderhub/internal/config"
	"github.com/gcs-commerce/orderhub/internal/entity"
	"github.com/gcs-commerce/orderhub/internal/messaging"
	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
	service "github.com/gcs-commerce/orderhub/internal/service/order"
	"github.com/gcs-commerce/orderhub/pkg/errorbank"
)

// fakeStore is an in-memory Store that can be scripted to reject a number
// of inserts as order-number duplicates.
type fakeStore struct {
	mu             sync.Mutex
	orders         map[uuid.UUID]*entity.Order
	rejectInserts  int
	createAttempts int
	failCreate     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[uuid.UUID]*entity.Order)}
}

func (s *fakeStore) Create(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createAttempts++
	if s.failCreate != nil {
		return s.failCreate
	}
	if s.rejectInserts > 0 {
		s.rejectInserts--
		return repo.ErrDuplicateNumber
	}
	order.ID = uuid.New()
	clone := *order
	s.orders[order.ID] = &clone
	return nil
}

func (s *fakeStore) Update(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.orders[order.ID]
	if !ok || current.Version != order.Version {
		return repo.ErrVersionConflict
	}
	order.Version++
	order.Updated = time.Now().UTC()
	clone := *order
	s.orders[order.ID] = &clone
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID, _ bool) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	clone := *order
	return &clone, nil
}

func (s *fakeStore) Query(_ context.Context, criteria repo.SearchCriteria, page repo.Pageable) ([]entity.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []entity.Order
	for _, order := range s.orders {
		if criteria.Username != nil && order.Username != *criteria.Username {
			continue
		}
		if criteria.Status != nil && order.Status != *criteria.Status {
			continue
		}
		rows = append(rows, *order)
	}
	return rows, len(rows), nil
}

type fakeCart struct {
	mu     sync.Mutex
	calls  int
	err    error
	called chan struct{}
}

func newFakeCart(err error) *fakeCart {
	return &fakeCart{err: err, called: make(chan struct{}, 8)}
}

func (c *fakeCart) Release(context.Context, []uuid.UUID, string) (bool, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	c.called <- struct{}{}
	if c.err != nil {
		return false, c.err
	}
	return true, nil
}

type fakeInvoices struct {
	id  uuid.UUID
	err error
}

func (i *fakeInvoices) CreateInvoice(context.Context, client.CreateInvoiceRequest, string) (uuid.UUID, error) {
	if i.err != nil {
		return uuid.Nil, i.err
	}
	return i.id, nil
}

type fakePayments struct {
	mu       sync.Mutex
	id       uuid.UUID
	err      error
	calls    int
	requests []client.PaymentRequest
}

func (p *fakePayments) Pay(_ context.Context, req client.PaymentRequest, _ string) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.requests = append(p.requests, req)
	if p.err != nil {
		return uuid.Nil, p.err
	}
	return p.id, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published chan publishedMessage
}

type publishedMessage struct {
	key     []byte
	value   []byte
	headers map[string]string
}

func newFakePublisher(err error) *fakePublisher {
	return &fakePublisher{err: err, published: make(chan publishedMessage, 8)}
}

func (p *fakePublisher) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	p.published <- publishedMessage{key: key, value: value, headers: headers}
	return p.err
}

func (p *fakePublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePublisher) Topic() string { return "orders.events" }

// staleReadStore serves reads from a fixed snapshot so the conditional save
// races against a newer row.
type staleReadStore struct {
	*fakeStore
	snapshot *entity.Order
}

func (s *staleReadStore) GetByID(context.Context, uuid.UUID, bool) (*entity.Order, error) {
	clone := *s.snapshot
	return &clone, nil
}

type fixture struct {
	store     *fakeStore
	cart      *fakeCart
	invoices  *fakeInvoices
	payments  *fakePayments
	publisher *fakePublisher
	read      *service.ReadService
	write     *service.WriteService
}

func testConfig() config.Config {
	return config.Config{
		Payment:    config.Payment{Currency: "EUR", Method: "APPLE_PAY"},
		Pagination: config.Pagination{DefaultSize: 5, DefaultNumber: 0},
		Messaging:  config.Messaging{Enabled: true},
		Observability: config.Observability{
			ServiceName: "orderhub-test",
		},
		Cache: config.Cache{DefaultTTL: time.Minute},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFakeStore(),
		cart:      newFakeCart(nil),
		invoices:  &fakeInvoices{id: uuid.New()},
		payments:  &fakePayments{id: uuid.New()},
		publisher: newFakePublisher(nil),
	}
	f.rebuild(t)
	return f
}

func (f *fixture) rebuild(t *testing.T) {
	t.Helper()
	logger := zap.NewNop()
	cfg := testConfig()
	f.read = service.NewReadService(service.ReadParams{
		Store:  f.store,
		Config: cfg,
		Logger: logger,
	})
	f.write = service.NewWriteService(service.WriteParams{
		Store:     f.store,
		Reader:    f.read,
		Cart:      f.cart,
		Invoices:  f.invoices,
		Payments:  f.payments,
		Publisher: f.publisher,
		Numbers:   service.NewNumberGenerator(nil),
		Config:    cfg,
		Logger:    logger,
	})
}

func draftWith(items ...*entity.Item) service.Draft {
	return service.Draft{Username: "alice", Items: items}
}

func item(price string, qty int) *entity.Item {
	return &entity.Item{
		InventoryID: uuid.New(),
		Price:       decimal.RequireFromString(price),
		Quantity:    qty,
	}
}

func kindOf(err error) errorbank.Kind {
	return errorbank.From(err).Kind()
}

func TestCreateComputesExactDecimalTotal(t *testing.T) {
	tests := []struct {
		name  string
		items []*entity.Item
		want  string
	}{
		{"single item", []*entity.Item{item("100.00", 2)}, "200"},
		{"binary-float trap", []*entity.Item{item("0.10", 1), item("0.20", 1)}, "0.3"},
		{"mixed quantities", []*entity.Item{item("19.99", 3), item("5.01", 1)}, "64.98"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			id, err := f.write.Create(context.Background(), draftWith(tc.items...), "token", uuid.New())
			require.NoError(t, err)

			stored, err := f.store.GetByID(context.Background(), id, true)
			require.NoError(t, err)
			assert.Equal(t, tc.want, stored.TotalAmount.String())
		})
	}
}

func TestCreateDerivesStatusAndVersion(t *testing.T) {
	f := newFixture(t)
	id, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.NoError(t, err)

	stored, err := f.store.GetByID(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, "alice", stored.Username)
}

func TestCreateRetriesOnNumberCollision(t *testing.T) {
	f := newFixture(t)
	f.store.rejectInserts = 3

	id, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 4, f.store.createAttempts)
	// A fresh payment is issued on every attempt, collisions included.
	assert.Equal(t, 4, f.payments.calls)

	stored, err := f.store.GetByID(context.Background(), id, true)
	require.NoError(t, err)
	numberShape := regexp.MustCompile(`^GCS-(\d{8}-[0-9A-Z]{6}|.{1,16}-\d{8})$`)
	assert.Regexp(t, numberShape, stored.Number)
}

func TestCreateFailsAfterCollisionBudgetExhausted(t *testing.T) {
	f := newFixture(t)
	f.store.rejectInserts = 100

	_, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.Error(t, err)
	assert.Equal(t, errorbank.KindInternal, kindOf(err))
	assert.Equal(t, 5, f.store.createAttempts)
	assert.Equal(t, 5, f.payments.calls)
}

func TestCreateAbortsWhenInvoiceFails(t *testing.T) {
	f := newFixture(t)
	f.invoices.err = errors.New("invoice service down")
	f.rebuild(t)

	_, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.Error(t, err)
	assert.Equal(t, errorbank.KindInternal, kindOf(err))
	assert.Zero(t, f.store.createAttempts)
	assert.Zero(t, f.payments.calls)
}

func TestCreateAbortsWhenPaymentFails(t *testing.T) {
	f := newFixture(t)
	f.payments.err = errors.New("payment declined")

	_, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.Error(t, err)
	assert.Equal(t, 1, f.payments.calls)
	assert.Zero(t, f.store.createAttempts)
}

func TestCreateSurvivesCartReleaseFailure(t *testing.T) {
	f := newFixture(t)
	f.cart = newFakeCart(errors.New("cart unavailable"))
	f.rebuild(t)

	id, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	select {
	case <-f.cart.called:
	case <-time.After(time.Second):
		t.Fatal("cart release was never attempted")
	}
}

func TestCreateSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher = newFakePublisher(errors.New("broker down"))
	f.rebuild(t)

	id, err := f.write.Create(context.Background(), draftWith(item("10.00", 1)), "token", uuid.New())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
}

func TestCreatePublishesCreatedEvent(t *testing.T) {
	f := newFixture(t)

	id, err := f.write.Create(context.Background(), draftWith(item("25.50", 2)), "token", uuid.New())
	require.NoError(t, err)

	select {
	case msg := <-f.publisher.published:
		assert.Equal(t, "order-"+id.String(), string(msg.key))
		assert.Contains(t, string(msg.value), `"username":"alice"`)
		assert.Equal(t, "orderhub-test", msg.headers["source"])
	case <-time.After(time.Second):
		t.Fatal("created event was never published")
	}
}

func TestCreateValidatesDraft(t *testing.T) {
	tests := []struct {
		name  string
		draft service.Draft
	}{
		{"missing username", service.Draft{Items: []*entity.Item{item("1.00", 1)}}},
		{"no items", service.Draft{Username: "alice"}},
		{"zero price", draftWith(item("0.00", 1))},
		{"negative price", draftWith(item("-1.00", 1))},
		{"zero quantity", draftWith(item("1.00", 0))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.write.Create(context.Background(), tc.draft, "token", uuid.New())
			require.Error(t, err)
			assert.Equal(t, errorbank.KindBadRequest, kindOf(err))
			assert.Zero(t, f.store.createAttempts)
		})
	}
}

func TestUpdateVersionTokenValidation(t *testing.T) {
	malformed := []string{"3", `"-1"`, `"1234"`, `""`, `"abc"`, `'3'`}

	for _, token := range malformed {
		t.Run(fmt.Sprintf("token %s", token), func(t *testing.T) {
			f := newFixture(t)
			_, err := f.write.Update(context.Background(), uuid.New(), service.Patch{}, token)
			require.Error(t, err)
			assert.Equal(t, errorbank.KindUnprocessableEntity, kindOf(err))
		})
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	f := newFixture(t)
	id, err := f.write.Create(context.Background(), draftWith(item("100.00", 2)), "token", uuid.New())
	require.NoError(t, err)

	shipped := entity.StatusShipped
	version, err := f.write.Update(context.Background(), id, service.Patch{Status: &shipped}, `"0"`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	stored, err := f.store.GetByID(context.Background(), id, true)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusShipped, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestUpdateRejectsStaleVersion(t *testing.T) {
	f := newFixture(t)
	id, err := f.write.Create(context.Background(), draftWith(item("100.00", 2)), "token", uuid.New())
	require.NoError(t, err)

	shipped := entity.StatusShipped
	_, err = f.write.Update(context.Background(), id, service.Patch{Status: &shipped}, `"0"`)
	require.NoError(t, err)

	// Replaying the same update with the now-stale version must be rejected,
	// not silently reapplied.
	_, err = f.write.Update(context.Background(), id, service.Patch{Status: &shipped}, `"0"`)
	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindPreconditionFailed, appErr.Kind())
	assert.EqualValues(t, 0, appErr.Details()["rejectedVersion"])
}

func TestUpdateAcceptsNewerToken(t *testing.T) {
	f := newFixture(t)
	id, err := f.write.Create(context.Background(), draftWith(item("1.00", 1)), "token", uuid.New())
	require.NoError(t, err)

	// A token ahead of the persisted version passes the staleness check; the
	// conditional save still writes against the row actually read.
	paid := entity.StatusPaid
	version, err := f.write.Update(context.Background(), id, service.Patch{Status: &paid}, `"7"`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestUpdateUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.write.Update(context.Background(), uuid.New(), service.Patch{}, `"0"`)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, kindOf(err))
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	id, err := f.write.Create(context.Background(), draftWith(item("1.00", 1)), "token", uuid.New())
	require.NoError(t, err)

	bogus := entity.Status("TELEPORTED")
	_, err = f.write.Update(context.Background(), id, service.Patch{Status: &bogus}, `"0"`)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, kindOf(err))
}

func TestUpdateLostRaceAtSave(t *testing.T) {
	f := newFixture(t)
	id, err := f.write.Create(context.Background(), draftWith(item("1.00", 1)), "token", uuid.New())
	require.NoError(t, err)

	snapshot, err := f.store.GetByID(context.Background(), id, true)
	require.NoError(t, err)

	// A concurrent writer lands after our read. The version check passes on
	// the stale snapshot, so the conditional save has to catch the race.
	concurrent, err := f.store.GetByID(context.Background(), id, true)
	require.NoError(t, err)
	require.NoError(t, f.store.Update(context.Background(), concurrent))

	stale := &staleReadStore{fakeStore: f.store, snapshot: snapshot}
	logger := zap.NewNop()
	cfg := testConfig()
	read := service.NewReadService(service.ReadParams{Store: stale, Config: cfg, Logger: logger})
	write := service.NewWriteService(service.WriteParams{
		Store:     stale,
		Reader:    read,
		Cart:      f.cart,
		Invoices:  f.invoices,
		Payments:  f.payments,
		Publisher: f.publisher,
		Numbers:   service.NewNumberGenerator(nil),
		Config:    cfg,
		Logger:    logger,
	})

	shipped := entity.StatusShipped
	_, err = write.Update(context.Background(), id, service.Patch{Status: &shipped}, `"0"`)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindPreconditionFailed, kindOf(err))
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	f.invoices.id = uuid.MustParse("11111111-1111-4111-8111-111111111111")
	f.payments.id = uuid.MustParse("22222222-2222-4222-8222-222222222222")
	f.rebuild(t)

	id, err := f.write.Create(context.Background(), draftWith(item("100.00", 2)), "token", uuid.New())
	require.NoError(t, err)

	stored, err := f.read.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "200", stored.TotalAmount.String())
	assert.Equal(t, 1, f.payments.calls)
	assert.Equal(t, f.invoices.id, f.payments.requests[0].InvoiceID)
	assert.Equal(t, "EUR", f.payments.requests[0].Currency)
	assert.Equal(t, "APPLE_PAY", f.payments.requests[0].Method)

	shipped := entity.StatusShipped
	version, err := f.write.Update(context.Background(), id, service.Patch{Status: &shipped}, `"0"`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = f.write.Update(context.Background(), id, service.Patch{Status: &shipped}, `"0"`)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindPreconditionFailed, kindOf(err))
}
