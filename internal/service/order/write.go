package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gcs-commerce/orderhub/internal/client"
	"github.com/gcs-commerce/orderhub/internal/config"
	"github.com/gcs-commerce/orderhub/internal/entity"
	"github.com/gcs-commerce/orderhub/internal/messaging"
	"github.com/gcs-commerce/orderhub/internal/observability"
	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
	"github.com/gcs-commerce/orderhub/pkg/errorbank"
)

var writeTracer = otel.Tracer("github.com/gcs-commerce/orderhub/service/order/write")

// maxNumberRetries bounds how often a fresh order number is tried after a
// uniqueness collision before the create fails.
const maxNumberRetries = 5

// versionPattern is the required shape of the caller-supplied version token:
// a quoted non-negative integer of one to three digits, e.g. `"3"`.
var versionPattern = regexp.MustCompile(`^"\d{1,3}"$`)

// Draft is the caller-supplied order prior to enrichment. The total amount
// is always derived from the items, never accepted from the caller.
type Draft struct {
	Username string
	Items    []*entity.Item
}

// Patch carries the mutable fields of an update request.
type Patch struct {
	Status *entity.Status
}

// OrderCreatedEvent is dispatched best-effort after an order is persisted.
type OrderCreatedEvent struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	Status      entity.Status   `json:"status"`
	Username    string          `json:"username"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// WriteService coordinates the order write path: creation with its external
// collaborators and collision retry loop, and optimistically locked updates.
type WriteService struct {
	store      Store
	reader     *ReadService
	cart       client.CartService
	invoices   client.InvoiceService
	payments   client.PaymentService
	publisher  messaging.Client
	numbers    NumberGenerator
	background *dispatcher
	logger     *zap.Logger
	metrics    *observability.OrderMetrics
	payment    config.Payment
	events     eventsConfig
}

type eventsConfig struct {
	enabled bool
	source  string
}

// WriteParams defines dependencies for constructing WriteService.
type WriteParams struct {
	fx.In

	Store     Store
	Reader    *ReadService
	Cart      client.CartService
	Invoices  client.InvoiceService
	Payments  client.PaymentService
	Publisher messaging.Client
	Numbers   NumberGenerator
	Config    config.Config
	Logger    *zap.Logger
	Metrics   *observability.OrderMetrics `optional:"true"`
	Lifecycle fx.Lifecycle                `optional:"true"`
}

// NewWriteService wires a new WriteService instance.
func NewWriteService(p WriteParams) *WriteService {
	s := &WriteService{
		store:      p.Store,
		reader:     p.Reader,
		cart:       p.Cart,
		invoices:   p.Invoices,
		payments:   p.Payments,
		publisher:  p.Publisher,
		numbers:    p.Numbers,
		background: newDispatcher(p.Logger),
		logger:     p.Logger,
		metrics:    p.Metrics,
		payment:    p.Config.Payment,
		events: eventsConfig{
			enabled: p.Config.Messaging.Enabled,
			source:  p.Config.Observability.ServiceName,
		},
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error {
				s.background.Close()
				return nil
			},
		})
	}
	return s
}

// Create runs the order creation saga and returns the id of the new order.
//
// The cart reservation release is fire-and-forget: its result is only
// logged and callers must not assume the items are released by the time
// Create returns. Invoice and payment calls are synchronous and abort the
// operation on failure. Only an order-number uniqueness collision is
// retried, up to maxNumberRetries, and a fresh payment is issued on every
// attempt.
func (s *WriteService) Create(ctx context.Context, draft Draft, token string, accountID uuid.UUID) (uuid.UUID, error) {
	ctx, span := writeTracer.Start(ctx, "OrderWriteService.Create", trace.WithAttributes(
		attribute.String("order.username", draft.Username),
		attribute.Int("order.items", len(draft.Items)),
	))
	defer span.End()

	if err := validateDraft(draft); err != nil {
		span.SetStatus(codes.Error, "invalid draft")
		return uuid.Nil, err
	}

	total := totalOf(draft.Items)
	s.logger.Debug("create: computed total",
		zap.String("username", draft.Username),
		zap.String("total", total.String()),
	)

	s.releaseCartItems(ctx, draft, token)

	invoiceID, err := s.invoices.CreateInvoice(ctx, client.CreateInvoiceRequest{
		Amount:   total,
		DueDate:  time.Now().UTC().Format("2006-01-02T15:04:05"),
		Username: draft.Username,
	}, token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoice failed")
		return uuid.Nil, errorbank.Internal("invoice creation failed", errorbank.WithCause(err))
	}

	for attempt := 1; attempt <= maxNumberRetries; attempt++ {
		number := s.numbers.Generate(time.Now(), draft.Username)
		s.logger.Info("create: generated order number",
			zap.Int("attempt", attempt),
			zap.String("number", number),
			zap.String("username", draft.Username),
		)

		paymentID, err := s.payments.Pay(ctx, client.PaymentRequest{
			Amount:      total,
			Currency:    s.payment.Currency,
			Method:      s.payment.Method,
			InvoiceID:   invoiceID,
			OrderNumber: number,
			AccountID:   accountID,
		}, token)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "payment failed")
			return uuid.Nil, errorbank.Internal("payment failed", errorbank.WithCause(err))
		}
		s.logger.Debug("create: payment accepted", zap.String("payment_id", paymentID.String()))

		now := time.Now().UTC()
		order := &entity.Order{
			Number:      number,
			Status:      entity.StatusProcessing,
			TotalAmount: total,
			Username:    draft.Username,
			Items:       draft.Items,
			Created:     now,
			Updated:     now,
		}

		err = s.store.Create(ctx, order)
		if err == nil {
			if cacheErr := s.reader.storeInCache(ctx, order); cacheErr != nil {
				s.logger.Warn("orders cache write failed", zap.Error(cacheErr))
			}
			s.publishCreated(ctx, order)
			s.metrics.OrderCreated(ctx, attempt)
			span.SetAttributes(attribute.String("order.id", order.ID.String()))
			return order.ID, nil
		}
		if errors.Is(err, repo.ErrDuplicateNumber) {
			s.metrics.NumberCollision(ctx)
			s.logger.Warn("create: duplicate order number, retrying",
				zap.String("number", number),
				zap.String("username", draft.Username),
			)
			continue
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return uuid.Nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	span.SetStatus(codes.Error, "collision budget exhausted")
	return uuid.Nil, errorbank.Internal("order number collision budget exhausted",
		errorbank.WithDetail("attempts", maxNumberRetries),
	)
}

// Update merges the patch onto the persisted order under optimistic
// concurrency control and returns the new version. No external service is
// called on update.
func (s *WriteService) Update(ctx context.Context, id uuid.UUID, patch Patch, versionToken string) (int64, error) {
	ctx, span := writeTracer.Start(ctx, "OrderWriteService.Update", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.version_token", versionToken),
	))
	defer span.End()

	if !versionPattern.MatchString(versionToken) {
		span.SetStatus(codes.Error, "malformed version")
		return 0, errorbank.Unprocessable("order version is malformed",
			errorbank.WithDetail("version", versionToken),
		)
	}
	version, err := strconv.ParseInt(versionToken[1:len(versionToken)-1], 10, 64)
	if err != nil {
		return 0, errorbank.Unprocessable("order version is malformed",
			errorbank.WithDetail("version", versionToken),
		)
	}

	if id == uuid.Nil {
		return 0, errorbank.NotFound("order id is required")
	}

	current, err := s.reader.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if version < current.Version {
		span.SetStatus(codes.Error, "version outdated")
		return 0, errorbank.PreconditionFailed(fmt.Sprintf("order version %d is outdated", version),
			errorbank.WithDetail("rejectedVersion", version),
			errorbank.WithDetail("currentVersion", current.Version),
		)
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return 0, errorbank.BadRequest(fmt.Sprintf("unknown order status %q", *patch.Status))
		}
		current.Status = *patch.Status
	}

	// The conditional save compares against the version of the row we read,
	// so concurrent writers past the check above still race to one winner.
	if err := s.store.Update(ctx, current); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			span.SetStatus(codes.Error, "version conflict")
			s.metrics.VersionConflict(ctx)
			s.reader.evictFromCache(ctx, id)
			return 0, errorbank.PreconditionFailed("order was modified concurrently",
				errorbank.WithDetail("rejectedVersion", version),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return 0, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	s.reader.evictFromCache(ctx, id)
	return current.Version, nil
}

// releaseCartItems launches the reservation release without gating the
// create flow on its outcome.
func (s *WriteService) releaseCartItems(ctx context.Context, draft Draft, token string) {
	refs := make([]uuid.UUID, 0, len(draft.Items))
	for _, item := range draft.Items {
		refs = append(refs, item.InventoryID)
	}
	s.background.Go(ctx, "cart-release", func(ctx context.Context) error {
		removed, err := s.cart.Release(ctx, refs, token)
		if err != nil {
			return err
		}
		s.logger.Debug("create: cart release finished", zap.Bool("removed", removed))
		return nil
	})
}

// publishCreated dispatches the created event best-effort, carrying the
// originating trace context in the message headers.
func (s *WriteService) publishCreated(ctx context.Context, order *entity.Order) {
	if !s.events.enabled || s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		ID:          order.ID,
		Number:      order.Number,
		Status:      order.Status,
		Username:    order.Username,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.Created,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order created", zap.Error(err))
		return
	}
	headers := messaging.TraceHeaders(ctx)
	if headers == nil {
		headers = map[string]string{}
	}
	headers["source"] = s.events.source
	key := []byte("order-" + order.ID.String())

	s.background.Go(ctx, "order-created-event", func(ctx context.Context) error {
		ctx, span := writeTracer.Start(ctx, "OrderWriteService.publishCreated")
		defer span.End()
		return s.publisher.Publish(ctx, key, payload, headers)
	})
}

func validateDraft(draft Draft) error {
	if draft.Username == "" {
		return errorbank.BadRequest("order username is required")
	}
	if len(draft.Items) == 0 {
		return errorbank.BadRequest("order must contain at least one item")
	}
	for _, item := range draft.Items {
		if item == nil {
			return errorbank.BadRequest("order item is required")
		}
		if !item.Price.IsPositive() {
			return errorbank.BadRequest("item price must be positive")
		}
		if item.Quantity <= 0 {
			return errorbank.BadRequest("item quantity must be positive")
		}
	}
	return nil
}

// totalOf computes the order amount with exact decimal arithmetic.
func totalOf(items []*entity.Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
