package order

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gcs-commerce/orderhub/internal/dto"
	"github.com/gcs-commerce/orderhub/internal/entity"
	"github.com/gcs-commerce/orderhub/internal/presentation/http/response"
	repo "github.com/gcs-commerce/orderhub/internal/repository/order"
	service "github.com/gcs-commerce/orderhub/internal/service/order"
	"github.com/gcs-commerce/orderhub/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/gcs-commerce/orderhub/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	write *service.WriteService
	read  *service.ReadService
}

// NewHandler constructs an order Handler.
func NewHandler(write *service.WriteService, read *service.ReadService) *Handler {
	return &Handler{write: write, read: read}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.POST("", h.create)
	g.GET("", h.search)
	g.GET("/:id", h.getByID)
	g.PUT("/:id", h.update)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	items := make([]*entity.Item, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, &entity.Item{
			InventoryID: item.InventoryID,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	}
	draft := service.Draft{
		Username: payload.Username,
		Items:    items,
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.String("order.username", payload.Username),
	))
	defer span.End()

	id, err := h.write.Create(ctx, draft, bearerToken(c), payload.AccountID)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).
		WithHeader("Location", "/orders/"+id.String()).
		WithData(map[string]string{"id": id.String()}).
		Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.read.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithHeader("ETag", strconv.FormatInt(order.Version, 10)).WithData(toDTO(order)).Build()
}

func (h *Handler) update(c echo.Context) error {
	b := response.New(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	var payload dto.UpdateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	var patch service.Patch
	if payload.Status != nil {
		status := entity.Status(*payload.Status)
		patch.Status = &status
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	version, err := h.write.Update(ctx, id, patch, c.Request().Header.Get("If-Match"))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithHeader("ETag", strconv.FormatInt(version, 10)).WithData(map[string]int64{"version": version}).Build()
}

func (h *Handler) search(c echo.Context) error {
	b := response.New(c)

	criteria, err := parseCriteria(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	page, err := parsePageable(c, h.read.Defaults())
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.search", trace.WithAttributes(
		attribute.Int("page.number", page.Number),
		attribute.Int("page.size", page.Size),
	))
	defer span.End()

	orders, total, err := h.read.Find(ctx, criteria, page)
	if err != nil {
		return b.WithError(err).Build()
	}

	responses := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		responses = append(responses, toDTO(&orders[i]))
	}
	return b.WithData(responses).WithMeta("totalElements", total).Build()
}

func parseCriteria(c echo.Context) (repo.SearchCriteria, error) {
	var criteria repo.SearchCriteria
	if v := c.QueryParam("number"); v != "" {
		criteria.Number = &v
	}
	if v := c.QueryParam("status"); v != "" {
		status := entity.Status(v)
		criteria.Status = &status
	}
	if v := c.QueryParam("username"); v != "" {
		criteria.Username = &v
	}
	if v := c.QueryParam("createdAfter"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return criteria, errorbank.BadRequest("invalid createdAfter", errorbank.WithCause(err))
		}
		criteria.CreatedAfter = &ts
	}
	if v := c.QueryParam("createdBefore"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return criteria, errorbank.BadRequest("invalid createdBefore", errorbank.WithCause(err))
		}
		criteria.CreatedBefore = &ts
	}
	return criteria, nil
}

// parsePageable reads page/size query params, falling back to the configured
// defaults. An explicit size of 0 keeps the no-limit sentinel.
func parsePageable(c echo.Context, defaults repo.Pageable) (repo.Pageable, error) {
	page := defaults
	if v := c.QueryParam("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errorbank.BadRequest("invalid page number")
		}
		page.Number = n
	}
	if v := c.QueryParam("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errorbank.BadRequest("invalid page size")
		}
		page.Size = n
	}
	return page, nil
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	return strings.TrimPrefix(header, "Bearer ")
}

func toDTO(order *entity.Order) dto.OrderResponse {
	items := make([]dto.ItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.ItemResponse{
			ID:          item.ID,
			InventoryID: item.InventoryID,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	}
	return dto.OrderResponse{
		ID:          order.ID,
		Version:     order.Version,
		Number:      order.Number,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Username:    order.Username,
		Items:       items,
		Created:     order.Created,
		Updated:     order.Updated,
	}
}
