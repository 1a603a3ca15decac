package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gcs-commerce/orderhub/internal/database"
	"github.com/gcs-commerce/orderhub/internal/entity"
)

var repoTracer = otel.Tracer("github.com/gcs-commerce/orderhub/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateNumber signals a unique-constraint violation on the order number.
	ErrDuplicateNumber = errors.New("duplicate order number")
	// ErrVersionConflict signals that the conditional save matched no row.
	ErrVersionConflict = errors.New("order version conflict")
)

// Repository encapsulates read/write access for orders and their items.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order together with its items in one transaction.
// A unique violation on the order number is reported as ErrDuplicateNumber.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for _, item := range order.Items {
			item.OrderID = order.ID
		}
		_, err := tx.NewInsert().Model(&order.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			span.SetStatus(codes.Error, "duplicate number")
			return ErrDuplicateNumber
		}
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// Update performs the conditional save: the row is matched on both id and the
// version the caller read, and the version is bumped in the same statement.
// Zero affected rows means a concurrent writer won the race.
func (r *Repository) Update(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.Int64("order.version", order.Version),
	))
	defer span.End()

	now := time.Now().UTC()
	res, err := r.writer.NewUpdate().
		Model(order).
		Set("version = version + 1").
		Set("status = ?", order.Status).
		Set("updated = ?", now).
		Where("o.id = ?", order.ID).
		Where("o.version = ?", order.Version).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "version conflict")
		return ErrVersionConflict
	}

	order.Version++
	order.Updated = now
	return nil
}

// GetByID fetches an order by primary key, optionally expanding its items.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID, withItems bool) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order := new(entity.Order)
	q := r.reader.NewSelect().Model(order).Where("o.id = ?", id)
	if withItems {
		q = q.Relation("Items")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// Query runs a filtered, paginated scan and returns matching rows together
// with the total count disregarding pagination.
func (r *Repository) Query(ctx context.Context, criteria SearchCriteria, page Pageable) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Query", trace.WithAttributes(
		attribute.Int("page.number", page.Number),
		attribute.Int("page.size", page.Size),
	))
	defer span.End()

	var orders []entity.Order
	q := Compose(r.reader.NewSelect().Model(&orders), criteria, page)
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, 0, err
	}
	return orders, total, nil
}

// isUniqueViolation detects Postgres SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}
