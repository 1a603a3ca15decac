package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusUnpaid     Status = "UNPAID"
	StatusProcessing Status = "PROCESSING"
	StatusPaid       Status = "PAID"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
)

// Valid reports whether s is one of the known order states.
func (s Status) Valid() bool {
	switch s {
	case StatusUnpaid, StatusProcessing, StatusPaid, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

// Order represents a purchase order stored in the relational database.
// Version is the optimistic-concurrency token; it starts at 0 and is bumped
// by exactly one on every successful update.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID          uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Version     int64           `bun:"version,notnull,default:0"`
	Number      string          `bun:"number,notnull,unique"`
	Status      Status          `bun:"status,notnull"`
	TotalAmount decimal.Decimal `bun:"total_amount,type:numeric(8,2),notnull"`
	Username    string          `bun:"username,notnull"`
	Items       []*Item         `bun:"rel:has-many,join:id=order_id"`
	Created     time.Time       `bun:"created,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	Updated     time.Time       `bun:"updated,nullzero"`
}

// Item is a line of an order. Items are owned by their order and are only
// persisted through it.
type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID          uuid.UUID       `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	OrderID     uuid.UUID       `bun:"order_id,type:uuid"`
	InventoryID uuid.UUID       `bun:"inventory_id,type:uuid,notnull"`
	Price       decimal.Decimal `bun:"price,type:numeric(8,2),notnull"`
	Quantity    int             `bun:"quantity,notnull"`
}
