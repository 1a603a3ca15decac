package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemResponse represents one order line as exposed via transport layers.
type ItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	InventoryID uuid.UUID       `json:"inventoryId"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          uuid.UUID       `json:"id"`
	Version     int64           `json:"version"`
	Number      string          `json:"number"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Username    string          `json:"username"`
	Items       []ItemResponse  `json:"items,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}

// CreateItemRequest is one line of a creation request.
type CreateItemRequest struct {
	InventoryID uuid.UUID       `json:"inventoryId"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// CreateOrderRequest is the creation payload. The total amount is derived
// server-side and cannot be supplied.
type CreateOrderRequest struct {
	Username  string              `json:"username"`
	AccountID uuid.UUID           `json:"accountId"`
	Items     []CreateItemRequest `json:"items"`
}

// UpdateOrderRequest is the partial update payload; the version token
// travels in the If-Match header.
type UpdateOrderRequest struct {
	Status *string `json:"status,omitempty"`
}
