package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft      Status = "draft"
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// transitions is the forward edge of the status ladder. Cancelled is
// additionally reachable from every non-terminal status.
var transitions = map[Status]Status{
	StatusDraft:      StatusPending,
	StatusPending:    StatusConfirmed,
	StatusConfirmed:  StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func (s Status) CanTransitionTo(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return transitions[s] == next
}

type Order struct {
	ID              uint64          `json:"id"`
	UserID          uint            `json:"user_id"`
	Number          string          `json:"order_number"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DeliveryAddress string          `json:"delivery_address"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	Comments        string          `json:"comments"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []Item          `json:"items,omitempty"`
}

// Item is a frozen line: Price is the unit price captured at order creation
// and never tracks the product's current price again.
type Item struct {
	ID          uint64          `json:"id"`
	OrderID     uint64          `json:"order_id"`
	ProductID   uint64          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(i.Quantity))
}

// CheckoutInput carries the caller-supplied delivery details.
type CheckoutInput struct {
	DeliveryAddress string
	Phone           string
	Email           string
	Comments        string
}
