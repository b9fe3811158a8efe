package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        uuid.UUID `json:"id"`
	Owner     Owner     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Item struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cart_id"`
	ProductID uint64    `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// ItemView is an item joined with the current product data. Prices here are
// live reads; they are only frozen when checkout turns them into order items.
type ItemView struct {
	Item
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Stock       int64           `json:"stock"`
}

func (v ItemView) LineTotal() decimal.Decimal {
	return v.UnitPrice.Mul(decimal.NewFromInt(v.Quantity))
}

type Summary struct {
	Cart       *Cart           `json:"cart"`
	Items      []ItemView      `json:"items"`
	TotalItems int64           `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}
