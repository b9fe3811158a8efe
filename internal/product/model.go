package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	Unit      string          `json:"unit"`
	CreatedAt time.Time       `json:"created_at"`
}
