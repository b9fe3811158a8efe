package product

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// StockError reports how far a requested quantity overshoots the stock
// actually available, so callers can show both numbers.
type StockError struct {
	ProductID uint64
	Available int64
	Requested int64
}

func (e *StockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock for product %d: available %d, requested %d",
		e.ProductID, e.Available, e.Requested,
	)
}

// Is makes errors.Is(err, ErrInsufficientStock) match a *StockError.
func (e *StockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
