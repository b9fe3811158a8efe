package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNumberConflict    = errors.New("could not allocate a unique order number")
	ErrInvalidTransition = errors.New("invalid order status transition")
)
