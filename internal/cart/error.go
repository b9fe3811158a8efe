package cart

import "errors"

var (
	// -- Identity --
	ErrNoOwner = errors.New("cart owner not provided")

	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// -- Resource State --
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("cart item not found")

	// -- Concurrency --
	ErrCartConflict = errors.New("cart creation kept losing to concurrent requests")

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)
