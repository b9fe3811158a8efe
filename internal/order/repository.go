package order

import (
	"context"
	"database/sql"
	"errors"

	"lkshop-be/internal/logger"
	"lkshop-be/internal/product"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

// How many times the checkout transaction will regenerate the order number
// after losing the unique-index race to a concurrent checkout.
const numberInsertRetries = 3

type Repository interface {
	// Checkout converts the user's cart into an order inside one
	// transaction: validate stock, create order + items with frozen prices,
	// decrement stock, clear the cart. Any failure rolls everything back.
	Checkout(ctx context.Context, userID uint, input CheckoutInput) (*Order, error)
	GetOrders(ctx context.Context, userID uint) ([]*Order, error)
	GetOrderDetail(ctx context.Context, orderID uint64) (*Order, error)
	UpdateStatus(ctx context.Context, orderID uint64, next Status) error
	NumberExists(ctx context.Context, number string) (bool, error)
}

type repository struct {
	db       *sql.DB
	products product.Repository
}

func NewRepository(db *sql.DB, products product.Repository) Repository {
	return &repository{db: db, products: products}
}

// checkoutLine is a cart line joined with the product data read under lock.
type checkoutLine struct {
	productID   uint64
	productName string
	quantity    int64
	price       decimal.Decimal
	stock       int64
}

func (r *repository) Checkout(
	ctx context.Context,
	userID uint,
	input CheckoutInput,
) (*Order, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Checkout"),
		zap.Uint("user_id", userID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	// 1. Resolve the cart. No cart at all counts as empty.
	var cartID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM carts WHERE user_id = $1
	`, userID).Scan(&cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}

	// 2. Read cart lines with product rows locked, in product-id order so
	// two checkouts sharing products lock in the same sequence.
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, p.price, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
		FOR UPDATE
	`, cartID)
	if err != nil {
		return nil, err
	}

	var lines []checkoutLine
	for rows.Next() {
		var l checkoutLine
		if err := rows.Scan(&l.productID, &l.productName, &l.quantity, &l.price, &l.stock); err != nil {
			rows.Close()
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// 3. Validate stock. The first violation aborts the whole attempt.
	total := decimal.Zero
	for _, l := range lines {
		if l.quantity > l.stock {
			log.Warn("checkout rejected",
				zap.Uint64("product_id", l.productID),
				zap.Int64("available", l.stock),
				zap.Int64("requested", l.quantity),
			)
			return nil, &product.StockError{
				ProductID: l.productID,
				Available: l.stock,
				Requested: l.quantity,
			}
		}
		total = total.Add(l.price.Mul(decimal.NewFromInt(l.quantity)))
	}

	// 4. Create the order. The unique index on order_number is the real
	// uniqueness guarantee; a lost race shows up as 23505 and we retry with
	// a fresh number.
	o := &Order{
		UserID:          userID,
		Status:          StatusPending,
		TotalAmount:     total,
		DeliveryAddress: input.DeliveryAddress,
		Phone:           input.Phone,
		Email:           input.Email,
		Comments:        input.Comments,
	}

	exists := func(number string) (bool, error) {
		var taken bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`, number,
		).Scan(&taken)
		return taken, err
	}

	inserted := false
	for attempt := 0; attempt < numberInsertRetries; attempt++ {
		number, err := GenerateNumber(exists)
		if err != nil {
			return nil, err
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				user_id, order_number, status, total_amount,
				delivery_address, phone, email, comments
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at, updated_at
		`,
			o.UserID, number, o.Status, o.TotalAmount,
			o.DeliveryAddress, o.Phone, o.Email, o.Comments,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err == nil {
			o.Number = number
			inserted = true
			break
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			log.Debug("order number collision, retrying",
				zap.String("order_number", number),
			)
			continue
		}
		return nil, err
	}
	if !inserted {
		return nil, ErrNumberConflict
	}

	// 5. Freeze prices into order items and deduct stock. The conditional
	// decrement re-checks stock at write time, so even outside the lock
	// discipline stock can never go negative.
	for _, l := range lines {
		var item Item
		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, o.ID, l.productID, l.quantity, l.price).Scan(&item.ID)
		if err != nil {
			return nil, err
		}

		item.OrderID = o.ID
		item.ProductID = l.productID
		item.ProductName = l.productName
		item.Quantity = l.quantity
		item.Price = l.price
		o.Items = append(o.Items, item)

		if err := r.products.DecrementStock(ctx, tx, l.productID, l.quantity); err != nil {
			return nil, err
		}
	}

	// 6. Empty the cart; the cart row itself stays as a reusable container.
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1
	`, cartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit checkout transaction", zap.Error(err))
		return nil, err
	}
	committed = true

	log.Info("checkout committed",
		zap.Uint64("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.Int("item_count", len(o.Items)),
		zap.String("total_amount", o.TotalAmount.String()),
	)

	return o, nil
}

func (r *repository) GetOrders(ctx context.Context, userID uint) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, order_number, status, total_amount,
		       delivery_address, phone, email, comments, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Number, &o.Status, &o.TotalAmount,
			&o.DeliveryAddress, &o.Phone, &o.Email, &o.Comments,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}

	return orders, rows.Err()
}

func (r *repository) GetOrderDetail(ctx context.Context, orderID uint64) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, order_number, status, total_amount,
		       delivery_address, phone, email, comments, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, orderID).Scan(
		&o.ID, &o.UserID, &o.Number, &o.Status, &o.TotalAmount,
		&o.DeliveryAddress, &o.Phone, &o.Email, &o.Comments,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.product_id, oi.quantity, oi.price, p.name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.Price, &item.ProductName); err != nil {
			return nil, err
		}
		item.OrderID = o.ID
		o.Items = append(o.Items, item)
	}

	return &o, rows.Err()
}

// UpdateStatus moves an order along the status ladder. The current status is
// read under lock so two concurrent updates cannot both pass the transition
// check.
func (r *repository) UpdateStatus(ctx context.Context, orderID uint64, next Status) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current Status
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM orders WHERE id = $1 FOR UPDATE
	`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	if !current.CanTransitionTo(next) {
		return ErrInvalidTransition
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2
	`, next, orderID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	return nil
}

func (r *repository) NumberExists(ctx context.Context, number string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE order_number = $1)`, number,
	).Scan(&taken)
	return taken, err
}
