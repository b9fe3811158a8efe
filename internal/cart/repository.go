package cart

import (
	"context"
	"database/sql"
	"errors"

	"lkshop-be/internal/logger"
	"lkshop-be/internal/product"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	Find(ctx context.Context, owner Owner) (*Cart, error)
	GetOrCreate(ctx context.Context, owner Owner) (*Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, productID uint64, qty int64) (*Item, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int64) (*Item, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
	Items(ctx context.Context, cartID uuid.UUID) ([]ItemView, error)
	TotalItems(ctx context.Context, cartID uuid.UUID) (int64, error)
	Merge(ctx context.Context, sessionCartID, accountCartID uuid.UUID) error
}

type repository struct {
	db       *sql.DB
	products product.Repository
}

func NewRepository(db *sql.DB, products product.Repository) Repository {
	return &repository{db: db, products: products}
}

// ownerArgs maps the tagged Owner onto the mutually exclusive nullable
// columns the carts table stores.
func ownerArgs(owner Owner) (sql.NullInt64, sql.NullString) {
	var userID sql.NullInt64
	var sessionKey sql.NullString

	if id, ok := owner.Account(); ok {
		userID = sql.NullInt64{Int64: int64(id), Valid: true}
	} else if key, ok := owner.Session(); ok {
		sessionKey = sql.NullString{String: key, Valid: true}
	}

	return userID, sessionKey
}

func scanCart(row *sql.Row) (*Cart, error) {
	var c Cart
	var userID sql.NullInt64
	var sessionKey sql.NullString

	err := row.Scan(&c.ID, &userID, &sessionKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		c.Owner = AccountOwner(uint(userID.Int64))
	} else if sessionKey.Valid {
		c.Owner = SessionOwner(sessionKey.String)
	}

	return &c, nil
}

func (r *repository) Find(ctx context.Context, owner Owner) (*Cart, error) {
	query := `
	SELECT id, user_id, session_key, created_at, updated_at
	FROM carts
	WHERE user_id = $1 OR session_key = $2
	`

	userID, sessionKey := ownerArgs(owner)

	c, err := scanCart(r.db.QueryRowContext(ctx, query, userID, sessionKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (r *repository) GetOrCreate(ctx context.Context, owner Owner) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "GetOrCreate"),
		zap.Stringer("owner", owner),
	)

	userID, sessionKey := ownerArgs(owner)

	// Insert-or-fetch: the partial unique indexes on user_id/session_key are
	// the real guard against two requests racing to create the same cart. A
	// lost race surfaces as a unique violation and the loser re-selects.
	for attempt := 0; attempt < 3; attempt++ {
		if existing, err := r.Find(ctx, owner); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}

		c, err := scanCart(r.db.QueryRowContext(ctx, `
			INSERT INTO carts (id, user_id, session_key)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, session_key, created_at, updated_at
		`, uuid.New(), userID, sessionKey))
		if err == nil {
			log.Info("cart created", zap.String("cart_id", c.ID.String()))
			return c, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			log.Debug("lost cart creation race, refetching")
			continue
		}

		log.Error("failed to create cart", zap.Error(err))
		return nil, err
	}

	return nil, ErrCartConflict
}

func (r *repository) AddItem(
	ctx context.Context,
	cartID uuid.UUID,
	productID uint64,
	qty int64,
) (*Item, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "AddItem"),
		zap.String("cart_id", cartID.String()),
		zap.Uint64("product_id", productID),
		zap.Int64("quantity", qty),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the product row first: concurrent adds for the same product
	// serialize here, so the stock check below cannot go stale.
	p, err := r.products.GetForUpdate(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if p.Stock <= 0 {
		return nil, &product.StockError{ProductID: productID, Available: p.Stock, Requested: qty}
	}

	var item Item
	var existing bool

	err = tx.QueryRowContext(ctx, `
		SELECT id, quantity, added_at
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		FOR UPDATE
	`, cartID, productID).Scan(&item.ID, &item.Quantity, &item.AddedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		existing = false
	case err != nil:
		return nil, err
	default:
		existing = true
	}

	newQty := qty
	if existing {
		newQty += item.Quantity
	}
	if newQty > p.Stock {
		log.Warn("add to cart rejected",
			zap.Int64("available", p.Stock),
			zap.Int64("requested", newQty),
		)
		return nil, &product.StockError{ProductID: productID, Available: p.Stock, Requested: newQty}
	}

	if existing {
		_, err = tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = $1 WHERE id = $2
		`, newQty, item.ID)
	} else {
		item.ID = uuid.New()
		err = tx.QueryRowContext(ctx, `
			INSERT INTO cart_items (id, cart_id, product_id, quantity)
			VALUES ($1, $2, $3, $4)
			RETURNING added_at
		`, item.ID, cartID, productID, newQty).Scan(&item.AddedAt)
	}
	if err != nil {
		log.Error("failed to write cart item", zap.Error(err))
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE carts SET updated_at = NOW() WHERE id = $1
	`, cartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	item.CartID = cartID
	item.ProductID = productID
	item.Quantity = newQty

	log.Info("cart item saved", zap.String("cart_item_id", item.ID.String()))

	return &item, nil
}

func (r *repository) UpdateItemQuantity(
	ctx context.Context,
	cartID, itemID uuid.UUID,
	qty int64,
) (*Item, error) {

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Resolve the product id without locking, then take locks in the same
	// order as AddItem and Merge: product row first, item row second. Locking
	// the item first here would deadlock against a concurrent add.
	item := Item{ID: itemID, CartID: cartID}
	err = tx.QueryRowContext(ctx, `
		SELECT product_id
		FROM cart_items
		WHERE id = $1 AND cart_id = $2
	`, itemID, cartID).Scan(&item.ProductID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	p, err := r.products.GetForUpdate(ctx, tx, item.ProductID)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		SELECT quantity, added_at
		FROM cart_items
		WHERE id = $1 AND cart_id = $2
		FOR UPDATE
	`, itemID, cartID).Scan(&item.Quantity, &item.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}

	if qty > p.Stock {
		return nil, &product.StockError{ProductID: item.ProductID, Available: p.Stock, Requested: qty}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $1 WHERE id = $2
	`, qty, itemID); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE carts SET updated_at = NOW() WHERE id = $1
	`, cartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	item.Quantity = qty
	return &item, nil
}

func (r *repository) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE id = $1 AND cart_id = $2
	`, itemID, cartID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *repository) Clear(ctx context.Context, cartID uuid.UUID) error {
	// Idempotent: clearing an already empty cart is fine.
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1
	`, cartID)
	return err
}

func (r *repository) Items(ctx context.Context, cartID uuid.UUID) ([]ItemView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			ci.id,
			ci.cart_id,
			ci.product_id,
			ci.quantity,
			ci.added_at,
			p.name,
			p.price,
			p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]ItemView, 0)
	for rows.Next() {
		var v ItemView
		if err := rows.Scan(
			&v.ID,
			&v.CartID,
			&v.ProductID,
			&v.Quantity,
			&v.AddedAt,
			&v.ProductName,
			&v.UnitPrice,
			&v.Stock,
		); err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	return items, rows.Err()
}

func (r *repository) TotalItems(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM cart_items
		WHERE cart_id = $1
	`, cartID).Scan(&total)
	return total, err
}

type mergeRow struct {
	productID uint64
	quantity  int64
	stock     int64
}

func (r *repository) Merge(ctx context.Context, sessionCartID, accountCartID uuid.UUID) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Merge"),
		zap.String("session_cart_id", sessionCartID.String()),
		zap.String("account_cart_id", accountCartID.String()),
	)

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

	// Lock the session lines and their products in product-id order so two
	// merges (or a merge racing a checkout) cannot deadlock.
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.product_id, ci.quantity, p.stock
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.product_id
		FOR UPDATE
	`, sessionCartID)
	if err != nil {
		return err
	}

	var lines []mergeRow
	for rows.Next() {
		var m mergeRow
		if err := rows.Scan(&m.productID, &m.quantity, &m.stock); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, line := range lines {
		var current int64
		haveExisting := true

		err := tx.QueryRowContext(ctx, `
			SELECT quantity
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
			FOR UPDATE
		`, accountCartID, line.productID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			haveExisting = false
		} else if err != nil {
			return err
		}

		// Fill up to the stock ceiling, drop the remainder. The account
		// cart's own quantity is never reduced by a merge.
		headroom := line.stock - current
		if headroom < 0 {
			headroom = 0
		}
		take := line.quantity
		if take > headroom {
			take = headroom
		}
		if take == 0 {
			log.Debug("merge line dropped at stock ceiling",
				zap.Uint64("product_id", line.productID),
				zap.Int64("stock", line.stock),
			)
			continue
		}

		if haveExisting {
			_, err = tx.ExecContext(ctx, `
				UPDATE cart_items SET quantity = $1
				WHERE cart_id = $2 AND product_id = $3
			`, current+take, accountCartID, line.productID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO cart_items (id, cart_id, product_id, quantity)
				VALUES ($1, $2, $3, $4)
			`, uuid.New(), accountCartID, line.productID, take)
		}
		if err != nil {
			log.Error("failed to merge cart line",
				zap.Uint64("product_id", line.productID),
				zap.Error(err),
			)
			return err
		}
	}

	// The session cart is fully absorbed: drop its lines and the cart row.
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1
	`, sessionCartID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM carts WHERE id = $1
	`, sessionCartID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE carts SET updated_at = NOW() WHERE id = $1
	`, accountCartID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	log.Info("carts merged", zap.Int("session_lines", len(lines)))

	return nil
}
