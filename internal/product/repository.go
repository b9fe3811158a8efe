package product

import (
	"context"
	"database/sql"
	"errors"

	"lkshop-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetProduct(ctx context.Context, id uint64) (*Product, error)
	GetAll(ctx context.Context) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)

	// GetForUpdate reads a product inside tx with its row locked, so the
	// caller can decide against a stock value that cannot change under it.
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uint64) (*Product, error)

	// DecrementStock is the only write path for stock. The decrement is
	// conditional on stock staying non-negative; losing that condition
	// returns a *StockError with the quantity still available.
	DecrementStock(ctx context.Context, tx *sql.Tx, id uint64, qty int64) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetProduct(ctx context.Context, id uint64) (*Product, error) {
	query := `
	SELECT id, name, sku, price, stock, unit, created_at
	FROM products
	WHERE id = $1
	`

	var p Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Unit, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *repository) GetAll(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, sku, price, stock, unit, created_at
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Unit, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, sku, price, stock, unit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Name, p.SKU, p.Price, p.Stock, p.Unit).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

func (r *repository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uint64) (*Product, error) {
	query := `
	SELECT id, name, sku, price, stock, unit, created_at
	FROM products
	WHERE id = $1
	FOR UPDATE
	`

	var p Product
	err := tx.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Unit, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *repository) DecrementStock(ctx context.Context, tx *sql.Tx, id uint64, qty int64) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "DecrementStock"),
		zap.Uint64("product_id", id),
		zap.Int64("quantity", qty),
	)

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1
	`, qty, id)
	if err != nil {
		log.Error("failed to decrement stock", zap.Error(err))
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the product vanished or the condition lost. Re-read inside
		// the same transaction to report which.
		var available int64
		err := tx.QueryRowContext(ctx,
			`SELECT stock FROM products WHERE id = $1`, id,
		).Scan(&available)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		log.Warn("stock decrement rejected",
			zap.Int64("available", available),
		)
		return &StockError{ProductID: id, Available: available, Requested: qty}
	}

	return nil
}
