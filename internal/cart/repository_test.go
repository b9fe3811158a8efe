package cart

import (
	"context"
	"testing"
	"time"

	"lkshop-be/internal/product"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cartCols = []string{"id", "user_id", "session_key", "created_at", "updated_at"}

func newTestRepo(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewRepository(db, product.NewRepository(db))
	return repo, mock, func() { db.Close() }
}

func TestFind(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - account cart", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		cartID := uuid.New()
		mock.ExpectQuery(`SELECT id, user_id, session_key, created_at, updated_at\s+FROM carts\s+WHERE user_id = \$1 OR session_key = \$2`).
			WithArgs(int64(1), nil).
			WillReturnRows(sqlmock.NewRows(cartCols).
				AddRow(cartID, 1, nil, time.Now(), time.Now()))

		c, err := repo.Find(ctx, AccountOwner(1))

		require.NoError(t, err)
		assert.Equal(t, cartID, c.ID)

		id, ok := c.Owner.Account()
		assert.True(t, ok)
		assert.Equal(t, uint(1), id)
	})

	t.Run("Success - no cart yet", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectQuery(`FROM carts`).
			WithArgs(nil, "sess-1").
			WillReturnRows(sqlmock.NewRows(cartCols))

		c, err := repo.Find(ctx, SessionOwner("sess-1"))

		require.NoError(t, err)
		assert.Nil(t, c)
	})
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - existing cart", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		cartID := uuid.New()
		mock.ExpectQuery(`FROM carts`).
			WithArgs(int64(1), nil).
			WillReturnRows(sqlmock.NewRows(cartCols).
				AddRow(cartID, 1, nil, time.Now(), time.Now()))

		c, err := repo.GetOrCreate(ctx, AccountOwner(1))

		require.NoError(t, err)
		assert.Equal(t, cartID, c.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - creates cart", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		cartID := uuid.New()
		mock.ExpectQuery(`FROM carts`).
			WithArgs(nil, "sess-1").
			WillReturnRows(sqlmock.NewRows(cartCols))
		mock.ExpectQuery(`INSERT INTO carts`).
			WithArgs(sqlmock.AnyArg(), nil, "sess-1").
			WillReturnRows(sqlmock.NewRows(cartCols).
				AddRow(cartID, nil, "sess-1", time.Now(), time.Now()))

		c, err := repo.GetOrCreate(ctx, SessionOwner("sess-1"))

		require.NoError(t, err)
		assert.Equal(t, cartID, c.ID)

		key, ok := c.Owner.Session()
		assert.True(t, ok)
		assert.Equal(t, "sess-1", key)
	})

	t.Run("Error - race never settles", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		for i := 0; i < 3; i++ {
			mock.ExpectQuery(`FROM carts`).
				WithArgs(int64(3), nil).
				WillReturnRows(sqlmock.NewRows(cartCols))
			mock.ExpectQuery(`INSERT INTO carts`).
				WithArgs(sqlmock.AnyArg(), int64(3), nil).
				WillReturnError(&pq.Error{Code: "23505"})
		}

		_, err := repo.GetOrCreate(ctx, AccountOwner(3))

		assert.ErrorIs(t, err, ErrCartConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - lost creation race, refetches", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		cartID := uuid.New()
		mock.ExpectQuery(`FROM carts`).
			WithArgs(int64(2), nil).
			WillReturnRows(sqlmock.NewRows(cartCols))
		mock.ExpectQuery(`INSERT INTO carts`).
			WithArgs(sqlmock.AnyArg(), int64(2), nil).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectQuery(`FROM carts`).
			WithArgs(int64(2), nil).
			WillReturnRows(sqlmock.NewRows(cartCols).
				AddRow(cartID, 2, nil, time.Now(), time.Now()))

		c, err := repo.GetOrCreate(ctx, AccountOwner(2))

		require.NoError(t, err)
		assert.Equal(t, cartID, c.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryAddItem(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()

	productRows := func(stock int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "sku", "price", "stock", "unit", "created_at"}).
			AddRow(42, "Rice 5kg", "RICE-5", "68000.00", stock, "bag", time.Now())
	}

	t.Run("Success - new line", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM products\s+WHERE id = \$1\s+FOR UPDATE`).
			WithArgs(uint64(42)).
			WillReturnRows(productRows(10))
		mock.ExpectQuery(`SELECT id, quantity, added_at\s+FROM cart_items\s+WHERE cart_id = \$1 AND product_id = \$2\s+FOR UPDATE`).
			WithArgs(cartID, uint64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "added_at"}))
		mock.ExpectQuery(`INSERT INTO cart_items`).
			WithArgs(sqlmock.AnyArg(), cartID, uint64(42), int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"added_at"}).AddRow(time.Now()))
		mock.ExpectExec(`UPDATE carts SET updated_at = NOW\(\) WHERE id = \$1`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		item, err := repo.AddItem(ctx, cartID, 42, 3)

		require.NoError(t, err)
		assert.Equal(t, cartID, item.CartID)
		assert.Equal(t, uint64(42), item.ProductID)
		assert.Equal(t, int64(3), item.Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - repeated add increments", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		itemID := uuid.New()
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM products`).
			WithArgs(uint64(42)).
			WillReturnRows(productRows(10))
		mock.ExpectQuery(`FROM cart_items`).
			WithArgs(cartID, uint64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "added_at"}).
				AddRow(itemID, 2, time.Now()))
		mock.ExpectExec(`UPDATE cart_items SET quantity = \$1 WHERE id = \$2`).
			WithArgs(int64(5), itemID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE carts SET updated_at`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		item, err := repo.AddItem(ctx, cartID, 42, 3)

		require.NoError(t, err)
		assert.Equal(t, itemID, item.ID)
		assert.Equal(t, int64(5), item.Quantity)
	})

	t.Run("Error - insufficient stock rolls back", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM products`).
			WithArgs(uint64(42)).
			WillReturnRows(productRows(2))
		mock.ExpectQuery(`FROM cart_items`).
			WithArgs(cartID, uint64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "quantity", "added_at"}))
		mock.ExpectRollback()

		_, err := repo.AddItem(ctx, cartID, 42, 5)

		var stockErr *product.StockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, int64(2), stockErr.Available)
		assert.Equal(t, int64(5), stockErr.Requested)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error - product out of stock", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM products`).
			WithArgs(uint64(42)).
			WillReturnRows(productRows(0))
		mock.ExpectRollback()

		_, err := repo.AddItem(ctx, cartID, 42, 1)

		assert.ErrorIs(t, err, product.ErrInsufficientStock)
	})
}

func TestUpdateItemQuantity(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()
	itemID := uuid.New()

	productRows := func(stock int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "name", "sku", "price", "stock", "unit", "created_at"}).
			AddRow(42, "Rice 5kg", "RICE-5", "68000.00", stock, "bag", time.Now())
	}

	// Expectations are ordered: the product row must be locked before the
	// item row, the same sequence AddItem and Merge use.
	t.Run("Success - locks product before item", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT product_id\s+FROM cart_items\s+WHERE id = \$1 AND cart_id = \$2`).
			WithArgs(itemID, cartID).
			WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow(42))
		mock.ExpectQuery(`FROM products\s+WHERE id = \$1\s+FOR UPDATE`).
			WithArgs(uint64(42)).
			WillReturnRows(productRows(10))
		mock.ExpectQuery(`SELECT quantity, added_at\s+FROM cart_items\s+WHERE id = \$1 AND cart_id = \$2\s+FOR UPDATE`).
			WithArgs(itemID, cartID).
			WillReturnRows(sqlmock.NewRows([]string{"quantity", "added_at"}).
				AddRow(2, time.Now()))
		mock.ExpectExec(`UPDATE cart_items SET quantity = \$1 WHERE id = \$2`).
			WithArgs(int64(4), itemID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE carts SET updated_at`).
			WithArgs(cartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		item, err := repo.UpdateItemQuantity(ctx, cartID, itemID, 4)

		require.NoError(t, err)
		assert.Equal(t, int64(4), item.Quantity)
		assert.Equal(t, uint64(42), item.ProductID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error - item not found", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT product_id\s+FROM cart_items`).
			WithArgs(itemID, cartID).
			WillReturnRows(sqlmock.NewRows([]string{"product_id"}))
		mock.ExpectRollback()

		_, err := repo.UpdateItemQuantity(ctx, cartID, itemID, 4)

		assert.ErrorIs(t, err, ErrItemNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Error - over stock rolls back", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT product_id\s+FROM cart_items`).
			WithArgs(itemID, cartID).
			WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow(42))
		mock.ExpectQuery(`FROM products`).
			WithArgs(uint64(42)).
			WillReturnRows(productRows(3))
		mock.ExpectQuery(`SELECT quantity, added_at\s+FROM cart_items`).
			WithArgs(itemID, cartID).
			WillReturnRows(sqlmock.NewRows([]string{"quantity", "added_at"}).
				AddRow(2, time.Now()))
		mock.ExpectRollback()

		_, err := repo.UpdateItemQuantity(ctx, cartID, itemID, 5)

		var stockErr *product.StockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, int64(3), stockErr.Available)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	cartID := uuid.New()
	itemID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectExec(`DELETE FROM cart_items\s+WHERE id = \$1 AND cart_id = \$2`).
			WithArgs(itemID, cartID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.RemoveItem(ctx, cartID, itemID))
	})

	t.Run("Error - item not found", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectExec(`DELETE FROM cart_items`).
			WithArgs(itemID, cartID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.RemoveItem(ctx, cartID, itemID), ErrItemNotFound)
	})
}

func TestTotalItems(t *testing.T) {
	repo, mock, closeDB := newTestRepo(t)
	defer closeDB()

	cartID := uuid.New()
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(quantity\), 0\)\s+FROM cart_items\s+WHERE cart_id = \$1`).
		WithArgs(cartID).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	total, err := repo.TotalItems(context.Background(), cartID)

	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	sessionCartID := uuid.New()
	accountCartID := uuid.New()

	t.Run("Success - caps at stock ceiling", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT ci\.product_id, ci\.quantity, p\.stock\s+FROM cart_items ci\s+JOIN products p`).
			WithArgs(sessionCartID).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "stock"}).
				AddRow(1, 2, 10).
				AddRow(2, 5, 3))

		// product 1: not in the account cart, fits entirely
		mock.ExpectQuery(`SELECT quantity\s+FROM cart_items\s+WHERE cart_id = \$1 AND product_id = \$2`).
			WithArgs(accountCartID, uint64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}))
		mock.ExpectExec(`INSERT INTO cart_items`).
			WithArgs(sqlmock.AnyArg(), accountCartID, uint64(1), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// product 2: account already holds 2 of 3 in stock, only 1 fits
		mock.ExpectQuery(`SELECT quantity\s+FROM cart_items`).
			WithArgs(accountCartID, uint64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(2))
		mock.ExpectExec(`UPDATE cart_items SET quantity = \$1`).
			WithArgs(int64(3), accountCartID, uint64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
			WithArgs(sessionCartID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM carts WHERE id = \$1`).
			WithArgs(sessionCartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE carts SET updated_at`).
			WithArgs(accountCartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Merge(ctx, sessionCartID, accountCartID)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Success - saturated line dropped", func(t *testing.T) {
		repo, mock, closeDB := newTestRepo(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM cart_items ci`).
			WithArgs(sessionCartID).
			WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "stock"}).
				AddRow(1, 4, 2))

		// account cart already holds all the stock there is
		mock.ExpectQuery(`SELECT quantity\s+FROM cart_items`).
			WithArgs(accountCartID, uint64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(2))

		mock.ExpectExec(`DELETE FROM cart_items WHERE cart_id = \$1`).
			WithArgs(sessionCartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM carts WHERE id = \$1`).
			WithArgs(sessionCartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE carts SET updated_at`).
			WithArgs(accountCartID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Merge(ctx, sessionCartID, accountCartID)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
