package order

import (
	"context"

	"lkshop-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	// Checkout converts the caller's cart into an order. Requires an
	// authenticated account.
	Checkout(ctx context.Context, userID uint, input CheckoutInput) (*Order, error)
	GetOrders(ctx context.Context, userID uint) ([]*Order, error)
	GetOrderDetail(ctx context.Context, userID uint, orderID uint64, isAdmin bool) (*Order, error)
	UpdateStatus(ctx context.Context, userID uint, orderID uint64, next Status, isAdmin bool) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Checkout(
	ctx context.Context,
	userID uint,
	input CheckoutInput,
) (*Order, error) {

	if userID == 0 {
		return nil, ErrUnauthorized
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Checkout"),
		zap.Uint("user_id", userID),
	)

	o, err := s.repo.Checkout(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	log.Info("order created", zap.String("order_number", o.Number))

	return o, nil
}

func (s *service) GetOrders(ctx context.Context, userID uint) ([]*Order, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	return s.repo.GetOrders(ctx, userID)
}

// GetOrderDetail returns one order; non-admin callers only see their own.
func (s *service) GetOrderDetail(
	ctx context.Context,
	userID uint,
	orderID uint64,
	isAdmin bool,
) (*Order, error) {

	o, err := s.repo.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && o.UserID != userID {
		return nil, ErrUnauthorized
	}

	return o, nil
}

// UpdateStatus drives the fulfillment ladder. The engine itself only ever
// creates orders as pending; progression past that is the fulfillment/admin
// identity calling in. A customer may only cancel, and only their own order.
func (s *service) UpdateStatus(
	ctx context.Context,
	userID uint,
	orderID uint64,
	next Status,
	isAdmin bool,
) error {

	if !next.Valid() {
		return ErrInvalidTransition
	}

	if !isAdmin {
		if userID == 0 || next != StatusCancelled {
			return ErrUnauthorized
		}

		o, err := s.repo.GetOrderDetail(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrUnauthorized
		}
	}

	return s.repo.UpdateStatus(ctx, orderID, next)
}
