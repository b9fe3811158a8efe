package cart

import (
	"context"

	"lkshop-be/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service defines the business logic for carts.
type Service interface {
	ResolveCart(ctx context.Context, owner Owner) (*Cart, error)
	AddItem(ctx context.Context, owner Owner, productID uint64, qty int64) (*Item, error)
	UpdateQuantity(ctx context.Context, owner Owner, itemID uuid.UUID, qty int64) error
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
	GetCart(ctx context.Context, owner Owner) (*Summary, error)
	TotalItems(ctx context.Context, owner Owner) (int64, error)
	MergeOnLogin(ctx context.Context, sessionKey string, accountID uint) (*Cart, error)
}

type service struct {
	repo Repository
}

// NewService creates a new cart service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// ResolveCart returns the cart owned by the caller, creating one lazily.
func (s *service) ResolveCart(ctx context.Context, owner Owner) (*Cart, error) {
	if owner.IsZero() {
		return nil, ErrNoOwner
	}
	return s.repo.GetOrCreate(ctx, owner)
}

func (s *service) AddItem(
	ctx context.Context,
	owner Owner,
	productID uint64,
	qty int64,
) (*Item, error) {

	if owner.IsZero() {
		return nil, ErrNoOwner
	}
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	return s.repo.AddItem(ctx, c.ID, productID, qty)
}

// UpdateQuantity overwrites an item's quantity. A non-positive quantity
// removes the item instead.
func (s *service) UpdateQuantity(
	ctx context.Context,
	owner Owner,
	itemID uuid.UUID,
	qty int64,
) error {

	if owner.IsZero() {
		return ErrNoOwner
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return err
	}

	if qty <= 0 {
		return s.repo.RemoveItem(ctx, c.ID, itemID)
	}

	_, err = s.repo.UpdateItemQuantity(ctx, c.ID, itemID, qty)
	return err
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) error {
	if owner.IsZero() {
		return ErrNoOwner
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return err
	}

	return s.repo.RemoveItem(ctx, c.ID, itemID)
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if owner.IsZero() {
		return ErrNoOwner
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return err
	}

	return s.repo.Clear(ctx, c.ID)
}

func (s *service) GetCart(ctx context.Context, owner Owner) (*Summary, error) {
	if owner.IsZero() {
		return nil, ErrNoOwner
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.Items(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Cart:       c,
		Items:      items,
		TotalPrice: decimal.Zero,
	}
	for _, item := range items {
		summary.TotalItems += item.Quantity
		summary.TotalPrice = summary.TotalPrice.Add(item.LineTotal())
	}

	return summary, nil
}

func (s *service) TotalItems(ctx context.Context, owner Owner) (int64, error) {
	if owner.IsZero() {
		return 0, ErrNoOwner
	}

	c, err := s.repo.GetOrCreate(ctx, owner)
	if err != nil {
		return 0, err
	}

	return s.repo.TotalItems(ctx, c.ID)
}

// MergeOnLogin folds the anonymous session cart into the account cart. The
// identity collaborator calls this synchronously right after authentication
// succeeds, so merge failures surface to the login flow instead of being a
// fire-and-forget side effect.
func (s *service) MergeOnLogin(
	ctx context.Context,
	sessionKey string,
	accountID uint,
) (*Cart, error) {

	if accountID == 0 {
		return nil, ErrNoOwner
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "MergeOnLogin"),
		zap.Uint("account_id", accountID),
	)

	accountCart, err := s.repo.GetOrCreate(ctx, AccountOwner(accountID))
	if err != nil {
		return nil, err
	}

	if sessionKey == "" {
		return accountCart, nil
	}

	sessionCart, err := s.repo.Find(ctx, SessionOwner(sessionKey))
	if err != nil {
		return nil, err
	}
	if sessionCart == nil {
		return accountCart, nil
	}

	count, err := s.repo.TotalItems(ctx, sessionCart.ID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		// Nothing to absorb; leave the empty session cart to be recycled.
		return accountCart, nil
	}

	if err := s.repo.Merge(ctx, sessionCart.ID, accountCart.ID); err != nil {
		log.Error("cart merge failed", zap.Error(err))
		return nil, err
	}

	log.Info("session cart merged",
		zap.String("session_cart_id", sessionCart.ID.String()),
		zap.Int64("session_items", count),
	)

	return accountCart, nil
}
