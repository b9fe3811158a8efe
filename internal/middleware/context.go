package middleware

import (
	"context"

	"lkshop-be/internal/cart"
)

type contextKey string

const (
	ownerKey  contextKey = "cart_owner"
	userIDKey contextKey = "user_id"
	adminKey  contextKey = "is_admin"
)

// SetOwner sets the resolved caller identity into context (called by the
// identity middleware).
func SetOwner(ctx context.Context, owner cart.Owner) context.Context {
	ctx = context.WithValue(ctx, ownerKey, owner)
	if id, ok := owner.Account(); ok {
		ctx = context.WithValue(ctx, userIDKey, id)
	}
	return ctx
}

// OwnerFrom retrieves the caller identity safely.
func OwnerFrom(ctx context.Context) (cart.Owner, bool) {
	owner, ok := ctx.Value(ownerKey).(cart.Owner)
	return owner, ok && !owner.IsZero()
}

// UserIDFrom retrieves the authenticated account ID, if any.
func UserIDFrom(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDKey).(uint)
	return id, ok
}

// SetAdmin marks the caller as the fulfillment/admin identity.
func SetAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey, true)
}

// IsAdminFrom reports whether the caller authenticated as admin.
func IsAdminFrom(ctx context.Context) bool {
	isAdmin, ok := ctx.Value(adminKey).(bool)
	return ok && isAdmin
}
