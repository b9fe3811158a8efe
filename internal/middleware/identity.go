package middleware

import (
	"net/http"

	"lkshop-be/internal/auth"
	"lkshop-be/internal/cart"

	"github.com/google/uuid"
)

const sessionKeyHeader = "X-Session-Key"

// IdentityMiddleware resolves the caller into a cart.Owner: an account owner
// when a valid access token is presented, otherwise a session owner keyed by
// X-Session-Key. Callers without a session key get one issued on the
// response so their next request sticks to the same anonymous cart.
func IdentityMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenStr := auth.ExtractAccessToken(r); tokenStr != "" {
				if claims, err := auth.ParseToken(secret, tokenStr); err == nil {
					ctx := SetOwner(r.Context(), cart.AccountOwner(claims.UserID))
					if claims.IsAdmin {
						ctx = SetAdmin(ctx)
					}
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			sessionKey := r.Header.Get(sessionKeyHeader)
			if sessionKey == "" {
				sessionKey = uuid.New().String()
				w.Header().Set(sessionKeyHeader, sessionKey)
			}

			ctx := SetOwner(r.Context(), cart.SessionOwner(sessionKey))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccount rejects requests that did not authenticate as an account.
// Checkout and order reads sit behind this.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFrom(r.Context()); !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
