package httpapi

import (
	"net/http"

	"lkshop-be/internal/cart"
	"lkshop-be/internal/logger"
	"lkshop-be/internal/middleware"
	"lkshop-be/internal/order"

	"github.com/go-chi/chi/v5"
)

// NewRouter wires the thin JSON surface over the engine. Handlers only
// translate; every business rule lives in the services.
func NewRouter(carts cart.Service, orders order.Service, jwtSecret []byte) http.Handler {
	cartHandler := NewCartHandler(carts)
	orderHandler := NewOrderHandler(orders)

	r := chi.NewRouter()
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.IdentityMiddleware(jwtSecret))
	r.Use(middleware.RateLimitMiddleware)

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.Clear)
		r.Post("/items", cartHandler.AddItem)
		r.Patch("/items/{itemID}", cartHandler.UpdateItem)
		r.Delete("/items/{itemID}", cartHandler.RemoveItem)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAccount)

		r.Post("/login/merge", cartHandler.MergeOnLogin)
		r.Post("/checkout", orderHandler.Checkout)
		r.Get("/orders", orderHandler.List)
		r.Get("/orders/{orderID}", orderHandler.Detail)
		r.Patch("/orders/{orderID}/status", orderHandler.UpdateStatus)
	})

	return r
}
