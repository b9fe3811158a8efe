package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lkshop-be/internal/cart"
	"lkshop-be/internal/config"
	"lkshop-be/internal/db"
	"lkshop-be/internal/httpapi"
	"lkshop-be/internal/logger"
	"lkshop-be/internal/order"
	"lkshop-be/internal/product"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	productRepo := product.NewRepository(database)

	cartRepo := cart.NewRepository(database, productRepo)
	cartSvc := cart.NewService(cartRepo)

	orderRepo := order.NewRepository(database, productRepo)
	orderSvc := order.NewService(orderRepo)

	router := httpapi.NewRouter(cartSvc, orderSvc, []byte(cfg.JWTSecret))

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("server running at http://localhost:%s/", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
