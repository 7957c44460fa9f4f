package main

import (
	"log"
	"net/http"

	"assembliestore-be/internal/config"
	"assembliestore-be/internal/db"
	"assembliestore-be/internal/logger"
	"assembliestore-be/internal/middleware"
	"assembliestore-be/internal/order"
	"assembliestore-be/internal/payment"
	"assembliestore-be/internal/payment/webhook"
	"assembliestore-be/internal/realtime"
	"assembliestore-be/internal/stock"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	hub := realtime.NewHub(logger.L())
	notifier := realtime.NewNotifier(hub, logger.L())

	stockRepo := stock.NewRepository(database)
	stockLedger := stock.NewLedger(stockRepo, notifier)

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		APIKey:        cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		SuccessURL:    cfg.SuccessURL,
		CancelURL:     cfg.CancelURL,
	})

	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, stockLedger, gateway, notifier)

	mux := http.NewServeMux()
	order.NewHandler(orderSvc).Register(mux)
	webhook.NewHandler(orderSvc, gateway).Register(mux)
	realtime.NewHandler(hub).Register(mux)

	auth := middleware.AuthMiddleware([]byte(cfg.JWTSecret))
	handler := logger.RequestIDMiddleware(
		auth(
			middleware.RateLimitMiddleware(
				logger.LoggingMiddleware(mux))))

	log.Printf("🚀 server running at http://localhost:%s/", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, handler))
}
