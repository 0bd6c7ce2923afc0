package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safisha/laundry-api/internal/auth"
	"github.com/safisha/laundry-api/internal/config"
	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/order"
	"github.com/safisha/laundry-api/internal/payment"
	"github.com/safisha/laundry-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	orders := order.NewManager(db)
	carts := &store.CartRepository{DB: db}

	// Both provider integrations stay registered for callbacks; initiation
	// goes through the configured one.
	gateways := map[string]*payment.Gateway{
		"stk":  payment.NewGateway(db, payment.NewSTKProvider(cfg.Provider), cfg.Provider.Currency),
		"push": payment.NewGateway(db, payment.NewSimplePushProvider(cfg.Provider), cfg.Provider.Currency),
	}
	gateway, ok := gateways[cfg.Provider.Kind]
	if !ok {
		log.Fatalf("Unknown provider kind %q", cfg.Provider.Kind)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/users", handleCreateUser(db))
	r.Get("/users/{id}", handleGetUser(db))

	// The provider's webhook carries no auth; correlation and idempotency
	// happen inside the reconciler.
	r.Post("/payments/callback/{provider}", handlePaymentCallback(gateways))

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", handleGetCart(carts))
		r.Post("/items", handleAddCartItem(carts))
		r.Put("/items/{id}", handleUpdateCartItem(carts))
		r.Delete("/items/{id}", handleRemoveCartItem(carts))
		r.Delete("/", handleClearCart(carts))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.JWTSecret))

		r.Post("/checkout", handleCheckout(orders))
		r.Post("/cart/checkout", handleCartCheckout(carts, orders))

		r.Get("/orders", handleListOrders(orders))
		r.Get("/orders/{id}", handleGetOrder(orders))
		r.Post("/orders/{id}/status", handleOrderTransition(orders))
		r.Post("/orders/{id}/cancel", handleCancelOrder(orders))
		r.Get("/orders/{id}/payments", handleListOrderPayments(db, orders))

		r.Post("/payments/initiate", handleInitiatePayment(gateway, orders))

		r.Get("/profile", handleGetProfile(db))
		r.Put("/profile", handleUpsertProfile(db))
		r.Get("/subscription", handleGetSubscription(db))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s (provider=%s)", cfg.Server.Port, cfg.Provider.Kind)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
