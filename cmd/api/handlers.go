package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/safisha/laundry-api/internal/auth"
	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/order"
	"github.com/safisha/laundry-api/internal/payment"
	"github.com/safisha/laundry-api/internal/pricing"
	"github.com/safisha/laundry-api/internal/store"
	"github.com/shopspring/decimal"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *pricing.ValidationError
	var tErr *order.InvalidTransitionError
	var iErr *payment.InitiationError

	switch {
	case errors.As(err, &vErr):
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": vErr.Error()})
	case errors.Is(err, pricing.ErrInvalidPlan):
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &tErr):
		respondJSON(w, r, http.StatusConflict, map[string]string{"error": tErr.Error()})
	case errors.Is(err, database.ErrPaymentInProgress):
		respondJSON(w, r, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrPaymentNotFound),
		errors.Is(err, database.ErrProfileNotFound),
		errors.Is(err, database.ErrSubscriptionNotFound):
		respondJSON(w, r, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &iErr):
		respondJSON(w, r, http.StatusBadGateway, map[string]interface{}{
			"success": false,
			"message": iErr.Message,
		})
	default:
		respondJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func handleCreateUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			Name  string `json:"name"`
			Phone string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		user, err := store.CreateUser(r.Context(), db, req.Email, req.Name, req.Phone)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusCreated, user)
	}
}

func handleGetUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid user ID"})
			return
		}

		user, err := store.GetUser(r.Context(), db, id)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, user)
	}
}

type checkoutRequest struct {
	Plan       models.Plan `json:"plan"`
	WeightKg   *float64    `json:"weight_kg,omitempty"`
	Quantity   int         `json:"quantity,omitempty"`
	UnitPrice  *float64    `json:"unit_price,omitempty"`
	PickupDate *time.Time  `json:"pickup_date,omitempty"`
	Address    string      `json:"address"`
	Notes      string      `json:"notes,omitempty"`
}

func (req *checkoutRequest) selection() order.CartSelection {
	sel := order.CartSelection{
		Plan:     req.Plan,
		Quantity: req.Quantity,
		PickupAt: req.PickupDate,
		Address:  req.Address,
		Notes:    req.Notes,
	}
	if req.WeightKg != nil {
		weight := decimal.NewFromFloat(*req.WeightKg)
		sel.WeightKg = &weight
	}
	if req.UnitPrice != nil {
		sel.UnitPrice = decimal.NewFromFloat(*req.UnitPrice)
	}
	return sel
}

func handleCheckout(orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		ord, err := orders.CreateOrder(r.Context(), auth.UserID(r.Context()), req.selection())
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusCreated, map[string]interface{}{
			"order_id":     ord.ID,
			"order_number": ord.OrderNumber,
			"total_price":  ord.TotalPrice,
		})
	}
}

func handleGetOrder(orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ord, ok := loadOwnOrder(w, r, orders)
		if !ok {
			return
		}
		respondJSON(w, r, http.StatusOK, ord)
	}
}

func handleListOrders(orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		page, err := orders.List(r.Context(), auth.UserID(r.Context()), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, page)
	}
}

func handleOrderTransition(orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ord, ok := loadOwnOrder(w, r, orders)
		if !ok {
			return
		}

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "status is required"})
			return
		}

		updated, err := orders.Transition(r.Context(), ord.ID, req.Status)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, updated)
	}
}

func handleCancelOrder(orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ord, ok := loadOwnOrder(w, r, orders)
		if !ok {
			return
		}

		updated, err := orders.Cancel(r.Context(), ord.ID)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, updated)
	}
}

func handleListOrderPayments(db *sql.DB, orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ord, ok := loadOwnOrder(w, r, orders)
		if !ok {
			return
		}

		payments, err := store.ListPaymentsForOrder(r.Context(), db, ord.ID)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, map[string]interface{}{"items": payments})
	}
}

// loadOwnOrder fetches the order in the id URL param and enforces that it
// belongs to the authenticated user.
func loadOwnOrder(w http.ResponseWriter, r *http.Request, orders *order.Manager) (*models.Order, bool) {
	id, err := idParam(r)
	if err != nil {
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return nil, false
	}

	ord, err := orders.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	if ord.UserID != auth.UserID(r.Context()) {
		respondJSON(w, r, http.StatusNotFound, map[string]string{"error": "order not found"})
		return nil, false
	}

	return ord, true
}

func handleInitiatePayment(gateway *payment.Gateway, orders *order.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OrderID     int64   `json:"order_id"`
			Amount      float64 `json:"amount"`
			PhoneNumber string  `json:"phone_number"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		ord, err := orders.Get(r.Context(), req.OrderID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		if ord.UserID != auth.UserID(r.Context()) {
			respondJSON(w, r, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}

		result, err := gateway.Initiate(r.Context(), req.OrderID, decimal.NewFromFloat(req.Amount), req.PhoneNumber)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, map[string]interface{}{
			"success":    true,
			"request_id": result.RequestID,
			"payment_id": result.PaymentID,
		})
	}
}

// handlePaymentCallback is the provider-facing webhook. Whatever happens
// internally, the provider gets a success acknowledgement; anything else
// would trigger a retry storm.
func handlePaymentCallback(gateways map[string]*payment.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gateway, ok := gateways[chi.URLParam(r, "provider")]
		if !ok {
			respondJSON(w, r, http.StatusOK, map[string]bool{"success": true})
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Printf("read callback body: %v", err)
			respondJSON(w, r, http.StatusOK, map[string]bool{"success": true})
			return
		}

		gateway.HandleCallback(r.Context(), body)

		respondJSON(w, r, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleGetProfile(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := store.GetProfile(r.Context(), db, auth.UserID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, profile)
	}
}

func handleUpsertProfile(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
			City    string `json:"city"`
			Phone   string `json:"phone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		profile, err := store.UpsertProfile(r.Context(), db, auth.UserID(r.Context()), req.Address, req.City, req.Phone)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, profile)
	}
}

func handleGetSubscription(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := store.GetActiveSubscription(r.Context(), db, auth.UserID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, sub)
	}
}
