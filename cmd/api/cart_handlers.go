package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/safisha/laundry-api/internal/auth"
	"github.com/safisha/laundry-api/internal/cart"
	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/order"
	"github.com/safisha/laundry-api/internal/pricing"
	"github.com/shopspring/decimal"
)

const cartSessionHeader = "X-Cart-Session"

func cartSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	session := r.Header.Get(cartSessionHeader)
	if session == "" {
		respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": cartSessionHeader + " header is required"})
		return "", false
	}
	return session, true
}

type cartResponse struct {
	ID     string      `json:"id"`
	Items  []cart.Item `json:"items"`
	Totals cart.Totals `json:"totals"`
}

func renderCart(w http.ResponseWriter, r *http.Request, status int, c *cart.Cart) {
	respondJSON(w, r, status, cartResponse{ID: c.ID, Items: c.Items, Totals: c.Totals()})
}

func handleGetCart(carts cart.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cartSession(w, r)
		if !ok {
			return
		}

		c, err := carts.Load(r.Context(), session)
		if err != nil {
			respondError(w, r, err)
			return
		}

		renderCart(w, r, http.StatusOK, c)
	}
}

func handleAddCartItem(carts cart.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cartSession(w, r)
		if !ok {
			return
		}

		var item cart.Item
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item.ID == "" {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid cart item"})
			return
		}

		c, err := carts.Load(r.Context(), session)
		if err != nil {
			respondError(w, r, err)
			return
		}

		c.AddItem(item)
		if err := carts.Save(r.Context(), c); err != nil {
			respondError(w, r, err)
			return
		}

		renderCart(w, r, http.StatusOK, c)
	}
}

func handleUpdateCartItem(carts cart.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cartSession(w, r)
		if !ok {
			return
		}

		var req struct {
			Quantity int `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		c, err := carts.Load(r.Context(), session)
		if err != nil {
			respondError(w, r, err)
			return
		}

		c.UpdateQuantity(chi.URLParam(r, "id"), req.Quantity)
		if err := carts.Save(r.Context(), c); err != nil {
			respondError(w, r, err)
			return
		}

		renderCart(w, r, http.StatusOK, c)
	}
}

func handleRemoveCartItem(carts cart.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cartSession(w, r)
		if !ok {
			return
		}

		c, err := carts.Load(r.Context(), session)
		if err != nil {
			respondError(w, r, err)
			return
		}

		c.RemoveItem(chi.URLParam(r, "id"))
		if err := carts.Save(r.Context(), c); err != nil {
			respondError(w, r, err)
			return
		}

		renderCart(w, r, http.StatusOK, c)
	}
}

func handleClearCart(carts cart.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cartSession(w, r)
		if !ok {
			return
		}

		if err := carts.Delete(r.Context(), session); err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, r, http.StatusOK, map[string]bool{"cleared": true})
	}
}

type orderCreator interface {
	CreateOrder(ctx context.Context, userID int64, sel order.CartSelection) (*models.Order, error)
}

// handleCartCheckout turns the session cart into an order. A single line
// goes straight to order creation with its full detail; multiple lines come
// back for a consolidated review step.
func handleCartCheckout(carts cart.Repository, orders orderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cartSession(w, r)
		if !ok {
			return
		}

		var req struct {
			PickupDate *time.Time `json:"pickup_date,omitempty"`
			Address    string     `json:"address"`
			Notes      string     `json:"notes,omitempty"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondJSON(w, r, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
		}

		c, err := carts.Load(r.Context(), session)
		if err != nil {
			respondError(w, r, err)
			return
		}

		decision, item := c.Checkout()
		switch decision {
		case cart.CheckoutEmpty:
			respondJSON(w, r, http.StatusOK, map[string]string{"status": "empty"})

		case cart.CheckoutReview:
			respondJSON(w, r, http.StatusOK, map[string]interface{}{
				"status": "review",
				"items":  c.Items,
				"totals": c.Totals(),
			})

		case cart.CheckoutDirect:
			sel, err := selectionFromItem(item)
			if err != nil {
				respondError(w, r, err)
				return
			}
			sel.Address = req.Address
			sel.Notes = req.Notes
			sel.PickupAt = req.PickupDate

			ord, err := orders.CreateOrder(r.Context(), auth.UserID(r.Context()), sel)
			if err != nil {
				respondError(w, r, err)
				return
			}

			if err := carts.Delete(r.Context(), session); err != nil {
				respondError(w, r, err)
				return
			}

			respondJSON(w, r, http.StatusCreated, map[string]interface{}{
				"status":       "created",
				"order_id":     ord.ID,
				"order_number": ord.OrderNumber,
				"total_price":  ord.TotalPrice,
			})
		}
	}
}

// selectionFromItem maps a cart line onto a server-side order selection.
// Laundry lines carry their plan and weight in the detail bag; their price
// is recomputed, never read from the line.
func selectionFromItem(item *cart.Item) (order.CartSelection, error) {
	if item.Type == cart.ItemTypeProduct {
		return order.CartSelection{
			Plan:      models.PlanProduct,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}, nil
	}

	plan := models.Plan(item.Details["plan"])
	if !plan.Valid() || plan == models.PlanProduct {
		return order.CartSelection{}, &pricing.ValidationError{Field: "plan", Message: "cart line carries no valid plan"}
	}

	sel := order.CartSelection{Plan: plan, Quantity: item.Quantity}
	if raw, ok := item.Details["weight_kg"]; ok {
		weight, err := decimal.NewFromString(raw)
		if err != nil {
			return order.CartSelection{}, &pricing.ValidationError{Field: "weight_kg", Message: "cart line carries an invalid weight"}
		}
		sel.WeightKg = &weight
	}

	return sel, nil
}
