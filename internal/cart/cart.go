// Package cart holds the client-owned shopping cart as an explicit
// aggregate. Persistence is behind the Repository interface so the backing
// store (server session, browser-storage relay) is an injected dependency.
package cart

import (
	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeService ItemType = "service"
)

// Item is one cart line. Details carries item-specific selections such as
// the chosen plan or weight; it is opaque to the cart itself.
type Item struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Price    decimal.Decimal   `json:"price"`
	Quantity int               `json:"quantity"`
	Type     ItemType          `json:"type"`
	Details  map[string]string `json:"details,omitempty"`
}

type Cart struct {
	ID    string `json:"id"`
	Items []Item `json:"items"`
}

type Totals struct {
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

func New(id string) *Cart {
	return &Cart{ID: id}
}

// AddItem merges by id: an already-present line gains quantity 1 and keeps
// its original metadata (first write wins); a new line starts at quantity 1.
func (c *Cart) AddItem(item Item) {
	for i := range c.Items {
		if c.Items[i].ID == item.ID {
			c.Items[i].Quantity++
			return
		}
	}
	item.Quantity = 1
	c.Items = append(c.Items, item)
}

// UpdateQuantity sets a line's quantity verbatim. A quantity below 1 removes
// the line instead of storing a zero or negative count.
func (c *Cart) UpdateQuantity(id string, quantity int) {
	if quantity < 1 {
		c.RemoveItem(id)
		return
	}
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items[i].Quantity = quantity
			return
		}
	}
}

func (c *Cart) RemoveItem(id string) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

func (c *Cart) Clear() {
	c.Items = nil
}

// Totals is recomputed on every call; nothing is cached.
func (c *Cart) Totals() Totals {
	t := Totals{TotalPrice: decimal.Zero}
	for _, item := range c.Items {
		t.TotalItems += item.Quantity
		t.TotalPrice = t.TotalPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return t
}

// CheckoutDecision tells the caller where the checkout flow goes next.
type CheckoutDecision int

const (
	// CheckoutEmpty means there is nothing to do.
	CheckoutEmpty CheckoutDecision = iota
	// CheckoutDirect means the single line item proceeds straight to order
	// creation carrying its full detail.
	CheckoutDirect
	// CheckoutReview means multiple lines require a consolidated review
	// step before order creation.
	CheckoutReview
)

// Checkout decides the next step for the current cart contents. The direct
// item is returned only for CheckoutDirect.
func (c *Cart) Checkout() (CheckoutDecision, *Item) {
	switch len(c.Items) {
	case 0:
		return CheckoutEmpty, nil
	case 1:
		item := c.Items[0]
		return CheckoutDirect, &item
	default:
		return CheckoutReview, nil
	}
}
