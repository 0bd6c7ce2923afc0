package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/safisha/laundry-api/internal/cart"
)

// CartRepository is the server-session implementation of cart.Repository.
// Items are stored as a JSONB document keyed by the session id, so the
// aggregate round-trips byte-for-byte across restarts.
type CartRepository struct {
	DB *sql.DB
}

var _ cart.Repository = (*CartRepository)(nil)

func (r *CartRepository) Load(ctx context.Context, id string) (*cart.Cart, error) {
	var data []byte

	err := r.DB.QueryRowContext(ctx,
		`SELECT items FROM carts WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return cart.New(id), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	c := cart.New(id)
	if err := json.Unmarshal(data, &c.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}

	return c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	data, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}

	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO carts (id, items, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET items = EXCLUDED.items, updated_at = NOW()`,
		c.ID, data)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}

	return nil
}

func (r *CartRepository) Delete(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
