package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
)

// UpsertProfile creates or replaces the user's 1:1 delivery profile.
func UpsertProfile(ctx context.Context, db *sql.DB, userID int64, address, city, phone string) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		INSERT INTO profiles (user_id, address, city, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET address = EXCLUDED.address,
		    city = EXCLUDED.city,
		    phone = EXCLUDED.phone,
		    updated_at = NOW()
		RETURNING id, user_id, address, city, phone, created_at, updated_at`

	err := db.QueryRowContext(ctx, query, userID, address, city, phone).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Address,
		&profile.City,
		&profile.Phone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	return profile, nil
}

func GetProfile(ctx context.Context, db *sql.DB, userID int64) (*models.Profile, error) {
	profile := &models.Profile{}

	query := `
		SELECT id, user_id, address, city, phone, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	err := db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Address,
		&profile.City,
		&profile.Phone,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return profile, nil
}
