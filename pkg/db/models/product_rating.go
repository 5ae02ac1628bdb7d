package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductRating stores one user's score for a product. The aggregate on
// Product is recomputed whenever a row here changes.
type ProductRating struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_product_ratings_product_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_product_ratings_product_user"`
	Score     int       `gorm:"column:score;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
