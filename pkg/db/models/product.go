package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Product represents a storefront catalog listing.
type Product struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                `gorm:"column:name;not null"`
	Description string                `gorm:"column:description;not null;default:''"`
	Category    enums.ProductCategory `gorm:"column:category;type:product_category;not null;default:'other'"`
	Price       decimal.Decimal       `gorm:"column:price;type:numeric(10,2);not null"`
	Stock       int                   `gorm:"column:stock;not null;default:0"`
	ImageURL    *string               `gorm:"column:image_url"`
	Rating      float64               `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	RatingCount int                   `gorm:"column:rating_count;not null;default:0"`
	Tags        pq.StringArray        `gorm:"column:tags;type:text[]"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
