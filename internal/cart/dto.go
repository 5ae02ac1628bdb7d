package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CartItemDTO is one line of the cart enriched with the live product.
type CartItemDTO struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"price_at_add"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Stock      int             `json:"stock"`
}

// CartDTO is the transport shape of a user's cart. Line totals and the
// subtotal reflect current catalog prices, not the price at add time.
type CartDTO struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Items     []CartItemDTO   `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func buildCartDTO(cart *models.Cart, products map[uuid.UUID]*models.Product) *CartDTO {
	dto := &CartDTO{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     make([]CartItemDTO, 0, len(cart.Items)),
		Subtotal:  decimal.Zero,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		if !ok {
			// Product was removed from the catalog after being added.
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		dto.Items = append(dto.Items, CartItemDTO{
			ProductID:  item.ProductID,
			Name:       product.Name,
			Quantity:   item.Quantity,
			PriceAtAdd: item.PriceAtAdd,
			UnitPrice:  product.Price,
			LineTotal:  lineTotal,
			Stock:      product.Stock,
		})
		dto.Subtotal = dto.Subtotal.Add(lineTotal)
		dto.ItemCount += item.Quantity
	}
	return dto
}
