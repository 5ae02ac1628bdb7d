package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// OrderLineInput is one requested line when placing an order directly.
type OrderLineInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// CreateOrderInput captures a new order request. When FromCart is set the
// item list is ignored and the user's cart supplies the lines.
type CreateOrderInput struct {
	Items           []OrderLineInput    `json:"items" validate:"omitempty,dive"`
	FromCart        bool                `json:"from_cart"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	ShippingAddress *types.Address      `json:"shipping_address"`
}

// OrderItemDTO is a line snapshot as it was priced at order time.
type OrderItemDTO struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Items           []OrderItemDTO  `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentIntentID *string         `json:"payment_intent_id,omitempty"`
	PaymentRef      *string         `json:"payment_ref,omitempty"`
	FailureReason   *string         `json:"failure_reason,omitempty"`
	ShippingAddress *types.Address  `json:"shipping_address,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderList is a page of orders plus pagination metadata.
type OrderList struct {
	Orders []OrderDTO      `json:"orders"`
	Meta   pagination.Meta `json:"meta"`
}

// FromModel converts an order row into the transport shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return &OrderDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		Total:           o.Total,
		Status:          o.Status.String(),
		PaymentStatus:   o.PaymentStatus.String(),
		PaymentMethod:   o.PaymentMethod.String(),
		PaymentIntentID: o.PaymentIntentID,
		PaymentRef:      o.PaymentRef,
		FailureReason:   o.FailureReason,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
