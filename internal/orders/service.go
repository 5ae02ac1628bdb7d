package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

// Service exposes the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, actorID uuid.UUID, orderID uuid.UUID, to enums.OrderStatus) (*OrderDTO, error)
	Cancel(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID, reason string) (*OrderDTO, error)
}

type service struct {
	repo     *Repository
	catalog  *catalog.Repository
	carts    *cart.Repository
	dbClient *db.Client
	outbox   *outbox.Service
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies required to build an orders service.
type ServiceParams struct {
	Repo    *Repository
	Catalog *catalog.Repository
	Carts   *cart.Repository
	DB      *db.Client
	Outbox  *outbox.Service
	Logger  *logger.Logger
}

// NewService constructs an orders service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:     params.Repo,
		catalog:  params.Catalog,
		carts:    params.Carts,
		dbClient: params.DB,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

// Create places a new order. Every stock decrement is conditional and the
// whole transaction rolls back if any line cannot be satisfied.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	if input.PaymentMethod == "" {
		input.PaymentMethod = enums.PaymentMethodGateway
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.ShippingAddress == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	var created *models.Order
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.repo.WithTx(tx)
		txCatalog := s.catalog.WithTx(tx)
		txCarts := s.carts.WithTx(tx)

		lines, fromCartID, err := s.resolveLines(ctx, txCarts, userID, input)
		if err != nil {
			return err
		}

		order := &models.Order{
			ID:            uuid.New(),
			UserID:        userID,
			Status:        enums.OrderStatusPending,
			PaymentStatus: enums.PaymentStatusPending,
			PaymentMethod: input.PaymentMethod,
			Total:         decimal.Zero,
		}
		if input.ShippingAddress != nil {
			normalized := input.ShippingAddress.Normalized()
			order.ShippingAddress = &normalized
		}

		for _, line := range lines {
			product, err := txCatalog.FindByID(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": line.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
			}

			ok, err := txOrders.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
					WithDetails(map[string]any{
						"product_id": line.ProductID,
						"requested":  line.Quantity,
						"available":  product.Stock,
					})
			}

			order.Items = append(order.Items, models.OrderItem{
				ID:        uuid.New(),
				ProductID: product.ID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  line.Quantity,
			})
			order.Total = order.Total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		if err := txOrders.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if fromCartID != nil {
			if err := txCarts.ClearItems(ctx, *fromCartID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleCustomer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:   order.ID,
				UserID:    userID,
				Total:     order.Total,
				ItemCount: len(order.Items),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order event")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(created), nil
}

// Get loads an order visible to the caller.
func (s *service) Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return FromModel(order), nil
}

// ListMine returns the caller's orders newest first.
func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return &OrderList{Orders: fromModels(rows), Meta: pagination.BuildMeta(total, params)}, nil
}

// ListAll returns every order, optionally filtered by status.
func (s *service) ListAll(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	params = params.Normalize()
	rows, total, err := s.repo.ListAll(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return &OrderList{Orders: fromModels(rows), Meta: pagination.BuildMeta(total, params)}, nil
}

// UpdateStatus moves the order along the lifecycle. Setting cancelled this
// way restores stock exactly like a cancel call.
func (s *service) UpdateStatus(ctx context.Context, actorID uuid.UUID, orderID uuid.UUID, to enums.OrderStatus) (*OrderDTO, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, txOrders, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(order.Status, to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
				WithDetails(map[string]any{"from": order.Status, "to": to})
		}

		from := order.Status
		order.Status = to
		if to == enums.OrderStatusCancelled {
			if err := restoreOrderStock(ctx, txOrders, order); err != nil {
				return err
			}
		}
		if err := txOrders.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
		}

		actor := &outbox.ActorRef{UserID: actorID, Role: string(enums.RoleAdmin)}
		if to == enums.OrderStatusCancelled {
			return s.emitCancelled(ctx, tx, order, actor, "cancelled by admin")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: from,
				ToStatus:   to,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue status event")
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(updated), nil
}

// Cancel aborts a pending order and returns its stock to the catalog.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID, reason string) (*OrderDTO, error) {
	var cancelled *models.Order
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.repo.WithTx(tx)

		order, err := s.loadOrder(ctx, txOrders, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID && role != enums.RoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if !CanTransition(order.Status, enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		order.Status = enums.OrderStatusCancelled
		if err := restoreOrderStock(ctx, txOrders, order); err != nil {
			return err
		}
		if err := txOrders.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}

		actor := &outbox.ActorRef{UserID: userID, Role: string(role)}
		if err := s.emitCancelled(ctx, tx, order, actor, reason); err != nil {
			return err
		}

		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(cancelled), nil
}

func (s *service) emitCancelled(ctx context.Context, tx *gorm.DB, order *models.Order, actor *outbox.ActorRef, reason string) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor,
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			CancelledAt: time.Now().UTC(),
			Reason:      reason,
		},
		Version: 1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue cancel event")
	}
	return nil
}

func (s *service) resolveLines(ctx context.Context, txCarts *cart.Repository, userID uuid.UUID, input CreateOrderInput) ([]OrderLineInput, *uuid.UUID, error) {
	if input.FromCart {
		userCart, err := txCarts.FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		lines := make([]OrderLineInput, 0, len(userCart.Items))
		for _, item := range userCart.Items {
			lines = append(lines, OrderLineInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		return lines, &userCart.ID, nil
	}

	if len(input.Items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity < 1 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if seen[line.ProductID] {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order items").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		seen[line.ProductID] = true
	}
	return input.Items, nil, nil
}

func (s *service) loadOrder(ctx context.Context, repo *Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func restoreOrderStock(ctx context.Context, repo *Repository, order *models.Order) error {
	for _, item := range order.Items {
		if err := repo.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}
	return nil
}
