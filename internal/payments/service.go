package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/gateway"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// IntentDTO is the provider intent handed back to the client for checkout.
type IntentDTO struct {
	OrderID     uuid.UUID `json:"order_id"`
	IntentID    string    `json:"intent_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
}

// DetailsDTO is the payment-facing projection of an order.
type DetailsDTO struct {
	OrderID       uuid.UUID       `json:"order_id"`
	IntentID      *string         `json:"intent_id,omitempty"`
	PaymentRef    *string         `json:"payment_ref,omitempty"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	Total         decimal.Decimal `json:"total"`
}

// ConfirmInput is the signed callback payload after the provider charges.
type ConfirmInput struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	IntentID   string    `json:"intent_id" validate:"required"`
	PaymentRef string    `json:"payment_ref" validate:"required"`
	Signature  string    `json:"signature" validate:"required"`
}

// FailureInput reports a failed charge attempt.
type FailureInput struct {
	OrderID  uuid.UUID `json:"order_id" validate:"required"`
	IntentID string    `json:"intent_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Service drives the payment leg of the order lifecycle.
type Service interface {
	CreateIntent(ctx context.Context, userID, orderID uuid.UUID) (*IntentDTO, error)
	Details(ctx context.Context, userID, orderID uuid.UUID) (*DetailsDTO, error)
	Confirm(ctx context.Context, userID uuid.UUID, input ConfirmInput) (*orders.OrderDTO, error)
	RecordFailure(ctx context.Context, userID uuid.UUID, input FailureInput) (*orders.OrderDTO, error)
}

type gatewayClient interface {
	CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error)
	KeySecret() string
}

type service struct {
	repo     *orders.Repository
	dbClient *db.Client
	gateway  gatewayClient
	outbox   *outbox.Service
	logg     *logger.Logger
}

// ServiceParams bundles the dependencies required to build a payments service.
type ServiceParams struct {
	Orders  *orders.Repository
	DB      *db.Client
	Gateway gatewayClient
	Outbox  *outbox.Service
	Logger  *logger.Logger
}

// NewService constructs a payments service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		repo:     params.Orders,
		dbClient: params.DB,
		gateway:  params.Gateway,
		outbox:   params.Outbox,
		logg:     params.Logger,
	}, nil
}

// CreateIntent opens a provider intent for the order total. Retrying after a
// failed charge replaces the stored intent.
func (s *service) CreateIntent(ctx context.Context, userID, orderID uuid.UUID) (*IntentDTO, error) {
	order, err := s.loadOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not paid through the gateway")
	}
	if err := ensurePayable(order); err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.IntentRequest{
		Amount:  order.Total,
		Receipt: order.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	order.PaymentIntentID = &intent.ID
	order.PaymentStatus = enums.PaymentStatusPending
	order.FailureReason = nil
	if err := s.repo.Save(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment intent")
	}

	return &IntentDTO{
		OrderID:     order.ID,
		IntentID:    intent.ID,
		AmountMinor: intent.AmountMinor,
		Currency:    intent.Currency,
		Status:      intent.Status,
	}, nil
}

// Details returns the payment state of an order the caller owns.
func (s *service) Details(ctx context.Context, userID, orderID uuid.UUID) (*DetailsDTO, error) {
	order, err := s.loadOwnedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return &DetailsDTO{
		OrderID:       order.ID,
		IntentID:      order.PaymentIntentID,
		PaymentRef:    order.PaymentRef,
		PaymentStatus: order.PaymentStatus.String(),
		PaymentMethod: order.PaymentMethod.String(),
		FailureReason: order.FailureReason,
		Total:         order.Total,
	}, nil
}

// Confirm verifies the callback signature and, on a match, marks the payment
// complete and moves the order to processing in a single transaction.
func (s *service) Confirm(ctx context.Context, userID uuid.UUID, input ConfirmInput) (*orders.OrderDTO, error) {
	order, err := s.loadOwnedOrder(ctx, userID, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentIntentID == nil || *order.PaymentIntentID != input.IntentID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment intent for order")
	}
	if err := ensurePayable(order); err != nil {
		return nil, err
	}

	if !gateway.VerifySignature(s.gateway.KeySecret(), input.IntentID, input.PaymentRef, input.Signature) {
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String()})
			s.logg.Warn(logCtx, "payment signature mismatch")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "payment signature verification failed")
	}

	var confirmed *models.Order
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order.PaymentStatus = enums.PaymentStatusCompleted
		order.Status = enums.OrderStatusProcessing
		ref := strings.TrimSpace(input.PaymentRef)
		order.PaymentRef = &ref
		order.FailureReason = nil
		if err := txRepo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleCustomer)},
			Data: payloads.PaymentCompletedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				IntentID:   input.IntentID,
				PaymentRef: ref,
				Amount:     order.Total,
			},
			Version: 1,
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment event")
		}

		confirmed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders.FromModel(confirmed), nil
}

// RecordFailure stores the provider failure. The order stays pending so a
// fresh intent can be opened.
func (s *service) RecordFailure(ctx context.Context, userID uuid.UUID, input FailureInput) (*orders.OrderDTO, error) {
	order, err := s.loadOwnedOrder(ctx, userID, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}

	var failed *models.Order
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		order.PaymentStatus = enums.PaymentStatusFailed
		reason := strings.TrimSpace(input.Reason)
		if reason == "" {
			reason = "payment failed"
		}
		order.FailureReason = &reason
		if err := txRepo.Save(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment failure")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.RoleCustomer)},
			Data: payloads.PaymentFailedEvent{
				OrderID:  order.ID,
				UserID:   order.UserID,
				IntentID: input.IntentID,
				Reason:   reason,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue failure event")
		}

		failed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders.FromModel(failed), nil
}

func (s *service) loadOwnedOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func ensurePayable(order *models.Order) error {
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	return nil
}
