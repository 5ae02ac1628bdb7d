package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	orderssvc "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubOrdersService struct {
	order *orderssvc.OrderDTO
	list  *orderssvc.OrderList
	err   error

	gotInput   orderssvc.CreateOrderInput
	gotStatus  enums.OrderStatus
	gotFilters orderssvc.ListFilters
}

func (s *stubOrdersService) Create(ctx context.Context, userID uuid.UUID, input orderssvc.CreateOrderInput) (*orderssvc.OrderDTO, error) {
	s.gotInput = input
	return s.order, s.err
}

func (s *stubOrdersService) Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*orderssvc.OrderDTO, error) {
	return s.order, s.err
}

func (s *stubOrdersService) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orderssvc.OrderList, error) {
	return s.list, s.err
}

func (s *stubOrdersService) ListAll(ctx context.Context, filters orderssvc.ListFilters, params pagination.Params) (*orderssvc.OrderList, error) {
	s.gotFilters = filters
	return s.list, s.err
}

func (s *stubOrdersService) UpdateStatus(ctx context.Context, actorID uuid.UUID, orderID uuid.UUID, to enums.OrderStatus) (*orderssvc.OrderDTO, error) {
	s.gotStatus = to
	return s.order, s.err
}

func (s *stubOrdersService) Cancel(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID, reason string) (*orderssvc.OrderDTO, error) {
	return s.order, s.err
}

func TestOrdersCreateFromCart(t *testing.T) {
	svc := &stubOrdersService{order: &orderssvc.OrderDTO{ID: uuid.New()}}
	handler := OrdersCreate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"from_cart":true,"payment_method":"cod"}`))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if !svc.gotInput.FromCart {
		t.Fatalf("from_cart flag not passed through")
	}
}

func TestOrdersCreateDecodesFullBody(t *testing.T) {
	svc := &stubOrdersService{order: &orderssvc.OrderDTO{ID: uuid.New()}}
	handler := OrdersCreate(svc, nil)

	productID := uuid.New()
	body := `{
		"items": [{"product_id": "` + productID.String() + `", "quantity": 2}],
		"payment_method": "gateway",
		"shipping_address": {"line1": "12 Harbor Way", "city": "Oakland", "state": "CA", "postal_code": "94607", "country": "US"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.gotInput.Items) != 1 || svc.gotInput.Items[0].ProductID != productID || svc.gotInput.Items[0].Quantity != 2 {
		t.Fatalf("items not passed through: %+v", svc.gotInput.Items)
	}
	if svc.gotInput.PaymentMethod != enums.PaymentMethodGateway {
		t.Fatalf("payment method not passed through: %q", svc.gotInput.PaymentMethod)
	}
	if svc.gotInput.ShippingAddress == nil || svc.gotInput.ShippingAddress.PostalCode != "94607" {
		t.Fatalf("shipping address not passed through: %+v", svc.gotInput.ShippingAddress)
	}
}

func TestOrdersCreateInsufficientStock(t *testing.T) {
	handler := OrdersCreate(&stubOrdersService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"from_cart":true,"payment_method":"cod"}`))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestOrdersCreateRequiresUser(t *testing.T) {
	handler := OrdersCreate(&stubOrdersService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"from_cart":true,"payment_method":"cod"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestOrdersGetForbiddenForStranger(t *testing.T) {
	handler := OrdersGet(&stubOrdersService{err: pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")}, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+id.String(), nil)
	req = withPathParam(req, "orderID", id.String())
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrdersCancelWithoutBody(t *testing.T) {
	handler := OrdersCancel(&stubOrdersService{order: &orderssvc.OrderDTO{ID: uuid.New(), Status: string(enums.OrderStatusCancelled)}}, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+id.String()+"/cancel", nil)
	req = withPathParam(req, "orderID", id.String())
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestOrdersCancelNonPendingConflict(t *testing.T) {
	handler := OrdersCancel(&stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")}, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+id.String()+"/cancel", nil)
	req = withPathParam(req, "orderID", id.String())
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAdminOrdersListFiltersStatus(t *testing.T) {
	svc := &stubOrdersService{list: &orderssvc.OrderList{}}
	handler := AdminOrdersList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?status=shipped", nil)
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotFilters.Status == nil || *svc.gotFilters.Status != enums.OrderStatusShipped {
		t.Fatalf("status filter not applied: %+v", svc.gotFilters)
	}
}

func TestAdminOrdersListRejectsBadStatus(t *testing.T) {
	handler := AdminOrdersList(&stubOrdersService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?status=teleported", nil)
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminOrdersUpdateStatusInvalidTransition(t *testing.T) {
	handler := AdminOrdersUpdateStatus(&stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "invalid transition")}, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/"+id.String()+"/status", strings.NewReader(`{"status":"delivered"}`))
	req = withPathParam(req, "orderID", id.String())
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAdminOrdersUpdateStatusPassesParsedStatus(t *testing.T) {
	svc := &stubOrdersService{order: &orderssvc.OrderDTO{ID: uuid.New()}}
	handler := AdminOrdersUpdateStatus(svc, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/"+id.String()+"/status", strings.NewReader(`{"status":"processing"}`))
	req = withPathParam(req, "orderID", id.String())
	req = withUser(req, uuid.New(), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotStatus != enums.OrderStatusProcessing {
		t.Fatalf("unexpected status: %s", svc.gotStatus)
	}
}
