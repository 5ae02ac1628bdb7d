package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubCartService struct {
	cart *cartsvc.CartDTO
	err  error

	gotProductID uuid.UUID
	gotQuantity  int
}

func (s *stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.gotProductID = productID
	s.gotQuantity = quantity
	return s.cart, s.err
}

func (s *stubCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	s.gotProductID = productID
	s.gotQuantity = quantity
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	s.gotProductID = productID
	return s.cart, s.err
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return s.cart, s.err
}

func TestCartGetSuccess(t *testing.T) {
	cart := &cartsvc.CartDTO{ID: uuid.New(), Subtotal: decimal.RequireFromString("12.50"), ItemCount: 2}
	handler := CartGet(&stubCartService{cart: cart}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data cartsvc.CartDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != cart.ID {
		t.Fatalf("unexpected cart id: %s", envelope.Data.ID)
	}
}

func TestCartGetRequiresUser(t *testing.T) {
	handler := CartGet(&stubCartService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemPassesQuantity(t *testing.T) {
	svc := &stubCartService{cart: &cartsvc.CartDTO{ID: uuid.New()}}
	handler := CartAddItem(svc, nil)

	productID := uuid.New()
	body := `{"product_id":"` + productID.String() + `","quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotProductID != productID || svc.gotQuantity != 3 {
		t.Fatalf("add input not passed through: %s %d", svc.gotProductID, svc.gotQuantity)
	}
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	handler := CartAddItem(&stubCartService{}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	handler := CartAddItem(&stubCartService{err: pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock")}, nil)

	body := `{"product_id":"` + uuid.NewString() + `","quantity":40}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(body))
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestCartRemoveItemSuccess(t *testing.T) {
	svc := &stubCartService{cart: &cartsvc.CartDTO{ID: uuid.New()}}
	handler := CartRemoveItem(svc, nil)

	productID := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+productID.String(), nil)
	req = withPathParam(req, "productID", productID.String())
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotProductID != productID {
		t.Fatalf("unexpected product id: %s", svc.gotProductID)
	}
}
