package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubCatalogService struct {
	list     *catalog.ProductList
	product  *catalog.ProductDTO
	topRated []catalog.ProductDTO
	err      error

	gotFilter catalog.ProductFilter
	gotParams pagination.Params
	gotScore  int
}

func (s *stubCatalogService) List(ctx context.Context, filter catalog.ProductFilter, params pagination.Params) (*catalog.ProductList, error) {
	s.gotFilter = filter
	s.gotParams = params
	return s.list, s.err
}

func (s *stubCatalogService) Get(ctx context.Context, id uuid.UUID) (*catalog.ProductDTO, error) {
	return s.product, s.err
}

func (s *stubCatalogService) Create(ctx context.Context, input catalog.CreateProductInput) (*catalog.ProductDTO, error) {
	return s.product, s.err
}

func (s *stubCatalogService) Update(ctx context.Context, id uuid.UUID, input catalog.UpdateProductInput) (*catalog.ProductDTO, error) {
	return s.product, s.err
}

func (s *stubCatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.err
}

func (s *stubCatalogService) ListTopRated(ctx context.Context, limit int) ([]catalog.ProductDTO, error) {
	return s.topRated, s.err
}

func (s *stubCatalogService) Rate(ctx context.Context, userID, productID uuid.UUID, score int) (*catalog.ProductDTO, error) {
	s.gotScore = score
	return s.product, s.err
}

func withPathParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func withUser(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestProductsListParsesFilters(t *testing.T) {
	svc := &stubCatalogService{list: &catalog.ProductList{Products: []catalog.ProductDTO{}, Meta: pagination.Meta{Page: 2, Limit: 5}}}
	handler := ProductsList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=books&min_price=5&max_price=20&in_stock=true&search=go&sort=price_asc&page=2&limit=5", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotFilter.Category == nil || *svc.gotFilter.Category != enums.CategoryBooks {
		t.Fatalf("category filter not applied: %+v", svc.gotFilter)
	}
	if svc.gotFilter.MinPrice == nil || !svc.gotFilter.MinPrice.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("min price filter not applied")
	}
	if !svc.gotFilter.InStock || svc.gotFilter.Search != "go" {
		t.Fatalf("stock or search filter not applied: %+v", svc.gotFilter)
	}
	if svc.gotFilter.Sort != catalog.SortPriceAsc {
		t.Fatalf("unexpected sort: %s", svc.gotFilter.Sort)
	}
	if svc.gotParams.Page != 2 || svc.gotParams.Limit != 5 {
		t.Fatalf("unexpected pagination: %+v", svc.gotParams)
	}
}

func TestProductsListRejectsBadFilters(t *testing.T) {
	handler := ProductsList(&stubCatalogService{}, nil)

	cases := []string{
		"category=vehicles",
		"min_price=abc",
		"min_price=30&max_price=10",
		"sort=alphabetical",
		"page=0",
	}
	for _, query := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?"+query, nil)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400 got %d", query, resp.Code)
		}
	}
}

func TestProductsGetByID(t *testing.T) {
	product := &catalog.ProductDTO{ID: uuid.New(), Name: "book"}
	handler := ProductsGet(&stubCatalogService{product: product}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+product.ID.String(), nil)
	req = withPathParam(req, "productID", product.ID.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data catalog.ProductDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != product.ID {
		t.Fatalf("unexpected product id: %s", envelope.Data.ID)
	}
}

func TestProductsGetRejectsMalformedID(t *testing.T) {
	handler := ProductsGet(&stubCatalogService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	req = withPathParam(req, "productID", "not-a-uuid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductsGetNotFound(t *testing.T) {
	handler := ProductsGet(&stubCatalogService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id.String(), nil)
	req = withPathParam(req, "productID", id.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestProductsRatePassesScore(t *testing.T) {
	svc := &stubCatalogService{product: &catalog.ProductDTO{ID: uuid.New()}}
	handler := ProductsRate(svc, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+id.String()+"/ratings", strings.NewReader(`{"score":4}`))
	req = withPathParam(req, "productID", id.String())
	req = withUser(req, uuid.New(), enums.RoleCustomer)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.gotScore != 4 {
		t.Fatalf("expected score 4 got %d", svc.gotScore)
	}
}

func TestProductsRateRequiresUser(t *testing.T) {
	handler := ProductsRate(&stubCatalogService{}, nil)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/"+id.String()+"/ratings", strings.NewReader(`{"score":4}`))
	req = withPathParam(req, "productID", id.String())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAdminProductsCreateValidatesCategory(t *testing.T) {
	handler := AdminProductsCreate(&stubCatalogService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"name":"lamp","category":"vehicles","price":"10.00"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminProductsCreateSuccess(t *testing.T) {
	product := &catalog.ProductDTO{ID: uuid.New(), Name: "lamp"}
	handler := AdminProductsCreate(&stubCatalogService{product: product}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"name":"lamp","category":"home","price":"10.00","stock":3}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}
