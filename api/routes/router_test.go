package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/angelmondragon/storefront-backend/internal/auth"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	orderssvc "github.com/angelmondragon/storefront-backend/internal/orders"
	paymentssvc "github.com/angelmondragon/storefront-backend/internal/payments"
	recssvc "github.com/angelmondragon/storefront-backend/internal/recommendations"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubMLHealth struct{}

func (stubMLHealth) Health(context.Context) error { return nil }

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "new-jti", "new-refresh", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error { return nil }

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, input authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	return &authsvc.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (stubAuthService) Register(ctx context.Context, input authsvc.RegisterRequest) (*authsvc.LoginResponse, error) {
	return &authsvc.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type stubCatalogService struct{}

func (stubCatalogService) List(ctx context.Context, filter catalog.ProductFilter, params pagination.Params) (*catalog.ProductList, error) {
	return &catalog.ProductList{Products: []catalog.ProductDTO{}}, nil
}

func (stubCatalogService) Get(ctx context.Context, id uuid.UUID) (*catalog.ProductDTO, error) {
	return &catalog.ProductDTO{ID: id}, nil
}

func (stubCatalogService) Create(ctx context.Context, input catalog.CreateProductInput) (*catalog.ProductDTO, error) {
	return &catalog.ProductDTO{ID: uuid.New()}, nil
}

func (stubCatalogService) Update(ctx context.Context, id uuid.UUID, input catalog.UpdateProductInput) (*catalog.ProductDTO, error) {
	return &catalog.ProductDTO{ID: id}, nil
}

func (stubCatalogService) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (stubCatalogService) ListTopRated(ctx context.Context, limit int) ([]catalog.ProductDTO, error) {
	return []catalog.ProductDTO{}, nil
}

func (stubCatalogService) Rate(ctx context.Context, userID, productID uuid.UUID, score int) (*catalog.ProductDTO, error) {
	return &catalog.ProductDTO{ID: productID}, nil
}

type stubCartService struct{}

func (stubCartService) Get(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return &cartsvc.CartDTO{UserID: userID}, nil
}

func (stubCartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	return &cartsvc.CartDTO{UserID: userID}, nil
}

func (stubCartService) UpdateItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*cartsvc.CartDTO, error) {
	return &cartsvc.CartDTO{UserID: userID}, nil
}

func (stubCartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*cartsvc.CartDTO, error) {
	return &cartsvc.CartDTO{UserID: userID}, nil
}

func (stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*cartsvc.CartDTO, error) {
	return &cartsvc.CartDTO{UserID: userID}, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, userID uuid.UUID, input orderssvc.CreateOrderInput) (*orderssvc.OrderDTO, error) {
	return &orderssvc.OrderDTO{ID: uuid.New()}, nil
}

func (stubOrdersService) Get(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID) (*orderssvc.OrderDTO, error) {
	return &orderssvc.OrderDTO{ID: orderID}, nil
}

func (stubOrdersService) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orderssvc.OrderList, error) {
	return &orderssvc.OrderList{}, nil
}

func (stubOrdersService) ListAll(ctx context.Context, filters orderssvc.ListFilters, params pagination.Params) (*orderssvc.OrderList, error) {
	return &orderssvc.OrderList{}, nil
}

func (stubOrdersService) UpdateStatus(ctx context.Context, actorID uuid.UUID, orderID uuid.UUID, to enums.OrderStatus) (*orderssvc.OrderDTO, error) {
	return &orderssvc.OrderDTO{ID: orderID}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, userID uuid.UUID, role enums.UserRole, orderID uuid.UUID, reason string) (*orderssvc.OrderDTO, error) {
	return &orderssvc.OrderDTO{ID: orderID}, nil
}

type stubPaymentsService struct{}

func (stubPaymentsService) CreateIntent(ctx context.Context, userID, orderID uuid.UUID) (*paymentssvc.IntentDTO, error) {
	return &paymentssvc.IntentDTO{OrderID: orderID}, nil
}

func (stubPaymentsService) Details(ctx context.Context, userID, orderID uuid.UUID) (*paymentssvc.DetailsDTO, error) {
	return &paymentssvc.DetailsDTO{OrderID: orderID}, nil
}

func (stubPaymentsService) Confirm(ctx context.Context, userID uuid.UUID, input paymentssvc.ConfirmInput) (*orderssvc.OrderDTO, error) {
	return &orderssvc.OrderDTO{ID: input.OrderID}, nil
}

func (stubPaymentsService) RecordFailure(ctx context.Context, userID uuid.UUID, input paymentssvc.FailureInput) (*orderssvc.OrderDTO, error) {
	return &orderssvc.OrderDTO{ID: input.OrderID}, nil
}

type stubRecsService struct{}

func (stubRecsService) ForUser(ctx context.Context, userID uuid.UUID, limit int) (*recssvc.RecommendationList, error) {
	return &recssvc.RecommendationList{}, nil
}

func (stubRecsService) SimilarTo(ctx context.Context, productID uuid.UUID, limit int) (*recssvc.RecommendationList, error) {
	return &recssvc.RecommendationList{}, nil
}

func (stubRecsService) ByImage(ctx context.Context, filename string, image []byte, limit int) (*recssvc.RecommendationList, error) {
	return &recssvc.RecommendationList{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config:                 testConfig(),
		Logger:                 nil,
		DBPinger:               stubPinger{},
		Redis:                  (*redis.Client)(nil),
		SessionManager:         stubSessionManager{},
		MLHealth:               stubMLHealth{},
		AuthService:            stubAuthService{},
		CatalogService:         stubCatalogService{},
		CartService:            stubCartService{},
		OrdersService:          stubOrdersService{},
		PaymentsService:        stubPaymentsService{},
		RecommendationsService: stubRecsService{},
	})
}

func mintToken(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Storefront-Env") != "test" {
		t.Fatalf("missing env header")
	}
}

func TestHealthMLRoute(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ml", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestProductsAreWorldReadable(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/products",
		"/api/v1/products/top-rated",
		"/api/v1/products/" + uuid.NewString(),
		"/api/v1/products/" + uuid.NewString() + "/similar",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("path %s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAuthenticatedRoutesRejectAnonymous(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/cart"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/payments/" + uuid.NewString()},
		{http.MethodGet, "/api/v1/recommendations"},
		{http.MethodPost, "/api/v1/recommendations/image-search"},
		{http.MethodPost, "/api/v1/products/" + uuid.NewString() + "/ratings"},
		{http.MethodGet, "/api/v1/admin/orders"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestAuthenticatedRoutesAllowCustomer(t *testing.T) {
	router := newTestRouter(t)
	token := mintToken(t, enums.RoleCustomer)

	for _, path := range []string{
		"/api/v1/cart",
		"/api/v1/orders",
		"/api/v1/payments/" + uuid.NewString(),
		"/api/v1/recommendations",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("path %s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestAdminRoutesRejectCustomer(t *testing.T) {
	router := newTestRouter(t)
	token := mintToken(t, enums.RoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestAdminRoutesAllowAdmin(t *testing.T) {
	router := newTestRouter(t)
	token := mintToken(t, enums.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestOrderCreationRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(t)
	token := mintToken(t, enums.RoleCustomer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"from_cart":true,"payment_method":"cod"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Idempotency-Key") {
		t.Fatalf("expected idempotency error, got body %s", resp.Body.String())
	}
}

func TestLoginRouteReachesHandler(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"jo@example.com","password":"hunter2hunter2"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-SF-Token") != "access" {
		t.Fatalf("missing token header")
	}
}
