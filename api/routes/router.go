package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/recommendations"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Deps bundles everything the router needs. All services are required; the
// metrics pair is optional and skipped when nil.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       db.Pinger
	Redis          *redis.Client
	SessionManager sessionManager
	MLHealth       controllers.HealthChecker

	AuthService            auth.Service
	CatalogService         catalog.Service
	CartService            cart.Service
	OrdersService          orders.Service
	PaymentsService        payments.Service
	RecommendationsService recommendations.Service

	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DBPinger,
			"redis":    deps.Redis,
		}))
		r.Get("/ml", controllers.HealthML(logg, deps.MLHealth))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(
			middleware.AuthRateLimit(registerPolicy, deps.Redis, logg),
			middleware.Idempotency(deps.Redis, logg),
		).Post("/register", controllers.AuthRegister(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).
			Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(deps.SessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.SessionManager, cfg.JWT, logg))
	})

	authRequired := middleware.Auth(cfg.JWT, deps.SessionManager, logg)
	idempotency := middleware.Idempotency(deps.Redis, logg)

	// Browsing the catalog needs no account; rating a product does.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(deps.CatalogService, logg))
		r.Get("/top-rated", controllers.ProductsTopRated(deps.CatalogService, logg))
		r.Get("/{productID}", controllers.ProductsGet(deps.CatalogService, logg))
		r.Get("/{productID}/similar", controllers.RecommendationsSimilar(deps.RecommendationsService, logg))
		r.With(authRequired, idempotency).Post("/{productID}/ratings", controllers.ProductsRate(deps.CatalogService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authRequired)
		r.Use(idempotency)

		r.Get("/recommendations", controllers.RecommendationsForUser(deps.RecommendationsService, logg))
		r.Post("/recommendations/image-search", controllers.RecommendationsImageSearch(deps.RecommendationsService, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.CartService, logg))
			r.Delete("/", controllers.CartClear(deps.CartService, logg))
			r.Post("/items", controllers.CartAddItem(deps.CartService, logg))
			r.Patch("/items/{productID}", controllers.CartUpdateItem(deps.CartService, logg))
			r.Delete("/items/{productID}", controllers.CartRemoveItem(deps.CartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrdersCreate(deps.OrdersService, logg))
			r.Get("/", controllers.OrdersList(deps.OrdersService, logg))
			r.Get("/{orderID}", controllers.OrdersGet(deps.OrdersService, logg))
			r.Post("/{orderID}/cancel", controllers.OrdersCancel(deps.OrdersService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/{orderID}", controllers.PaymentsDetails(deps.PaymentsService, logg))
			r.Post("/intent", controllers.PaymentsCreateIntent(deps.PaymentsService, logg))
			r.Post("/confirm", controllers.PaymentsConfirm(deps.PaymentsService, logg))
			r.Post("/failure", controllers.PaymentsFailure(deps.PaymentsService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.AdminProductsCreate(deps.CatalogService, logg))
				r.Patch("/{productID}", controllers.AdminProductsUpdate(deps.CatalogService, logg))
				r.Delete("/{productID}", controllers.AdminProductsDelete(deps.CatalogService, logg))
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.AdminOrdersList(deps.OrdersService, logg))
				r.Patch("/{orderID}/status", controllers.AdminOrdersUpdateStatus(deps.OrdersService, logg))
			})
		})
	})

	return r
}
