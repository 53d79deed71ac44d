package handler

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alexdevfreak/plansfilesharecombined/internal/metrics"
	"github.com/alexdevfreak/plansfilesharecombined/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	DB            *sql.DB
	AdminAPIToken string
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger

	Subscriptions SubscriptionServiceInterface
	Cache         CacheServiceInterface
	Deliveries    DeliveryServiceInterface
}

// NewRouter は運用APIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging →（/api/* のみ）BearerAuth
//
// /health と /metrics は認証の外に置く。監視系からの定期アクセスを想定する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	adminHandler := NewAdminHandler(deps.Subscriptions, deps.Cache, deps.Deliveries, deps.Logger)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB).Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- 認証が必要なルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.AdminAPIToken))

		r.Route("/api/subscriptions", func(r chi.Router) {
			r.Get("/", adminHandler.ListSubscriptions)
			r.Get("/count", adminHandler.CountSubscriptions)
			r.Get("/{userID}", adminHandler.GetSubscription)
			r.Put("/{userID}", adminHandler.GrantSubscription)
			r.Delete("/{userID}", adminHandler.RevokeSubscription)
		})

		r.Route("/api/cache", func(r chi.Router) {
			r.Get("/", adminHandler.ListCaches)
			r.Delete("/", adminHandler.ClearAllCaches)
			r.Delete("/{bucket}", adminHandler.ClearCache)
		})

		r.Get("/api/deliveries", adminHandler.ListDeliveries)
	})

	return r
}
