package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/pumpbook/internal/auth"
	"github.com/hitoshi/pumpbook/internal/metrics"
	"github.com/hitoshi/pumpbook/internal/middleware"
	"github.com/hitoshi/pumpbook/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	Metrics     metrics.Recorder
	CORSOrigins []string
	RateLimiter *middleware.RateLimiter
	// TrustProxy がtrueの場合、X-Forwarded-For等からクライアントIPを求める
	TrustProxy bool

	// 認証
	AuthService AuthServiceInterface
	Resolver    IdentityResolver
	Cookie      auth.CookieConfig

	// 業務記録
	RecordService RecordServiceInterface

	// 疎通確認
	StatusChecks  repository.StatusCheckRepository
	HealthChecker repository.HealthChecker

	// MetricsHandler がnilの場合は/metricsを公開しない
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → RequestID → Logging → Metrics → CORS
//
// 業務記録のルートには Auth → RateLimit(General) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSOrigins))

	authHandler := NewAuthHandler(deps.AuthService, deps.Resolver, deps.Cookie)
	recordHandler := NewRecordHandler(deps.RecordService)
	statusHandler := NewStatusHandler(deps.StatusChecks, deps.HealthChecker)

	loginLimit, generalLimit := passThrough, passThrough
	if deps.RateLimiter != nil {
		loginLimit = deps.RateLimiter.LoginMiddleware()
		generalLimit = deps.RateLimiter.GeneralMiddleware()
	}

	r.Get("/health", statusHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Get("/", statusHandler.Root)
		r.Get("/status", statusHandler.ListStatusChecks)
		r.Post("/status", statusHandler.CreateStatusCheck)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", authHandler.Me)
			r.With(loginLimit).Post("/session", authHandler.CreateSession)
			r.Post("/logout", authHandler.Logout)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Resolver))
			r.Use(generalLimit)

			r.Get("/fuel-sales", recordHandler.ListFuelSales)
			r.Post("/fuel-sales", recordHandler.CreateFuelSale)
			r.Get("/credit-sales", recordHandler.ListCreditSales)
			r.Post("/credit-sales", recordHandler.CreateCreditSale)
			r.Get("/income-expenses", recordHandler.ListIncomeExpenses)
			r.Post("/income-expenses", recordHandler.CreateIncomeExpense)
			r.Get("/fuel-rates", recordHandler.ListFuelRates)
			r.Post("/fuel-rates", recordHandler.CreateFuelRate)
			r.Post("/sync/backup", recordHandler.Backup)
		})
	})

	return r
}

func passThrough(next http.Handler) http.Handler {
	return next
}
