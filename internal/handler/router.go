package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/koanime/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	StatusRecorder    middleware.StatusRecorder // nilの場合はステータス集計を行わない
	MetricsHandler    http.Handler              // nilの場合は/metricsを公開しない

	// カタログ
	CatalogService CatalogServiceInterface

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 視聴進捗
	ProgressService ProgressServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → StatusMetrics → SecurityHeaders → CORS → RateLimit(General)
//
// サインアップ・ログインには認証専用のレート制限を追加し、
// /api/auth/me と /api/user/* にはトークン認証を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 運用エンドポイント ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	animeHandler := NewAnimeHandler(deps.CatalogService)
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.ProgressService)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenVerifier)

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// カタログ（認証不要）
		r.Route("/anime", func(r chi.Router) {
			r.Get("/trending", animeHandler.Trending)
			r.Get("/new", animeHandler.NewReleases)
			r.Get("/search", animeHandler.Search)
			r.Get("/discover", animeHandler.Discover)
			r.Get("/genres", animeHandler.Genres)
			r.Get("/news", animeHandler.News)
			r.Get("/info/{id}", animeHandler.Info)
			r.Get("/episodes/{id}", animeHandler.Episodes)
			r.Get("/streams/{id}", animeHandler.Streams)
		})

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.Signup)
			r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.With(requireAuth).Get("/me", authHandler.Me)
		})

		// 視聴進捗
		r.Route("/user", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/continue", userHandler.Continue)
			r.Post("/progress", userHandler.SaveProgress)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, notFoundError())
	})

	return r
}
