package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/voltrack/internal/metrics"
	"github.com/hitoshi/voltrack/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// OAuth連携
	OAuthService OAuthServiceInterface

	// ヘルスチェック
	DB Pinger

	// メトリクス公開（nilの場合は/metricsを公開しない）
	Gatherer prometheus.Gatherer
}

// NewRouter は全HTTPエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	oauthHandler := NewOAuthHandler(deps.OAuthService)
	healthHandler := NewHealthHandler(deps.DB)

	// サービス情報
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"service": "voltrack",
			"status":  "running",
		})
	})

	// OAuth連携フロー
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/start", oauthHandler.Start)
		r.Get("/callback", oauthHandler.Callback)
	})

	// 運用系
	r.Get("/health", healthHandler.Check)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
