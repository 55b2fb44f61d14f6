package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はヘルスチェックのDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// Pinger はデータベース疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Check はプロセスとデータベースの状態を返す。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy", Database: "ok"}
	statusCode := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		slog.Error("health check database ping failed", slog.String("error", err.Error()))
		resp = healthResponse{Status: "unhealthy", Database: "unreachable"}
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
