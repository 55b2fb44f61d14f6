// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/voltrack/internal/middleware"
	"github.com/hitoshi/voltrack/internal/model"
	"github.com/hitoshi/voltrack/internal/security"
)

// OAuthServiceInterface はOAuthハンドラーが必要とするサービスインターフェース。
type OAuthServiceInterface interface {
	Start(ctx context.Context, discordID string) (string, error)
	Complete(ctx context.Context, code, state string) (string, error)
}

// OAuthHandler はGitHub OAuth連携のHTTPハンドラー。
type OAuthHandler struct {
	service OAuthServiceInterface
}

// NewOAuthHandler はOAuthHandlerを生成する。
func NewOAuthHandler(service OAuthServiceInterface) *OAuthHandler {
	return &OAuthHandler{service: service}
}

// Start はOAuth連携フローを開始し、GitHubの認可ページへリダイレクトする。
// GET /oauth/start?discord_id=xxx
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	discordID := r.URL.Query().Get("discord_id")
	if discordID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingParametersError())
		return
	}

	authURL, err := h.service.Start(r.Context(), discordID)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback はGitHubからのOAuthコールバックを処理する。
// GET /oauth/callback?code=xxx&state=yyy
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	login, err := h.service.Complete(r.Context(), code, state)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "GitHubアカウント %s を連携しました。Discordに戻って操作を続けてください。\n", security.SanitizeLabel(login, 39))
}

// writeFlowError はサービス層のエラーをHTTPレスポンスに変換する。
// *model.APIError以外のエラーは詳細を伏せて500で応答する。
func writeFlowError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("unexpected error in oauth flow", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteErrorResponse(w, statusForAPIError(apiErr), apiErr)
}

// statusForAPIError はエラーコードをHTTPステータスコードにマッピングする。
func statusForAPIError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingParameters,
		model.ErrCodeInvalidStateFormat,
		model.ErrCodeInvalidOrExpiredState,
		model.ErrCodeInvalidDiscordID,
		model.ErrCodeInvalidGitHubUsername,
		model.ErrCodeInvalidHours,
		model.ErrCodeInvalidLimit,
		model.ErrCodeInvalidCommitSHA:
		return http.StatusBadRequest
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeNotLinked:
		return http.StatusNotFound
	case model.ErrCodeUpstreamAuthFailure, model.ErrCodeUpstreamProfileFailure:
		return http.StatusBadGateway
	case model.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
