// Package auth はGitHub OAuthによるアカウント連携フローを提供する。
//
// フローは2段階で構成される。Startはstateトークンを発行して認可URLを返し、
// CompleteはコールバックのstateトークンをアトミックにDiscord IDへ解決して
// 認可コードをアクセストークンに交換し、紐付けを確定する。
// stateトークンは単回使用であり、同一トークンの2回目の消費は必ず失敗する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/hitoshi/voltrack/internal/metrics"
	"github.com/hitoshi/voltrack/internal/model"
	"github.com/hitoshi/voltrack/internal/ratelimit"
	"github.com/hitoshi/voltrack/internal/repository"
	"github.com/hitoshi/voltrack/internal/security"
)

// stateTokenBytes はstateトークンのエントロピー（バイト数）。
// URL-safe base64エンコード後は43文字になる。
const stateTokenBytes = 32

// OAuthProvider はOAuth認可プロバイダーのインターフェース。
// トークン交換とプロフィール取得を分離し、失敗種別を呼び出し側で区別できるようにする。
type OAuthProvider interface {
	// AuthorizeURL はstateトークンを埋め込んだ認可URLを生成する。
	AuthorizeURL(state string) string
	// ExchangeCode は認可コードをアクセストークンに交換する。
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchUser はアクセストークンでユーザー情報を取得する。
	FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error)
}

// ServiceConfig は連携フローの設定。
type ServiceConfig struct {
	// StateTTL はstateトークンの有効期間。
	// 放置されたPENDINGフローはこの時間で期限切れになり、リプレイ窓を閉じる。
	StateTTL time.Duration
}

// Service はOAuth連携フローのオーケストレーションを提供する。
type Service struct {
	provider  OAuthProvider
	stateRepo repository.StateRepository
	linkRepo  repository.LinkRepository
	limiter   *ratelimit.Limiter
	collector metrics.FlowRecorder
	config    ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	provider OAuthProvider,
	stateRepo repository.StateRepository,
	linkRepo repository.LinkRepository,
	limiter *ratelimit.Limiter,
	collector metrics.FlowRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		provider:  provider,
		stateRepo: stateRepo,
		linkRepo:  linkRepo,
		limiter:   limiter,
		collector: collector,
		config:    config,
	}
}

// Start は連携フローを開始し、GitHubの認可URLを返す。
// レート制限超過時・Discord ID不正時は*model.APIErrorを返す。
func (s *Service) Start(ctx context.Context, discordID string) (string, error) {
	if allowed, retryAfter := s.limiter.Allow(discordID); !allowed {
		slog.Warn("oauth start rate limited",
			slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		)
		s.collector.RecordRateLimited("oauth_start")
		return "", model.NewRateLimitError(int(retryAfter.Seconds() + 0.999))
	}

	if !security.ValidateDiscordID(discordID) {
		slog.Warn("invalid discord id in oauth start",
			slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		)
		return "", model.NewInvalidDiscordIDError()
	}

	token, err := generateStateToken()
	if err != nil {
		slog.Error("failed to generate state token", slog.String("error", err.Error()))
		return "", model.NewInternalError()
	}

	now := time.Now()
	state := &model.OAuthState{
		Token:     token,
		DiscordID: discordID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.StateTTL),
	}
	if err := s.stateRepo.Create(ctx, state); err != nil {
		slog.Error("failed to store oauth state",
			slog.String("error", err.Error()),
			slog.String("state_hash", security.HashIdentifier(token)),
		)
		return "", model.NewInternalError()
	}

	s.collector.RecordStart()
	slog.Info("oauth flow started",
		slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		slog.String("state_hash", security.HashIdentifier(token)),
	)

	return s.provider.AuthorizeURL(token), nil
}

// Complete はコールバックを処理し、紐付けを確定してGitHubログイン名を返す。
// 各ステップの失敗は*model.APIErrorとして返し、詳細はログのみに記録する。
//
// stateの解決（Consume）はアトミックな読み取り+削除であり、紐付け確定前に
// 上流呼び出しが失敗した場合もstateは再利用できない。ユーザーはStartから
// やり直す必要がある。
func (s *Service) Complete(ctx context.Context, code, state string) (string, error) {
	// 1. 必須パラメータ
	if code == "" || state == "" {
		slog.Warn("missing code or state in oauth callback")
		return "", model.NewMissingParametersError()
	}

	// 2. state形式の検証（不正な形式の値でストアに触れない）
	if !security.ValidateOAuthState(state) {
		slog.Warn("invalid state format in oauth callback",
			slog.String("state_hash", security.HashIdentifier(state)),
		)
		return "", model.NewInvalidStateFormatError()
	}

	// 3. stateのアトミックな消費
	discordID, err := s.stateRepo.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, model.ErrStateNotFound) {
			// 未発行・期限切れ・消費済みを区別せず同一のエラーで応答する
			slog.Warn("unknown or expired oauth state",
				slog.String("state_hash", security.HashIdentifier(state)),
			)
			s.collector.RecordLinkFailure("invalid_state")
			return "", model.NewInvalidOrExpiredStateError()
		}
		slog.Error("failed to consume oauth state", slog.String("error", err.Error()))
		return "", model.NewInternalError()
	}

	// 4. ストアから取り出したDiscord IDの再検証
	if !security.ValidateDiscordID(discordID) {
		slog.Error("invalid discord id resolved from state",
			slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		)
		s.collector.RecordLinkFailure("corrupt_identity")
		return "", model.NewInvalidDiscordIDError()
	}

	// 5. トークン交換
	accessToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		slog.Error("github token exchange failed",
			slog.String("error", err.Error()),
			slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		)
		s.collector.RecordLinkFailure("token_exchange")
		return "", upstreamError(err, model.NewUpstreamAuthError())
	}

	// 6. プロフィール取得
	user, err := s.provider.FetchUser(ctx, accessToken)
	if err != nil {
		slog.Error("github user fetch failed",
			slog.String("error", err.Error()),
			slog.String("access_token_masked", security.MaskToken(accessToken)),
		)
		s.collector.RecordLinkFailure("profile_fetch")
		return "", upstreamError(err, model.NewUpstreamProfileError())
	}

	// 7. 取得したログイン名の検証
	if !security.ValidateGitHubUsername(user.Login) {
		slog.Error("invalid github login in user response")
		s.collector.RecordLinkFailure("invalid_login")
		return "", model.NewInvalidGitHubUsernameError()
	}

	// 8. 紐付けの確定（INSERT OR REPLACE）
	account := &model.LinkedAccount{
		DiscordID:   discordID,
		GitHubLogin: user.Login,
		ValidatedAt: time.Now(),
	}
	if err := s.linkRepo.Upsert(ctx, account); err != nil {
		slog.Error("failed to persist linked account",
			slog.String("error", err.Error()),
			slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		)
		s.collector.RecordLinkFailure("persist")
		return "", model.NewInternalError()
	}

	s.collector.RecordLinkSuccess()
	slog.Info("github account linked",
		slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		slog.String("github_login", user.Login),
	)

	return user.Login, nil
}

// upstreamError は上流呼び出しの失敗をタイムアウトとそれ以外に分類する。
func upstreamError(err error, fallback *model.APIError) *model.APIError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewUpstreamTimeoutError()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewUpstreamTimeoutError()
	}
	return fallback
}

// generateStateToken は暗号的に安全なURL-safeのstateトークンを生成する。
func generateStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
