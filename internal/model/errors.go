package model

import (
	"errors"
	"fmt"
)

// ErrStateNotFound はstateトークンが存在しない・期限切れ・消費済みのいずれかを示す。
// どのケースかは呼び出し元に区別させない（存在情報の漏洩防止）。
var ErrStateNotFound = errors.New("oauth state not found")

// ErrNotLinked はGitHubアカウントが未連携であることを示す。
var ErrNotLinked = errors.New("github account not linked")

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, upstream, system
	Action   string // ユーザー向け対処方法

	// RetryAfterSeconds はRATE_LIMIT_EXCEEDEDの場合のみ設定される。
	RetryAfterSeconds int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingParameters      = "MISSING_PARAMETERS"
	ErrCodeInvalidStateFormat     = "INVALID_STATE_FORMAT"
	ErrCodeInvalidOrExpiredState  = "INVALID_OR_EXPIRED_STATE"
	ErrCodeInvalidDiscordID       = "INVALID_DISCORD_ID"
	ErrCodeInvalidGitHubUsername  = "INVALID_GITHUB_USERNAME"
	ErrCodeInvalidHours           = "INVALID_HOURS"
	ErrCodeInvalidLimit           = "INVALID_LIMIT"
	ErrCodeInvalidCommitSHA       = "INVALID_COMMIT_SHA"
	ErrCodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	ErrCodeNotLinked              = "NOT_LINKED"
	ErrCodeUpstreamAuthFailure    = "UPSTREAM_AUTH_FAILURE"
	ErrCodeUpstreamProfileFailure = "UPSTREAM_PROFILE_FAILURE"
	ErrCodeUpstreamTimeout        = "UPSTREAM_TIMEOUT"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// NewMissingParametersError は必須パラメータ欠落エラーを生成する。
func NewMissingParametersError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameters,
		Message:  "必須パラメータが不足しています。",
		Category: "validation",
		Action:   "連携リンクを最初からやり直してください。",
	}
}

// NewInvalidStateFormatError はstateトークンの形式不正エラーを生成する。
func NewInvalidStateFormatError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStateFormat,
		Message:  "stateパラメータの形式が不正です。",
		Category: "validation",
		Action:   "連携リンクを最初からやり直してください。",
	}
}

// NewInvalidOrExpiredStateError は無効または期限切れのstateエラーを生成する。
// 未発行・期限切れ・消費済みのいずれであるかは意図的に区別しない。
func NewInvalidOrExpiredStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrExpiredState,
		Message:  "連携リンクが無効または期限切れです。",
		Category: "auth",
		Action:   "Discordで /link コマンドを再実行して新しいリンクを取得してください。",
	}
}

// NewInvalidDiscordIDError はDiscord ID形式不正エラーを生成する。
func NewInvalidDiscordIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDiscordID,
		Message:  "Discord IDの形式が不正です。",
		Category: "validation",
		Action:   "Discordから発行された正しいリンクを使用してください。",
	}
}

// NewInvalidGitHubUsernameError はGitHubユーザー名形式不正エラーを生成する。
func NewInvalidGitHubUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGitHubUsername,
		Message:  "GitHubから取得したユーザー名の形式が不正です。",
		Category: "validation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidHoursError は時間数不正エラーを生成する。
func NewInvalidHoursError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHours,
		Message:  "時間は0より大きく24以下で指定してください。",
		Category: "validation",
		Action:   "時間数を確認して再実行してください。",
	}
}

// NewInvalidLimitError は取得件数不正エラーを生成する。
func NewInvalidLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  "取得件数は1以上100以下で指定してください。",
		Category: "validation",
		Action:   "件数を確認して再実行してください。",
	}
}

// NewInvalidCommitSHAError はコミットSHA形式不正エラーを生成する。
func NewInvalidCommitSHAError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCommitSHA,
		Message:  "コミットIDの形式が不正です。",
		Category: "validation",
		Action:   "コミットを選択し直してください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
// retryAfterSecondsは再試行可能になるまでの秒数。
func NewRateLimitError(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:              ErrCodeRateLimitExceeded,
		Message:           fmt.Sprintf("リクエストが多すぎます。%d秒後に再試行してください。", retryAfterSeconds),
		Category:          "system",
		Action:            "表示された秒数だけ待ってから再実行してください。",
		RetryAfterSeconds: retryAfterSeconds,
	}
}

// NewNotLinkedError はGitHub未連携エラーを生成する。
func NewNotLinkedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotLinked,
		Message:  "GitHubアカウントが連携されていません。",
		Category: "auth",
		Action:   "/link コマンドでGitHubアカウントを連携してください。",
	}
}

// NewUpstreamAuthError はGitHubトークン交換失敗エラーを生成する。
// 上流のレスポンス内容はユーザーに開示しない。
func NewUpstreamAuthError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamAuthFailure,
		Message:  "GitHubとの認証に失敗しました。",
		Category: "upstream",
		Action:   "Discordで /link コマンドを再実行してください。",
	}
}

// NewUpstreamProfileError はGitHubプロフィール取得失敗エラーを生成する。
func NewUpstreamProfileError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamProfileFailure,
		Message:  "GitHubユーザー情報の取得に失敗しました。",
		Category: "upstream",
		Action:   "しばらく待ってからDiscordで /link コマンドを再実行してください。",
	}
}

// NewUpstreamTimeoutError はGitHub API呼び出しのタイムアウトエラーを生成する。
func NewUpstreamTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamTimeout,
		Message:  "GitHub APIがタイムアウトしました。",
		Category: "upstream",
		Action:   "しばらく待ってからDiscordで /link コマンドを再実行してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalError,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
