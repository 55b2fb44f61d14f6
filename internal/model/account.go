// Package model はドメインモデルを定義する。
package model

import "time"

// OAuthState はOAuth連携フローの単回使用stateトークンを表す。
// stateトークンはフロー開始時に発行され、コールバック成功時に消費（削除）される。
type OAuthState struct {
	Token     string
	DiscordID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LinkedAccount はDiscordユーザーとGitHubアカウントの紐付けを表す。
// 1つのDiscord IDに紐付くGitHubログインは常に1つ（INSERT OR REPLACE）。
type LinkedAccount struct {
	DiscordID   string
	GitHubLogin string
	ValidatedAt time.Time
}
