// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/voltrack/internal/model"
)

// StateRepository はOAuth stateトークンの永続化インターフェース。
type StateRepository interface {
	// Create はstateトークンを保存する。同一トークンが存在する場合は置き換える
	// （トークンのエントロピー上、衝突はほぼ起こらないがクラッシュを避ける）。
	Create(ctx context.Context, state *model.OAuthState) error

	// Consume はstateトークンに紐付くDiscord IDを返し、同一文のなかで行を削除する。
	// 読み取りと削除は単一のアトミックな操作であり、同一トークンの並行コールバックが
	// 二重にDiscord IDを解決することはない。
	// 未発行・期限切れ・消費済みの場合はmodel.ErrStateNotFoundを返す。
	Consume(ctx context.Context, token string) (string, error)

	// Delete は指定トークンの行を削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, token string) error

	// DeleteExpired は期限切れのstate行をすべて削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// LinkRepository はDiscord↔GitHub紐付けの永続化インターフェース。
type LinkRepository interface {
	// Upsert は紐付けを作成または置き換える。
	// 1つのDiscord IDに対して紐付けは常に1件。
	Upsert(ctx context.Context, account *model.LinkedAccount) error

	// FindByDiscordID は指定Discord IDの紐付けを取得する。見つからない場合はnilを返す。
	FindByDiscordID(ctx context.Context, discordID string) (*model.LinkedAccount, error)

	// Delete は指定Discord IDの紐付けを削除する。存在しない場合は何もしない。
	Delete(ctx context.Context, discordID string) error
}

// WorkLogRepository はボランティア時間記録の永続化インターフェース。
type WorkLogRepository interface {
	// Create は時間記録を作成する。
	Create(ctx context.Context, log *model.WorkLog) error

	// ListRecent は指定Discord IDの記録を新しい順に最大limit件返す。
	ListRecent(ctx context.Context, discordID string, limit int) ([]*model.WorkLog, error)

	// ListAll は全記録を記録日時昇順で返す。CSVエクスポート用。
	ListAll(ctx context.Context) ([]*model.WorkLog, error)
}
