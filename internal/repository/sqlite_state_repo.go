package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/voltrack/internal/model"
)

// SQLiteStateRepo はSQLiteを使用したOAuth stateリポジトリ。
type SQLiteStateRepo struct {
	db *sql.DB
}

// NewSQLiteStateRepo はSQLiteStateRepoを生成する。
func NewSQLiteStateRepo(db *sql.DB) *SQLiteStateRepo {
	return &SQLiteStateRepo{db: db}
}

// Create はstateトークンを保存する。同一トークンが存在する場合は置き換える。
func (r *SQLiteStateRepo) Create(ctx context.Context, state *model.OAuthState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO oauth_states (state, discord_id, created_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		state.Token, state.DiscordID, state.CreatedAt.UTC(), state.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create oauth state: %w", err)
	}
	return nil
}

// Consume はstateトークンに紐付くDiscord IDを返し、行を削除する。
// DELETE ... RETURNINGの単一文で実行するため、読み取りと削除の間に
// 別のコールバックが割り込む余地はない。期限切れの行は削除対象にならず、
// 未発行・消費済みと同じくmodel.ErrStateNotFoundになる。
func (r *SQLiteStateRepo) Consume(ctx context.Context, token string) (string, error) {
	var discordID string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM oauth_states
		 WHERE state = ? AND expires_at > ?
		 RETURNING discord_id`,
		token, time.Now().UTC(),
	).Scan(&discordID)

	if err == sql.ErrNoRows {
		return "", model.ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return discordID, nil
}

// Delete は指定トークンの行を削除する。存在しない場合は何もしない。
func (r *SQLiteStateRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE state = ?`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのstate行をすべて削除し、削除件数を返す。
func (r *SQLiteStateRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted oauth states: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ StateRepository = (*SQLiteStateRepo)(nil)
