package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/voltrack/internal/model"
)

// SQLiteLinkRepo はSQLiteを使用したアカウント紐付けリポジトリ。
type SQLiteLinkRepo struct {
	db *sql.DB
}

// NewSQLiteLinkRepo はSQLiteLinkRepoを生成する。
func NewSQLiteLinkRepo(db *sql.DB) *SQLiteLinkRepo {
	return &SQLiteLinkRepo{db: db}
}

// Upsert は紐付けを作成または置き換える。
func (r *SQLiteLinkRepo) Upsert(ctx context.Context, account *model.LinkedAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO linked_accounts (discord_id, github_login, validated_at)
		 VALUES (?, ?, ?)`,
		account.DiscordID, account.GitHubLogin, account.ValidatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert linked account: %w", err)
	}
	return nil
}

// FindByDiscordID は指定Discord IDの紐付けを取得する。見つからない場合はnilを返す。
func (r *SQLiteLinkRepo) FindByDiscordID(ctx context.Context, discordID string) (*model.LinkedAccount, error) {
	account := &model.LinkedAccount{}
	err := r.db.QueryRowContext(ctx,
		`SELECT discord_id, github_login, validated_at
		 FROM linked_accounts
		 WHERE discord_id = ?`,
		discordID,
	).Scan(&account.DiscordID, &account.GitHubLogin, &account.ValidatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}

	return account, nil
}

// Delete は指定Discord IDの紐付けを削除する。存在しない場合は何もしない。
func (r *SQLiteLinkRepo) Delete(ctx context.Context, discordID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM linked_accounts WHERE discord_id = ?`,
		discordID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete linked account: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LinkRepository = (*SQLiteLinkRepo)(nil)
