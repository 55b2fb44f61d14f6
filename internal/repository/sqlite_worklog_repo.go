package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/voltrack/internal/model"
)

// SQLiteWorkLogRepo はSQLiteを使用したボランティア時間記録リポジトリ。
type SQLiteWorkLogRepo struct {
	db *sql.DB
}

// NewSQLiteWorkLogRepo はSQLiteWorkLogRepoを生成する。
func NewSQLiteWorkLogRepo(db *sql.DB) *SQLiteWorkLogRepo {
	return &SQLiteWorkLogRepo{db: db}
}

// Create は時間記録を作成する。
func (r *SQLiteWorkLogRepo) Create(ctx context.Context, log *model.WorkLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO work_logs (id, discord_id, commit_sha, hours, logged_at)
		 VALUES (?, ?, ?, ?, ?)`,
		log.ID, log.DiscordID, log.CommitSHA, log.Hours, log.LoggedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create work log: %w", err)
	}
	return nil
}

// ListRecent は指定Discord IDの記録を新しい順に最大limit件返す。
func (r *SQLiteWorkLogRepo) ListRecent(ctx context.Context, discordID string, limit int) ([]*model.WorkLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, discord_id, commit_sha, hours, logged_at
		 FROM work_logs
		 WHERE discord_id = ?
		 ORDER BY logged_at DESC
		 LIMIT ?`,
		discordID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list work logs: %w", err)
	}
	defer rows.Close()

	return scanWorkLogs(rows)
}

// ListAll は全記録を記録日時昇順で返す。CSVエクスポート用。
func (r *SQLiteWorkLogRepo) ListAll(ctx context.Context) ([]*model.WorkLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, discord_id, commit_sha, hours, logged_at
		 FROM work_logs
		 ORDER BY logged_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list all work logs: %w", err)
	}
	defer rows.Close()

	return scanWorkLogs(rows)
}

// scanWorkLogs は結果セットをWorkLogのスライスに変換する。
func scanWorkLogs(rows *sql.Rows) ([]*model.WorkLog, error) {
	var logs []*model.WorkLog
	for rows.Next() {
		log := &model.WorkLog{}
		if err := rows.Scan(&log.ID, &log.DiscordID, &log.CommitSHA, &log.Hours, &log.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan work log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate work logs: %w", err)
	}
	return logs, nil
}

// compile-time interface check
var _ WorkLogRepository = (*SQLiteWorkLogRepo)(nil)
