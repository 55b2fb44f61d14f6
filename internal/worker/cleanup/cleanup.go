// Package cleanup は期限切れOAuth stateの自動削除ジョブを提供する。
// stateはConsume時にも期限を検査するため、このジョブは応答性ではなく
// ストアの肥大化防止のために存在する。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/voltrack/internal/repository"
)

// CleanupJob は期限切れstateの定期削除ジョブ。
// 冪等であり、削除対象がない場合もエラーにならない。
type CleanupJob struct {
	stateRepo repository.StateRepository
	logger    *slog.Logger

	// Interval は実行間隔（デフォルト: 5分）。
	Interval time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(stateRepo repository.StateRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		stateRepo: stateRepo,
		logger:    logger,
		Interval:  5 * time.Minute,
	}
}

// Run は期限切れstateを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.stateRepo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("期限切れstateの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	if deleted > 0 {
		j.logger.Info("期限切れstateを削除しました",
			slog.Int64("deleted_count", deleted),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}

// Loop はctxがキャンセルされるまでInterval間隔でRunを繰り返す。
// 個別の実行エラーはログに記録して継続する。
func (j *CleanupJob) Loop(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("state cleanup loop stopped")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("state cleanup run failed", slog.String("error", err.Error()))
			}
		}
	}
}
