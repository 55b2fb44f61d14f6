// Package worklog はボランティア時間記録に関するビジネスロジックを提供する。
package worklog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/voltrack/internal/github"
	"github.com/hitoshi/voltrack/internal/model"
	"github.com/hitoshi/voltrack/internal/repository"
	"github.com/hitoshi/voltrack/internal/security"
)

// ActivitySource はコミット取得とユーザー確認のインターフェース。
// 将来的にGitHub以外のホスティングに対応するための抽象化。
type ActivitySource interface {
	RecentCommits(ctx context.Context, login string, since time.Time) ([]github.Commit, error)
	UserExists(ctx context.Context, login string) (bool, error)
}

// ServiceConfig はworklogサービスの設定。
type ServiceConfig struct {
	// CommitLookback はコミット選択の対象期間。
	CommitLookback time.Duration
}

// Service はボランティア時間記録のビジネスロジックを提供する。
type Service struct {
	linkRepo repository.LinkRepository
	logRepo  repository.WorkLogRepository
	source   ActivitySource
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	linkRepo repository.LinkRepository,
	logRepo repository.WorkLogRepository,
	source ActivitySource,
	config ServiceConfig,
) *Service {
	return &Service{
		linkRepo: linkRepo,
		logRepo:  logRepo,
		source:   source,
		config:   config,
	}
}

// Status はアカウントの連携状態を表す。
type Status struct {
	Account           *model.LinkedAccount
	RecentCommitCount int
}

// LinkedAccount は指定Discord IDの連携済みアカウントを返す。
// 未連携の場合はmodel.ErrNotLinkedを返す。
// ストアから読み出したログイン名は使用前に再検証する。
func (s *Service) LinkedAccount(ctx context.Context, discordID string) (*model.LinkedAccount, error) {
	if !security.ValidateDiscordID(discordID) {
		return nil, model.NewInvalidDiscordIDError()
	}

	account, err := s.linkRepo.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, fmt.Errorf("failed to find linked account: %w", err)
	}
	if account == nil {
		return nil, model.ErrNotLinked
	}

	if !security.ValidateGitHubUsername(account.GitHubLogin) {
		slog.Error("invalid github login stored in database",
			slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		)
		return nil, model.NewInvalidGitHubUsernameError()
	}

	return account, nil
}

// RecentCommits は連携済みアカウントの直近コミットを返す。
// 未連携の場合はmodel.ErrNotLinkedを返す。
func (s *Service) RecentCommits(ctx context.Context, discordID string) ([]github.Commit, error) {
	account, err := s.LinkedAccount(ctx, discordID)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-s.config.CommitLookback)
	commits, err := s.source.RecentCommits(ctx, account.GitHubLogin, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent commits: %w", err)
	}

	return commits, nil
}

// LogHours はコミットに対する時間記録を作成する。
// 時間数・コミットSHAを検証し、未連携ユーザーの記録は拒否する。
func (s *Service) LogHours(ctx context.Context, discordID, commitSHA string, hours float64) (*model.WorkLog, error) {
	if !security.ValidateHours(hours) {
		return nil, model.NewInvalidHoursError()
	}
	if !security.ValidateCommitSHA(commitSHA) {
		return nil, model.NewInvalidCommitSHAError()
	}

	// 連携確認（Discord ID検証を含む）
	if _, err := s.LinkedAccount(ctx, discordID); err != nil {
		return nil, err
	}

	log := &model.WorkLog{
		ID:        uuid.New().String(),
		DiscordID: discordID,
		CommitSHA: commitSHA,
		Hours:     hours,
		LoggedAt:  time.Now(),
	}
	if err := s.logRepo.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create work log: %w", err)
	}

	slog.Info("work hours logged",
		slog.String("discord_id_hash", security.HashIdentifier(discordID)),
		slog.String("commit_sha", commitSHA[:7]),
		slog.Float64("hours", hours),
	)

	return log, nil
}

// History は指定Discord IDの記録を新しい順に返し、合計時間を併せて返す。
// ストアから読み出した記録も信頼せず、不正な行は読み飛ばす。
func (s *Service) History(ctx context.Context, discordID string, limit int) ([]*model.WorkLog, float64, error) {
	if !security.ValidateDiscordID(discordID) {
		return nil, 0, model.NewInvalidDiscordIDError()
	}
	if !security.ValidateLimit(limit) {
		return nil, 0, model.NewInvalidLimitError()
	}

	rows, err := s.logRepo.ListRecent(ctx, discordID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list work logs: %w", err)
	}

	var logs []*model.WorkLog
	var total float64
	for _, log := range rows {
		if !security.ValidateCommitSHA(log.CommitSHA) || !security.ValidateHours(log.Hours) {
			slog.Warn("skipping invalid work log row",
				slog.String("log_id", log.ID),
			)
			continue
		}
		logs = append(logs, log)
		total += log.Hours
	}

	return logs, total, nil
}

// AccountStatus は連携状態と直近コミット数を返す。
func (s *Service) AccountStatus(ctx context.Context, discordID string) (*Status, error) {
	account, err := s.LinkedAccount(ctx, discordID)
	if err != nil {
		return nil, err
	}

	since := time.Now().Add(-s.config.CommitLookback)
	commits, err := s.source.RecentCommits(ctx, account.GitHubLogin, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent commits: %w", err)
	}

	return &Status{
		Account:           account,
		RecentCommitCount: len(commits),
	}, nil
}
