// Package github はGitHub REST APIのクライアントを提供する。
// ユーザーの公開イベントからPushEventのコミットを取得する機能と
// ユーザー存在確認を含む。
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/voltrack/internal/metrics"
	"github.com/hitoshi/voltrack/internal/security"
)

const (
	defaultBaseURL = "https://api.github.com"

	// eventPageSize はイベントAPIの1ページあたりの取得件数。
	eventPageSize = 100
)

// Commit はユーザーイベントから抽出したコミットを表す。
type Commit struct {
	SHA     string
	Message string
	Repo    string
	Date    time.Time
}

// Client はGitHub REST APIのクライアント。
// 認証にはPersonal Access Tokenを使用し、呼び出しはrate.Limiterでペーシングする。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	collector  metrics.APIRecorder
	limiter    *rate.Limiter
	token      string
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はGitHubの本番APIを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.APIRecorder, token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		collector:  collector,
		// GitHubのセカンダリレート制限を避けるため毎秒1回・バースト5に抑える
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		token:   token,
		baseURL: baseURL,
	}
}

// userEvent はイベントAPIのレスポンス要素。PushEventのみを対象にする。
type userEvent struct {
	Type string `json:"type"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Commits []struct {
			SHA     string `json:"sha"`
			Message string `json:"message"`
		} `json:"commits"`
	} `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// RecentCommits はユーザーの公開イベントからsince以降のPushEventコミットを返す。
// SHAの形式が不正なコミットは読み飛ばす。新しい順で返す。
func (c *Client) RecentCommits(ctx context.Context, login string, since time.Time) ([]Commit, error) {
	if !security.ValidateGitHubUsername(login) {
		return nil, fmt.Errorf("invalid github login")
	}

	url := fmt.Sprintf("%s/users/%s/events?per_page=%d", c.baseURL, login, eventPageSize)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user events: %w", err)
	}

	var events []userEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to parse user events: %w", err)
	}

	var commits []Commit
	for _, e := range events {
		if e.Type != "PushEvent" || e.CreatedAt.Before(since) {
			continue
		}
		for _, commit := range e.Payload.Commits {
			if !security.ValidateCommitSHA(commit.SHA) {
				c.logger.Warn("skipping commit with invalid sha",
					slog.String("login", login),
				)
				continue
			}
			commits = append(commits, Commit{
				SHA:     commit.SHA,
				Message: commit.Message,
				Repo:    e.Repo.Name,
				Date:    e.CreatedAt,
			})
		}
	}

	return commits, nil
}

// UserExists はユーザーがGitHub上に存在するか確認する。
func (c *Client) UserExists(ctx context.Context, login string) (bool, error) {
	if !security.ValidateGitHubUsername(login) {
		return false, fmt.Errorf("invalid github login")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/"+login, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.collector.RecordGitHubAPILatency(time.Since(start))
	if err != nil {
		return false, fmt.Errorf("user lookup failed: %w", err)
	}
	defer resp.Body.Close()
	c.collector.RecordGitHubAPIStatus(resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("user lookup returned status %d", resp.StatusCode)
	}
}

// get はペーシングと共通ヘッダー付きでGETを実行し、200のボディを返す。
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.collector.RecordGitHubAPILatency(time.Since(start))
	if err != nil {
		c.logger.Error("github api request failed",
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	defer resp.Body.Close()
	c.collector.RecordGitHubAPIStatus(resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("github api returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	return body, nil
}

// setHeaders はGitHub API共通のリクエストヘッダーを設定する。
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "voltrack/1.0")
}
