package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabasePath string

	// Discord
	DiscordToken string

	// GitHub OAuth
	GitHubClientID     string
	GitHubClientSecret string

	// GitHub API（コミット取得用のPersonal Access Token）
	GitHubToken  string
	GitHubAPIURL string

	// OAuth
	// PublicBaseURL はOAuthサーバーの公開URL（末尾の/callbackは除去済み）。
	// RedirectURL はGitHubに登録するコールバックURL。
	PublicBaseURL string
	RedirectURL   string
	StateTTL      time.Duration

	// Rate Limit
	OAuthRateMax        int
	OAuthRateWindow     time.Duration
	CommandRateMax      int
	CommandRateWindow   time.Duration
	LogCommandCooldown  time.Duration

	// Commits
	CommitLookback time.Duration

	// Cleanup
	StateCleanupInterval time.Duration

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す（未定義動作での起動を拒否する）。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DiscordToken = os.Getenv("DISCORD_TOKEN")
	if cfg.DiscordToken == "" {
		missing = append(missing, "DISCORD_TOKEN")
	}

	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	if cfg.GitHubClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}

	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	if cfg.GitHubClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}

	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	if cfg.GitHubToken == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}

	baseURL := os.Getenv("OAUTH_REDIRECT_URI")
	if baseURL == "" {
		missing = append(missing, "OAUTH_REDIRECT_URI")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// OAUTH_REDIRECT_URIにコールバックパスまで指定されている場合は基底URLに正規化する
	baseURL = strings.TrimSuffix(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/oauth/callback")
	baseURL = strings.TrimSuffix(baseURL, "/callback")
	cfg.PublicBaseURL = baseURL
	cfg.RedirectURL = baseURL + "/oauth/callback"

	// Optional fields with defaults
	cfg.DatabasePath = getEnvString("DATABASE_PATH", "volunteer.db")
	cfg.GitHubAPIURL = getEnvString("GITHUB_API_URL", "https://api.github.com")
	cfg.StateTTL = getEnvDuration("STATE_TTL", 10*time.Minute)
	cfg.OAuthRateMax = getEnvInt("OAUTH_RATE_MAX", 5)
	cfg.OAuthRateWindow = getEnvDuration("OAUTH_RATE_WINDOW", 300*time.Second)
	cfg.CommandRateMax = getEnvInt("COMMAND_RATE_MAX", 10)
	cfg.CommandRateWindow = getEnvDuration("COMMAND_RATE_WINDOW", 60*time.Second)
	cfg.LogCommandCooldown = getEnvDuration("LOG_COMMAND_COOLDOWN", 10*time.Second)
	cfg.CommitLookback = getEnvDuration("COMMIT_LOOKBACK", 7*24*time.Hour)
	cfg.StateCleanupInterval = getEnvDuration("STATE_CLEANUP_INTERVAL", 10*time.Minute)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
