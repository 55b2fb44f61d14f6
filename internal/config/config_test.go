package config

import (
	"strings"
	"testing"
	"time"
)

// setRequiredEnv は必須環境変数を設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "discord-token")
	t.Setenv("GITHUB_CLIENT_ID", "client-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "client-secret")
	t.Setenv("GITHUB_TOKEN", "ghp_token")
	t.Setenv("OAUTH_REDIRECT_URI", "https://example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabasePath != "volunteer.db" {
		t.Errorf("DatabasePath = %q, want volunteer.db", cfg.DatabasePath)
	}
	if cfg.ServerPort != "8000" {
		t.Errorf("ServerPort = %q, want 8000", cfg.ServerPort)
	}
	if cfg.StateTTL != 10*time.Minute {
		t.Errorf("StateTTL = %v, want 10m", cfg.StateTTL)
	}
	if cfg.OAuthRateMax != 5 || cfg.OAuthRateWindow != 300*time.Second {
		t.Errorf("OAuth rate = %d/%v, want 5/300s", cfg.OAuthRateMax, cfg.OAuthRateWindow)
	}
	if cfg.CommandRateMax != 10 || cfg.CommandRateWindow != 60*time.Second {
		t.Errorf("Command rate = %d/%v, want 10/60s", cfg.CommandRateMax, cfg.CommandRateWindow)
	}
	if cfg.LogCommandCooldown != 10*time.Second {
		t.Errorf("LogCommandCooldown = %v, want 10s", cfg.LogCommandCooldown)
	}
	if cfg.CommitLookback != 7*24*time.Hour {
		t.Errorf("CommitLookback = %v, want 168h", cfg.CommitLookback)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("GITHUB_CLIENT_ID", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	for _, name := range []string{"DISCORD_TOKEN", "GITHUB_CLIENT_ID"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err.Error(), name)
		}
	}
}

func TestLoad_RedirectURLNormalization(t *testing.T) {
	tests := []struct {
		name        string
		redirectURI string
		wantBase    string
	}{
		{"ベースURLのみ", "https://example.com", "https://example.com"},
		{"末尾スラッシュ", "https://example.com/", "https://example.com"},
		{"コールバックパス込み", "https://example.com/oauth/callback", "https://example.com"},
		{"短縮コールバックパス込み", "https://example.com/callback", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("OAUTH_REDIRECT_URI", tt.redirectURI)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.PublicBaseURL != tt.wantBase {
				t.Errorf("PublicBaseURL = %q, want %q", cfg.PublicBaseURL, tt.wantBase)
			}
			if cfg.RedirectURL != tt.wantBase+"/oauth/callback" {
				t.Errorf("RedirectURL = %q, want %q", cfg.RedirectURL, tt.wantBase+"/oauth/callback")
			}
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_PATH", "/data/prod.db")
	t.Setenv("STATE_TTL", "5m")
	t.Setenv("OAUTH_RATE_MAX", "3")
	t.Setenv("SERVER_PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabasePath != "/data/prod.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.StateTTL != 5*time.Minute {
		t.Errorf("StateTTL = %v, want 5m", cfg.StateTTL)
	}
	if cfg.OAuthRateMax != 3 {
		t.Errorf("OAuthRateMax = %d, want 3", cfg.OAuthRateMax)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want 9000", cfg.ServerPort)
	}
}

func TestLoad_InvalidOptionalFallsBackToDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STATE_TTL", "not-a-duration")
	t.Setenv("OAUTH_RATE_MAX", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StateTTL != 10*time.Minute {
		t.Errorf("StateTTL = %v, want default 10m", cfg.StateTTL)
	}
	if cfg.OAuthRateMax != 5 {
		t.Errorf("OAuthRateMax = %d, want default 5", cfg.OAuthRateMax)
	}
}
