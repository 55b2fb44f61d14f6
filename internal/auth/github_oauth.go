package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGitHubAuthURL  = "https://github.com/login/oauth/authorize"
	defaultGitHubTokenURL = "https://github.com/login/oauth/access_token"
	defaultGitHubUserURL  = "https://api.github.com/user"

	// upstreamTimeout はGitHub API呼び出しの上限時間。
	// タイムアウト時はフローを失敗させ、副作用は残さない。
	upstreamTimeout = 30 * time.Second
)

// GitHubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string
}

// GitHubOAuthProvider はGitHubの認可コードグラントによるアカウント連携を提供する。
type GitHubOAuthProvider struct {
	config     GitHubOAuthConfig
	httpClient *http.Client
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGitHubAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGitHubTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultGitHubUserURL
	}
	return &GitHubOAuthProvider{
		config:     config,
		httpClient: &http.Client{Timeout: upstreamTimeout},
	}
}

// AuthorizeURL はGitHub OAuthの認可URLを生成する。
// スコープは読み取り専用のread:userのみを要求する。
func (p *GitHubOAuthProvider) AuthorizeURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"state":        {state},
		"scope":        {"read:user"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// githubTokenResponse はGitHubのトークンエンドポイントのレスポンス。
type githubTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	ErrorDescription string `json:"error_description"`
}

// GitHubUser はGitHubのユーザーエンドポイントのレスポンス。
type GitHubUser struct {
	Login string `json:"login"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 非200レスポンスおよびトークン欠落はエラーとして返す。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"code":          {code},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response: %s", tokenResp.ErrorDescription)
	}

	return tokenResp.AccessToken, nil
}

// FetchUser はアクセストークンでGitHubのユーザー情報を取得する。
func (p *GitHubOAuthProvider) FetchUser(ctx context.Context, accessToken string) (*GitHubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "token "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch failed with status %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	if user.Login == "" {
		return nil, fmt.Errorf("empty login in user response")
	}

	return &user, nil
}

// compile-time interface check
var _ OAuthProvider = (*GitHubOAuthProvider)(nil)
