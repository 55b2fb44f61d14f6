// Package security は入力検証、サニタイズ、ログマスキングの機能を提供する。
//
// すべての検証関数は純粋な述語であり、信頼境界を越える値
// （コマンド入力、外部APIレスポンス、ストアからの読み出し）に対して
// 毎回呼び出すこと。一度検証済みの値でも経路を挟んだら再検証する。
package security

import (
	"regexp"
	"strings"
)

var (
	// discordIDPattern はDiscordユーザーIDの形式（17〜19桁の数字）。
	discordIDPattern = regexp.MustCompile(`^\d{17,19}$`)

	// githubUsernamePattern はGitHubユーザー名の構造を検証する。
	// 先頭・末尾は英数字、ハイフンの連続は不可。長さはValidateGitHubUsernameで別途検証する。
	githubUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:-?[A-Za-z0-9])*$`)

	// commitSHAPattern はGitコミットSHAの形式（16進7〜40文字）。
	commitSHAPattern = regexp.MustCompile(`^[a-fA-F0-9]{7,40}$`)

	// oauthStatePattern はOAuth stateトークンの形式（URL-safe base64文字、20文字以上）。
	oauthStatePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{20,}$`)

	// controlCharPattern は除去対象のASCII制御文字。
	// タブ（0x09）と改行（0x0A, 0x0D）は除去しない。
	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// ValidateDiscordID はDiscordユーザーIDの形式を検証する。
func ValidateDiscordID(discordID string) bool {
	return discordIDPattern.MatchString(discordID)
}

// ValidateGitHubUsername はGitHubユーザー名の形式を検証する。
// 1〜39文字の英数字とハイフン、先頭・末尾のハイフンおよびハイフンの連続は不可。
func ValidateGitHubUsername(username string) bool {
	if len(username) < 1 || len(username) > 39 {
		return false
	}
	return githubUsernamePattern.MatchString(username)
}

// ValidateHours はボランティア時間数を検証する（0より大きく24以下）。
// NaNは比較がfalseになるため自動的に拒否される。
func ValidateHours(hours float64) bool {
	return hours > 0 && hours <= 24
}

// ValidateLimit は履歴取得件数を検証する（1以上100以下）。
func ValidateLimit(limit int) bool {
	return limit >= 1 && limit <= 100
}

// ValidateCommitSHA はGitコミットSHAの形式を検証する。
func ValidateCommitSHA(commitSHA string) bool {
	return commitSHAPattern.MatchString(commitSHA)
}

// ValidateOAuthState はOAuth stateトークンの形式を検証する。
// ストアへの問い合わせ前に呼び出し、不正な形式の値でストアに触れないこと。
func ValidateOAuthState(state string) bool {
	return oauthStatePattern.MatchString(state)
}

// SanitizeText はユーザー入力・外部入力の自由テキストをサニタイズする。
// ASCII制御文字（NUL等）を除去した後、maxLength文字に切り詰める。
// 空文字列の入力には空文字列を返す。
func SanitizeText(text string, maxLength int) string {
	if text == "" || maxLength <= 0 {
		return ""
	}

	sanitized := controlCharPattern.ReplaceAllString(text, "")

	runes := []rune(sanitized)
	if len(runes) > maxLength {
		return string(runes[:maxLength])
	}
	return sanitized
}

// SanitizeLabel はDiscordの選択肢ラベル用にテキストを1行に整形する。
// サニタイズと切り詰めの後、改行を空白に置換して前後の空白を除去する。
func SanitizeLabel(text string, maxLength int) string {
	s := SanitizeText(text, maxLength)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.TrimSpace(s)
}
