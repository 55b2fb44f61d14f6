package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIdentifier はログ出力用に識別子をSHA-256でハッシュ化し先頭8文字を返す。
// Discord IDやstateトークンを平文のままログに残さないために使用する。
func HashIdentifier(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:8]
}

// MaskToken はトークンをログ出力用にマスクする。
// 8文字未満のトークンは全体を隠す。
func MaskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
