package model

import "time"

// WorkLog はコミットに対するボランティア時間の記録を表す。
type WorkLog struct {
	ID        string
	DiscordID string
	CommitSHA string
	Hours     float64
	LoggedAt  time.Time
}
