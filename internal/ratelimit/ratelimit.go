// Package ratelimit は識別子ごとの時間窓ベースのリクエスト流量制御を提供する。
// OAuth開始エンドポイントとDiscordコマンドの2系統で独立したインスタンスを使用する。
package ratelimit

import (
	"sync"
	"time"
)

// defaultCleanupInterval は空になった識別子エントリの掃除間隔。
const defaultCleanupInterval = 5 * time.Minute

// Limiter は識別子ごとに直近window内の許可リクエスト数を数え、
// maxRequestsを超えるリクエストを拒否する。
// 状態はメモリ上のみに保持し、プロセス再起動でリセットされる。
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New は新しいLimiterを生成する。
// バックグラウンドで空エントリのクリーンアップを開始する。
// 使い終わったらStopを呼ぶこと。
func New(maxRequests int, window time.Duration) *Limiter {
	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
		stopCh:      make(chan struct{}),
	}

	go l.cleanupLoop(defaultCleanupInterval)

	return l
}

// Allow は識別子のリクエストを許可するか判定する。
// 拒否時は再試行可能になるまでの時間を併せて返す（最小0）。
// 同一識別子への並行呼び出しはミューテックスで直列化される。
func (l *Limiter) Allow(identifier string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	// 窓の外に出たタイムスタンプを刈り取る
	kept := l.requests[identifier][:0]
	for _, ts := range l.requests[identifier] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.maxRequests {
		l.requests[identifier] = kept
		retryAfter := l.window - now.Sub(kept[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	l.requests[identifier] = append(kept, now)
	return true, 0
}

// Len は現在追跡中の識別子エントリ数を返す。テストおよびメトリクス用。
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

// cleanupLoop はバックグラウンドで定期的にcleanupを実行する。
func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup は窓内にタイムスタンプが1つも残っていない識別子のエントリを削除する。
// 刈り取りはAllow呼び出し時にも行われるが、二度と来ない識別子の
// エントリが無制限に溜まるのを防ぐためにここで回収する。
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)

	for identifier, timestamps := range l.requests {
		live := false
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.requests, identifier)
		}
	}
}
