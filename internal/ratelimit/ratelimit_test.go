package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fakeClock はテストで時刻を進めるためのクロック。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(t *testing.T, maxRequests int, window time.Duration) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(maxRequests, window)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestLimiter_AllowsWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 5, 300*time.Second)

	for i := 0; i < 5; i++ {
		allowed, retryAfter := l.Allow("user-1")
		if !allowed {
			t.Fatalf("request %d: rejected, want allowed", i+1)
		}
		if retryAfter != 0 {
			t.Errorf("request %d: retryAfter = %v, want 0", i+1, retryAfter)
		}
	}
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 5, 300*time.Second)

	for i := 0; i < 5; i++ {
		l.Allow("user-1")
	}

	allowed, retryAfter := l.Allow("user-1")
	if allowed {
		t.Fatal("6th request allowed, want rejected")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfter = %v, want > 0", retryAfter)
	}
	if retryAfter > 300*time.Second {
		t.Errorf("retryAfter = %v, want <= window", retryAfter)
	}
}

func TestLimiter_RejectedRequestDoesNotConsumeSlot(t *testing.T) {
	l, clock := newTestLimiter(t, 2, 60*time.Second)

	l.Allow("user-1")
	l.Allow("user-1")

	// 拒否が何度あっても窓が明ければ通る
	for i := 0; i < 10; i++ {
		if allowed, _ := l.Allow("user-1"); allowed {
			t.Fatalf("rejected request %d was allowed", i)
		}
	}

	clock.Advance(61 * time.Second)

	if allowed, _ := l.Allow("user-1"); !allowed {
		t.Error("request after window expiry rejected, want allowed")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(t, 2, 60*time.Second)

	l.Allow("user-1")
	clock.Advance(30 * time.Second)
	l.Allow("user-1")

	// 最初のリクエストだけが窓の外に出る
	clock.Advance(31 * time.Second)

	allowed, _ := l.Allow("user-1")
	if !allowed {
		t.Error("request rejected after oldest timestamp expired, want allowed")
	}

	// 窓内に2件（30秒時点と61秒時点）あるため3件目は拒否
	allowed, retryAfter := l.Allow("user-1")
	if allowed {
		t.Error("request allowed with full window, want rejected")
	}
	if retryAfter <= 0 {
		t.Errorf("retryAfter = %v, want > 0", retryAfter)
	}
}

func TestLimiter_IdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1, 60*time.Second)

	if allowed, _ := l.Allow("user-1"); !allowed {
		t.Fatal("first request for user-1 rejected")
	}
	if allowed, _ := l.Allow("user-1"); allowed {
		t.Fatal("second request for user-1 allowed, want rejected")
	}

	// 別の識別子には影響しない
	if allowed, _ := l.Allow("user-2"); !allowed {
		t.Error("first request for user-2 rejected, want allowed")
	}
}

func TestLimiter_RetryAfterShrinksOverTime(t *testing.T) {
	l, clock := newTestLimiter(t, 1, 60*time.Second)

	l.Allow("user-1")

	_, first := l.Allow("user-1")
	clock.Advance(20 * time.Second)
	_, second := l.Allow("user-1")

	if second >= first {
		t.Errorf("retryAfter did not shrink: first=%v second=%v", first, second)
	}
}

func TestLimiter_CleanupRemovesIdleIdentifiers(t *testing.T) {
	l, clock := newTestLimiter(t, 5, 60*time.Second)

	l.Allow("user-1")
	l.Allow("user-2")
	if got := l.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	clock.Advance(61 * time.Second)
	l.cleanup()

	if got := l.Len(); got != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", got)
	}
}

func TestLimiter_ConcurrentAllowDoesNotExceedLimit(t *testing.T) {
	l, _ := newTestLimiter(t, 10, 60*time.Second)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := l.Allow("user-1"); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowedCount != 10 {
		t.Errorf("allowed count = %d, want exactly 10", allowedCount)
	}
}
