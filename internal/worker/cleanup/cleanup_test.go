package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/voltrack/internal/model"
)

type mockStateRepo struct {
	deleted   int64
	deleteErr error
	calls     int
}

func (m *mockStateRepo) Create(context.Context, *model.OAuthState) error { return nil }
func (m *mockStateRepo) Consume(context.Context, string) (string, error) {
	return "", model.ErrStateNotFound
}
func (m *mockStateRepo) Delete(context.Context, string) error { return nil }

func (m *mockStateRepo) DeleteExpired(context.Context, time.Time) (int64, error) {
	m.calls++
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deleted, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestCleanupJob_Run(t *testing.T) {
	repo := &mockStateRepo{deleted: 3}
	job := NewCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if repo.calls != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", repo.calls)
	}
}

func TestCleanupJob_RunPropagatesError(t *testing.T) {
	repo := &mockStateRepo{deleteErr: errors.New("db locked")}
	job := NewCleanupJob(repo, testLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want error")
	}
}

func TestCleanupJob_LoopStopsOnCancel(t *testing.T) {
	repo := &mockStateRepo{}
	job := NewCleanupJob(repo, testLogger())
	job.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		job.Loop(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Loop did not stop after context cancellation")
	}

	if repo.calls == 0 {
		t.Error("DeleteExpired never called during loop")
	}
}
