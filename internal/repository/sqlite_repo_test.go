package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/voltrack/internal/database"
	"github.com/hitoshi/voltrack/internal/model"
)

// newTestDB はテスト用のSQLiteデータベースを作成し、マイグレーションを適用する。
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	if err := database.RunMigrations(dbPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// --- SQLiteStateRepo ---

func TestSQLiteStateRepo_CreateAndConsume(t *testing.T) {
	repo := NewSQLiteStateRepo(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	state := &model.OAuthState{
		Token:     "AbCdEfGhIjKlMnOpQrStUvWxYz0123456789-_AbCdE",
		DiscordID: "123456789012345678",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := repo.Create(ctx, state); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	discordID, err := repo.Consume(ctx, state.Token)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if discordID != state.DiscordID {
		t.Errorf("Consume() = %q, want %q", discordID, state.DiscordID)
	}
}

func TestSQLiteStateRepo_ConsumeIsSingleUse(t *testing.T) {
	repo := NewSQLiteStateRepo(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	state := &model.OAuthState{
		Token:     "SingleUseToken0123456789abcdefghijklmnopqrs",
		DiscordID: "123456789012345678",
		CreatedAt: now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := repo.Create(ctx, state); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.Consume(ctx, state.Token); err != nil {
		t.Fatalf("first Consume() error = %v", err)
	}

	// 2回目の消費は必ず失敗する
	_, err := repo.Consume(ctx, state.Token)
	if !errors.Is(err, model.ErrStateNotFound) {
		t.Errorf("second Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestSQLiteStateRepo_ConsumeUnknownToken(t *testing.T) {
	repo := NewSQLiteStateRepo(newTestDB(t))

	_, err := repo.Consume(context.Background(), "UnknownToken0123456789abcdefghijklmnopqrstu")
	if !errors.Is(err, model.ErrStateNotFound) {
		t.Errorf("Consume() error = %v, want ErrStateNotFound", err)
	}
}

func TestSQLiteStateRepo_ConsumeExpiredToken(t *testing.T) {
	repo := NewSQLiteStateRepo(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	state := &model.OAuthState{
		Token:     "ExpiredToken0123456789abcdefghijklmnopqrstu",
		DiscordID: "123456789012345678",
		CreatedAt: now.Add(-20 * time.Minute),
		ExpiresAt: now.Add(-10 * time.Minute),
	}
	if err := repo.Create(ctx, state); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := repo.Consume(ctx, state.Token)
	if !errors.Is(err, model.ErrStateNotFound) {
		t.Errorf("Consume() of expired token error = %v, want ErrStateNotFound", err)
	}
}

func TestSQLiteStateRepo_DeleteExpired(t *testing.T) {
	repo := NewSQLiteStateRepo(newTestDB(t))
	ctx := context.Background()

	now := time.Now()
	states := []*model.OAuthState{
		{Token: "LiveToken9876543210abcdefghijklmnopqrstuvwx", DiscordID: "123456789012345678", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)},
		{Token: "DeadToken1_abcdefghijklmnopqrstuvwxyz012345", DiscordID: "123456789012345678", CreatedAt: now.Add(-30 * time.Minute), ExpiresAt: now.Add(-20 * time.Minute)},
		{Token: "DeadToken2_abcdefghijklmnopqrstuvwxyz012345", DiscordID: "876543210987654321", CreatedAt: now.Add(-30 * time.Minute), ExpiresAt: now.Add(-1 * time.Minute)},
	}
	for _, s := range states {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create(%s) error = %v", s.Token, err)
		}
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", deleted)
	}

	// 有効なstateは残っている
	if _, err := repo.Consume(ctx, states[0].Token); err != nil {
		t.Errorf("Consume() of live token error = %v", err)
	}
}

func TestSQLiteStateRepo_DeleteIsIdempotent(t *testing.T) {
	repo := NewSQLiteStateRepo(newTestDB(t))

	if err := repo.Delete(context.Background(), "NoSuchToken0123456789abcdefghijklmnopqrstuv"); err != nil {
		t.Errorf("Delete() of missing token error = %v, want nil", err)
	}
}

// --- SQLiteLinkRepo ---

func TestSQLiteLinkRepo_UpsertAndFind(t *testing.T) {
	repo := NewSQLiteLinkRepo(newTestDB(t))
	ctx := context.Background()

	account := &model.LinkedAccount{
		DiscordID:   "123456789012345678",
		GitHubLogin: "octocat",
		ValidatedAt: time.Now(),
	}
	if err := repo.Upsert(ctx, account); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	found, err := repo.FindByDiscordID(ctx, account.DiscordID)
	if err != nil {
		t.Fatalf("FindByDiscordID() error = %v", err)
	}
	if found == nil {
		t.Fatal("FindByDiscordID() = nil, want account")
	}
	if found.GitHubLogin != "octocat" {
		t.Errorf("GitHubLogin = %q, want %q", found.GitHubLogin, "octocat")
	}
}

func TestSQLiteLinkRepo_UpsertReplacesExisting(t *testing.T) {
	repo := NewSQLiteLinkRepo(newTestDB(t))
	ctx := context.Background()

	discordID := "123456789012345678"
	for _, login := range []string{"old-login", "new-login"} {
		if err := repo.Upsert(ctx, &model.LinkedAccount{
			DiscordID:   discordID,
			GitHubLogin: login,
			ValidatedAt: time.Now(),
		}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", login, err)
		}
	}

	found, err := repo.FindByDiscordID(ctx, discordID)
	if err != nil {
		t.Fatalf("FindByDiscordID() error = %v", err)
	}
	if found.GitHubLogin != "new-login" {
		t.Errorf("GitHubLogin = %q, want %q", found.GitHubLogin, "new-login")
	}
}

func TestSQLiteLinkRepo_FindMissingReturnsNil(t *testing.T) {
	repo := NewSQLiteLinkRepo(newTestDB(t))

	found, err := repo.FindByDiscordID(context.Background(), "999999999999999999")
	if err != nil {
		t.Fatalf("FindByDiscordID() error = %v", err)
	}
	if found != nil {
		t.Errorf("FindByDiscordID() = %+v, want nil", found)
	}
}

func TestSQLiteLinkRepo_Delete(t *testing.T) {
	repo := NewSQLiteLinkRepo(newTestDB(t))
	ctx := context.Background()

	account := &model.LinkedAccount{
		DiscordID:   "123456789012345678",
		GitHubLogin: "octocat",
		ValidatedAt: time.Now(),
	}
	if err := repo.Upsert(ctx, account); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Delete(ctx, account.DiscordID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	found, err := repo.FindByDiscordID(ctx, account.DiscordID)
	if err != nil {
		t.Fatalf("FindByDiscordID() error = %v", err)
	}
	if found != nil {
		t.Error("account still found after Delete()")
	}
}

// --- SQLiteWorkLogRepo ---

func TestSQLiteWorkLogRepo_CreateAndListRecent(t *testing.T) {
	repo := NewSQLiteWorkLogRepo(newTestDB(t))
	ctx := context.Background()

	discordID := "123456789012345678"
	base := time.Now().Add(-1 * time.Hour)
	for i := 0; i < 3; i++ {
		log := &model.WorkLog{
			ID:        []string{"log-1", "log-2", "log-3"}[i],
			DiscordID: discordID,
			CommitSHA: "abc1234",
			Hours:     float64(i + 1),
			LoggedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, log); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	logs, err := repo.ListRecent(ctx, discordID, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	// 新しい順
	if logs[0].ID != "log-3" || logs[1].ID != "log-2" {
		t.Errorf("order = [%s, %s], want [log-3, log-2]", logs[0].ID, logs[1].ID)
	}
}

func TestSQLiteWorkLogRepo_ListRecentOtherUserIsEmpty(t *testing.T) {
	repo := NewSQLiteWorkLogRepo(newTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &model.WorkLog{
		ID:        "log-1",
		DiscordID: "123456789012345678",
		CommitSHA: "abc1234",
		Hours:     2,
		LoggedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	logs, err := repo.ListRecent(ctx, "876543210987654321", 10)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("len(logs) = %d, want 0", len(logs))
	}
}

func TestSQLiteWorkLogRepo_ListAllOrderedAscending(t *testing.T) {
	repo := NewSQLiteWorkLogRepo(newTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-1 * time.Hour)
	for i, id := range []string{"log-b", "log-a"} {
		if err := repo.Create(ctx, &model.WorkLog{
			ID:        id,
			DiscordID: "123456789012345678",
			CommitSHA: "abc1234",
			Hours:     1,
			LoggedAt:  base.Add(time.Duration(1-i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	logs, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	if !logs[0].LoggedAt.Before(logs[1].LoggedAt) {
		t.Error("ListAll() is not ordered by logged_at ascending")
	}
}
