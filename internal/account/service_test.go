package account

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"prepstage/internal/config"
	"prepstage/internal/storage"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprintf("%v", value)
	return nil
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("miss")
	}
	return v, nil
}

func (m *memCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"},
	}
	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func TestRegisterAndLogin(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "alice", "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.ID == 0 || user.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.PasswordHash == "secret" {
		t.Fatalf("password stored in plain text")
	}

	got, err := svc.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned wrong user")
	}

	if _, err := svc.Login(ctx, "alice", "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := svc.Login(ctx, "nobody", "secret"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestRegisterValidation(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil)
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, "", "a@b.co", "pw"); err == nil {
		t.Fatalf("expected error for empty username")
	}
	if _, err := svc.RegisterUser(ctx, "bob", "not-an-email", "pw"); err == nil {
		t.Fatalf("expected error for bad email")
	}

	if _, err := svc.RegisterUser(ctx, "carol", "carol@example.com", "pw"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err := svc.RegisterUser(ctx, "carol", "other@example.com", "pw"); err == nil {
		t.Fatalf("expected error for duplicate username")
	}
}

func TestResumeTextCacheThrough(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	cache := newMemCache()
	svc := NewService(db, cache)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "dave", "dave@example.com", "pw")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	if text, err := svc.ResumeText(ctx, user.ID); err != nil || text != "" {
		t.Fatalf("expected empty resume, got %q err=%v", text, err)
	}

	if err := svc.SetResumeText(ctx, user.ID, "go developer since 2019"); err != nil {
		t.Fatalf("SetResumeText: %v", err)
	}

	// Remove the row from the db view: the cache must still serve reads.
	if _, err := db.Exec(`UPDATE users SET resume_text = 'stale' WHERE id = ?`, user.ID); err != nil {
		t.Fatalf("update: %v", err)
	}
	text, err := svc.ResumeText(ctx, user.ID)
	if err != nil {
		t.Fatalf("ResumeText: %v", err)
	}
	if text != "go developer since 2019" {
		t.Fatalf("expected cached resume, got %q", text)
	}

	// After a cache flush the db value wins and is re-cached.
	_ = cache.Del(ctx, fmt.Sprintf("resume:%d", user.ID))
	text, err = svc.ResumeText(ctx, user.ID)
	if err != nil || text != "stale" {
		t.Fatalf("expected db resume after flush, got %q err=%v", text, err)
	}
	if cached, err := cache.Get(ctx, fmt.Sprintf("resume:%d", user.ID)); err != nil || cached != "stale" {
		t.Fatalf("resume not re-cached: %q err=%v", cached, err)
	}
}

func TestInterviewSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	svc := NewService(db, nil)
	ctx := context.Background()

	user, err := svc.RegisterUser(ctx, "erin", "erin@example.com", "pw")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	session, err := svc.CreateInterviewSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("CreateInterviewSession: %v", err)
	}
	ok, err := svc.SessionBelongsToUser(ctx, session.ID, user.ID)
	if err != nil || !ok {
		t.Fatalf("session ownership check failed: ok=%v err=%v", ok, err)
	}
	ok, err = svc.SessionBelongsToUser(ctx, session.ID, user.ID+1)
	if err != nil || ok {
		t.Fatalf("foreign session should not verify")
	}

	if _, err := svc.RecordAnswer(ctx, session.ID, "q1", "a1", []byte(`{"verdict":"Good understanding"}`), false); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if _, err := svc.RecordAnswer(ctx, session.ID, "q2", "a2", nil, true); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	records, err := svc.SessionAnswers(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionAnswers: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Question != "q1" || len(records[0].Score) == 0 {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].Score != nil || !records[1].FlaggedScript {
		t.Fatalf("unexpected second record: %+v", records[1])
	}

	if err := svc.EndInterviewSession(ctx, session.ID); err != nil {
		t.Fatalf("EndInterviewSession: %v", err)
	}
	var ended sql.NullTime
	if err := db.QueryRow(`SELECT ended_at FROM interview_sessions WHERE id = ?`, session.ID).Scan(&ended); err != nil {
		t.Fatalf("query ended_at: %v", err)
	}
	if !ended.Valid {
		t.Fatalf("ended_at not set")
	}
}
