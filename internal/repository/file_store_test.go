package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/koanime/internal/model"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "users.json")
	s, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s, path
}

func testUser(id, name string) *model.User {
	return &model.User{ID: id, Username: name, PasswordHash: "hash-" + id, CreatedAt: 1700000000000}
}

func TestFileStore_CreateAndFind(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testUser("u1", "Alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.FindByUsername(ctx, "alice")
	if err != nil || got == nil {
		t.Fatalf("FindByUsername = %v, %v", got, err)
	}
	if got.ID != "u1" || got.Username != "Alice" || got.PasswordHash != "hash-u1" {
		t.Errorf("got %+v", got)
	}

	byID, err := s.FindByID(ctx, "u1")
	if err != nil || byID == nil || byID.Username != "Alice" {
		t.Errorf("FindByID = %+v, %v", byID, err)
	}

	missing, err := s.FindByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("FindByID(nope) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestFileStore_CreateRejectsDuplicateIgnoringCase(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, testUser("u1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, testUser("u2", "ALICE")); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestFileStore_UpsertReplacesEntry(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testUser("u1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Upsert(ctx, "u1", model.WatchEntry{AnimeID: 1, Episode: 3, Position: 120, UpdatedAt: 10}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(ctx, "u1", model.WatchEntry{AnimeID: 1, Episode: 4, Position: 340, UpdatedAt: 20}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.ListByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(got), got)
	}
	if got[0].Position != 340 || got[0].Episode != 4 {
		t.Errorf("entry = %+v, want the latest write", got[0])
	}
}

func TestFileStore_UpsertUnknownUser(t *testing.T) {
	s, _ := newTestFileStore(t)

	err := s.Upsert(context.Background(), "ghost", model.WatchEntry{AnimeID: 1})
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestFileStore_ListByUserIDSortedDescending(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testUser("u1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, e := range []model.WatchEntry{
		{AnimeID: 1, UpdatedAt: 100},
		{AnimeID: 2, UpdatedAt: 300},
		{AnimeID: 3, UpdatedAt: 200},
	} {
		if err := s.Upsert(ctx, "u1", e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	got, _ := s.ListByUserID(ctx, "u1")
	var order []int
	for _, e := range got {
		order = append(order, e.AnimeID)
	}
	if fmt.Sprint(order) != "[2 3 1]" {
		t.Errorf("order = %v, want [2 3 1]", order)
	}

	empty, err := s.ListByUserID(ctx, "nobody")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListByUserID(nobody) = %v, %v", empty, err)
	}
}

func TestFileStore_ConcurrentWritesAreAllApplied(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testUser("u1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 40
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Upsert(ctx, "u1", model.WatchEntry{AnimeID: i, UpdatedAt: int64(i)}); err != nil {
				t.Errorf("Upsert(%d): %v", i, err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.ListByUserID(ctx, "u1")
	if len(got) != n {
		t.Errorf("len = %d, want %d", len(got), n)
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	s, path := newTestFileStore(t)
	ctx := context.Background()
	if err := s.Create(ctx, testUser("u1", "alice")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Upsert(ctx, "u1", model.WatchEntry{AnimeID: 5, Episode: 2, UpdatedAt: 1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"users"`) || !strings.Contains(string(data), `"watchHistory"`) {
		t.Errorf("unexpected document layout:\n%s", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}

	reopened, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer reopened.Close()

	users, err := reopened.List(ctx)
	if err != nil || len(users) != 1 || len(users[0].WatchHistory) != 1 {
		t.Errorf("List = %+v, %v", users, err)
	}
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	s, path := newTestFileStore(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := s.FindByUsername(context.Background(), "alice"); err == nil {
		t.Error("expected decode error")
	}
	if err := s.Create(context.Background(), testUser("u1", "alice")); err == nil {
		t.Error("expected decode error on write")
	}
}

func TestFileStore_WriteAfterClose(t *testing.T) {
	s, _ := newTestFileStore(t)
	s.Close()

	if err := s.Create(context.Background(), testUser("u1", "alice")); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("err = %v, want ErrStoreClosed", err)
	}
}
