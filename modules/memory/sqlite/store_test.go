package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/almond/internal/memory"
	"github.com/flemzord/almond/modules/memory/sqlite"
)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), sqlite.Config{
		Path: filepath.Join(t.TempDir(), "memory.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func frag(conv, content string, at time.Time) memory.Fragment {
	return memory.Fragment{
		ConversationID: conv,
		Role:           memory.RoleUser,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := sqlite.Open(context.Background(), sqlite.Config{}); err == nil {
		t.Fatal("expected error without path")
	}
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "memory.db")
	ctx := context.Background()

	db, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := db.Short().Insert(ctx, frag("g1", "persisted", time.Now())); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db.Close() }()

	got, err := db.Short().List(ctx, "g1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Content != "persisted" {
		t.Errorf("after reopen = %+v", got)
	}
}

func TestShortStore_InsertFindList(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	s := db.Short()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.Insert(ctx, frag("g1", "Alice likes Green Tea", base))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if first.ID == "" || first.Tier != memory.TierShort {
		t.Errorf("inserted = %+v, want ID and short tier", first)
	}
	mustInsert(t, s, frag("g1", "Bob prefers coffee", base.Add(time.Second)))
	mustInsert(t, s, frag("g2", "Alice in another group drinks tea", base.Add(2*time.Second)))
	mustInsert(t, s, frag("g1", "小明记得绿茶", base.Add(3*time.Second)))

	tests := []struct {
		name     string
		conv     string
		keywords []string
		want     []string
	}{
		{"case-insensitive", "g1", []string{"alice", "TEA"}, []string{"Alice likes Green Tea"}},
		{"all keywords required", "g1", []string{"alice", "coffee"}, nil},
		{"scoped to conversation", "g2", []string{"tea"}, []string{"Alice in another group drinks tea"}},
		{"han substring", "g1", []string{"绿茶"}, []string{"小明记得绿茶"}},
		{"no keywords lists all", "g1", nil, []string{"Alice likes Green Tea", "Bob prefers coffee", "小明记得绿茶"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(ctx, tt.conv, tt.keywords)
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			if contents(got) != strings.Join(tt.want, "|") {
				t.Errorf("Find = %q, want %q", contents(got), strings.Join(tt.want, "|"))
			}
		})
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("List(all) = %d fragments, want 4", len(all))
	}
	if !all[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", all[0].CreatedAt, base)
	}
}

func TestShortStore_Delete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	f := mustInsert(t, db.Short(), frag("g1", "to delete", time.Now()))

	if err := db.Short().Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := db.Short().Delete(ctx, f.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}

func TestShortStore_Staging(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	s := db.Short()

	for i, content := range []string{"one", "two", "three"} {
		_, n, err := s.Stage(ctx, frag("g1", content, time.Now()))
		if err != nil {
			t.Fatalf("Stage: %v", err)
		}
		if n != i+1 {
			t.Errorf("staged count = %d, want %d", n, i+1)
		}
	}
	if _, n, _ := s.Stage(ctx, frag("g2", "other", time.Now())); n != 1 {
		t.Errorf("g2 staged count = %d, want 1", n)
	}

	if main, _ := s.List(ctx, "g1"); len(main) != 0 {
		t.Errorf("staged fragments leaked into List: %+v", main)
	}
	staged, err := s.Staged(ctx, "g1")
	if err != nil {
		t.Fatalf("Staged: %v", err)
	}
	if contents(staged) != "one|two|three" {
		t.Errorf("Staged = %q", contents(staged))
	}
	for _, f := range staged {
		if f.Tier != memory.TierStaged {
			t.Errorf("staged fragment tier = %q, want staged", f.Tier)
		}
	}

	// Unstage removes one staged fragment and never touches the main store.
	if err := s.Delete(ctx, staged[0].ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("Delete(staged id) = %v, want ErrNotFound", err)
	}
	if err := s.Unstage(ctx, staged[0].ID); err != nil {
		t.Fatalf("Unstage: %v", err)
	}
	if err := s.Unstage(ctx, staged[0].ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("second Unstage = %v, want ErrNotFound", err)
	}
	if left, _ := s.Staged(ctx, "g1"); contents(left) != "two|three" {
		t.Errorf("Staged after Unstage = %q", contents(left))
	}

	if err := s.ClearStaged(ctx, "g1"); err != nil {
		t.Fatalf("ClearStaged: %v", err)
	}
	if staged, _ := s.Staged(ctx, "g1"); len(staged) != 0 {
		t.Errorf("Staged after clear = %d", len(staged))
	}
	if all, _ := s.Staged(ctx, ""); len(all) != 1 {
		t.Errorf("other conversation's staging touched: %d left", len(all))
	}
}

func TestLongStore_MoreLikeThis(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	l := db.Long()
	base := time.Now()

	if err := l.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	stored, err := l.BulkInsert(ctx, []memory.Fragment{
		frag("g1", "The team planned a hiking trip to the mountains in October", base),
		frag("g1", "Budget review for the quarterly marketing campaign", base.Add(time.Second)),
		frag("g2", "Hiking trip photos from the mountains", base.Add(2*time.Second)),
		frag("g1", "上次我们去爬山的时候下雨了", base.Add(3*time.Second)),
	})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if len(stored) != 4 || stored[0].ID == "" || stored[0].Tier != memory.TierLong {
		t.Fatalf("BulkInsert = %+v", stored)
	}

	tests := []struct {
		name  string
		conv  string
		like  string
		limit int
		want  string
	}{
		{"latin terms", "g1", "hiking trip?", 10, "The team planned a hiking trip to the mountains in October"},
		{"scoped", "g2", "hiking", 10, "Hiking trip photos from the mountains"},
		{"han bigrams", "g1", "爬山", 10, "上次我们去爬山的时候下雨了"},
		{"no match", "g1", "spaceship", 10, ""},
		{"operators stay literal", "g1", `budget AND "OR" NEAR(x)`, 10, "Budget review for the quarterly marketing campaign"},
		{"zero limit", "g1", "hiking", 0, ""},
		{"empty like", "g1", "  ", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.MoreLikeThis(ctx, tt.conv, tt.like, 16, tt.limit)
			if err != nil {
				t.Fatalf("MoreLikeThis: %v", err)
			}
			if contents(got) != tt.want {
				t.Errorf("MoreLikeThis = %q, want %q", contents(got), tt.want)
			}
		})
	}
}

func TestLongStore_DeleteListIndices(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	l := db.Long()

	stored, err := l.BulkInsert(ctx, []memory.Fragment{frag("g1", "long fact about rockets", time.Now())})
	if err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if err := db.Short().Delete(ctx, stored[0].ID); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("short Delete of long fragment = %v, want ErrNotFound", err)
	}
	if err := l.Delete(ctx, stored[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := l.MoreLikeThis(ctx, "g1", "rockets", 16, 10); len(got) != 0 {
		t.Errorf("deleted fragment still indexed: %+v", got)
	}
	if got, _ := l.List(ctx, "g1"); len(got) != 0 {
		t.Errorf("List after delete = %+v", got)
	}

	idx, err := l.Indices(ctx)
	if err != nil || len(idx) != 1 || idx[0] != "fragments" {
		t.Errorf("Indices = %v, %v", idx, err)
	}
}

func TestRouter_LoadAllOverSQLite(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()
	router, err := memory.NewRouter(db.Short(), db.Long(), memory.RouterConfig{Threshold: 20, BatchSize: 1})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}

	for _, content := range []string{"short one", strings.Repeat("long content ", 5), "short one"} {
		if _, _, err := router.Store(ctx, "g1", memory.RoleUser, content); err != nil {
			t.Fatalf("Store: %v", err)
		}
	}

	byConv, err := router.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got := len(byConv["g1"]); got != 2 {
		t.Errorf("LoadAll(g1) = %d fragments, want 2 after dedup", got)
	}
}

func mustInsert(t *testing.T, s *sqlite.ShortStore, f memory.Fragment) memory.Fragment {
	t.Helper()
	out, err := s.Insert(context.Background(), f)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return out
}

func contents(fs []memory.Fragment) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Content
	}
	return strings.Join(parts, "|")
}
