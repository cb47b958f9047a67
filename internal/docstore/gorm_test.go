package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/storeit/backend/internal/database"
)

func setupStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return NewGormStore(db)
}

func createFile(t *testing.T, store *GormStore, id, name, owner string, users []string) Document {
	t.Helper()

	doc, err := store.Create(context.Background(), "files", id, Document{
		"name":           name,
		"type":           "document",
		"extension":      "pdf",
		"size":           int64(10),
		"url":            "http://blob/" + id,
		"bucket_file_id": "blob-" + id,
		"owner":          owner,
		"account_id":     "acct-" + owner,
		"users":          users,
	})
	if err != nil {
		t.Fatalf("failed creating %s: %v", id, err)
	}
	return doc
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	return out
}

func TestGormStoreCRUD(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created := createFile(t, store, "f1", "Report.pdf", "u1", []string{"bob@x.com"})
	if created.ID() != "f1" {
		t.Fatalf("expected id f1, got %q", created.ID())
	}
	if created["created_at"] == nil {
		t.Error("expected created_at to be set")
	}

	got, err := store.Get(ctx, "files", "f1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got["name"] != "Report.pdf" {
		t.Errorf("expected name Report.pdf, got %v", got["name"])
	}

	updated, err := store.Update(ctx, "files", "f1", Document{"name": "Final.pdf"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated["name"] != "Final.pdf" {
		t.Errorf("expected renamed document, got %v", updated["name"])
	}

	if err := store.Delete(ctx, "files", "f1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "files", "f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestGormStoreMissingDocuments(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Update(ctx, "files", "missing", Document{"name": "x"}); !IsNotFound(err) {
		t.Errorf("expected not found on update, got %v", err)
	}
	if err := store.Delete(ctx, "files", "missing"); !IsNotFound(err) {
		t.Errorf("expected not found on delete, got %v", err)
	}
}

func TestGormStoreRejectsUnsafeIdentifiers(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.List(ctx, "files; drop table files"); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected invalid collection, got %v", err)
	}
	if _, err := store.List(ctx, "files", Equal("name = name OR 1", "x")); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected invalid field, got %v", err)
	}
	if _, err := store.Create(ctx, "files", "f1", Document{"bad-key": 1}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected invalid key, got %v", err)
	}
}

func TestGormStoreList(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	createFile(t, store, "d", "Delta.txt", "u3", []string{`x","carol@x.com`, "ALICE@X.COM"})
	time.Sleep(2 * time.Millisecond)
	createFile(t, store, "a", "Alpha notes.txt", "u1", nil)
	time.Sleep(2 * time.Millisecond)
	createFile(t, store, "b", "beta_plan.pdf", "u2", []string{"al_ice@x.com"})
	time.Sleep(2 * time.Millisecond)
	createFile(t, store, "c", "Gamma.pdf", "u2", []string{"alice@x.com", "carol@x.com"})

	tests := []struct {
		name    string
		queries []Query
		want    []string
	}{
		{
			name:    "equal with order",
			queries: []Query{Equal("owner", "u2"), OrderAsc("name")},
			want:    []string{"c", "b"},
		},
		{
			name:    "equal with several values",
			queries: []Query{Equal("id", "a", "c"), OrderAsc("id")},
			want:    []string{"a", "c"},
		},
		{
			name:    "contains is case-insensitive",
			queries: []Query{Contains("name", "ALPHA")},
			want:    []string{"a"},
		},
		{
			name:    "contains treats underscore literally",
			queries: []Query{Contains("name", "a_p")},
			want:    []string{"b"},
		},
		{
			name:    "includes matches whole elements",
			queries: []Query{Includes("users", "alice@x.com")},
			want:    []string{"c"},
		},
		{
			name:    "includes does not treat underscore as wildcard",
			queries: []Query{Includes("users", "al_ce@x.com")},
			want:    []string{},
		},
		{
			name:    "includes ignores quoted fragments inside an element",
			queries: []Query{Includes("users", "carol@x.com")},
			want:    []string{"c"},
		},
		{
			name:    "includes is case-sensitive",
			queries: []Query{Includes("users", "ALICE@X.COM")},
			want:    []string{"d"},
		},
		{
			name:    "or combined with another filter",
			queries: []Query{Or(Equal("owner", "u1"), Includes("users", "alice@x.com")), Contains("name", "gamma")},
			want:    []string{"c"},
		},
		{
			name:    "single child or still narrows",
			queries: []Query{Equal("owner", "u2"), Or(Equal("id", "a"))},
			want:    []string{},
		},
		{
			name:    "order desc with limit",
			queries: []Query{OrderDesc("created_at"), Limit(2)},
			want:    []string{"c", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := store.List(ctx, "files", tt.queries...)
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(docs)); diff != "" {
				t.Errorf("unexpected ids (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGormStoreListInvalidQueries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, q := range [][]Query{
		{Or()},
		{Limit(0)},
		{Equal("owner")},
		{Or(Limit(3))},
	} {
		if _, err := store.List(ctx, "files", q...); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("expected ErrInvalidQuery for %v, got %v", q, err)
		}
	}
}
