package docstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fileDoc struct {
	ID        string    `doc:"id" validate:"required"`
	Name      string    `doc:"name" validate:"required"`
	Size      int64     `doc:"size" validate:"gte=0"`
	Users     []string  `doc:"users"`
	CreatedAt time.Time `doc:"created_at"`
}

func TestDecodeStoredDocument(t *testing.T) {
	store := setupStore(t)
	createFile(t, store, "f1", "a.pdf", "u1", []string{"bob@x.com", "carol@x.com"})

	doc, err := store.Get(context.Background(), "files", "f1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	var out fileDoc
	if err := Decode(doc, &out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff([]string{"bob@x.com", "carol@x.com"}, out.Users); diff != "" {
		t.Errorf("unexpected users (-want +got):\n%s", diff)
	}
	if out.Size != 10 {
		t.Errorf("expected size 10, got %d", out.Size)
	}
	if out.CreatedAt.IsZero() {
		t.Error("expected created_at to decode")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr string
	}{
		{
			name: "string time and json list",
			doc: Document{
				"id": "x", "name": "n", "size": int64(1),
				"users": `["a@x.com"]`, "created_at": "2024-05-01T10:00:00Z",
			},
		},
		{
			name: "sqlite time layout and empty list",
			doc: Document{
				"id": "x", "name": "n", "users": "",
				"created_at": "2024-05-01 10:00:00.123+00:00",
			},
		},
		{
			name:    "missing required field",
			doc:     Document{"id": "x"},
			wantErr: "fileDoc.Name",
		},
		{
			name:    "garbage list",
			doc:     Document{"id": "x", "name": "n", "users": "{not json"},
			wantErr: "decode list",
		},
		{
			name:    "garbage time",
			doc:     Document{"id": "x", "name": "n", "created_at": "yesterday"},
			wantErr: "unrecognized time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out fileDoc
			err := Decode(tt.doc, &out)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
