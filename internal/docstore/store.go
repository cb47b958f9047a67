// Package docstore is the document-store client: schemaless field bags
// grouped in collections, addressed by id, filtered with Query values.
package docstore

import (
	"context"
	"errors"
	"regexp"
)

// Document is a loosely typed record as it comes out of the store. System
// fields are "id", "created_at" and "updated_at".
type Document map[string]any

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidQuery = errors.New("invalid query")
)

type Store interface {
	Create(ctx context.Context, collection, id string, fields Document) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string, queries ...Query) ([]Document, error)
	Update(ctx context.Context, collection, id string, fields Document) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ID returns the document id or an empty string.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}
