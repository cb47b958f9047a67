package services

import (
	"strings"

	"github.com/storeit/backend/internal/docstore"
)

const DefaultSort = "$createdAt-desc"

// ListFilter narrows a file listing. The visibility scope is applied on top
// of it unconditionally.
type ListFilter struct {
	Types      []FileType
	SearchText string
	Sort       string
	Limit      int
}

var sortFields = map[string]string{
	"$createdAt": "created_at",
	"$updatedAt": "updated_at",
	"name":       "name",
	"size":       "size",
}

// sortQuery turns "field-direction" into an order term, falling back to
// newest first for anything it does not recognise.
func sortQuery(sort string) docstore.Query {
	field, direction, ok := strings.Cut(sort, "-")
	column, known := sortFields[field]
	if !ok || !known || (direction != "asc" && direction != "desc") {
		return docstore.OrderDesc("created_at")
	}
	if direction == "asc" {
		return docstore.OrderAsc(column)
	}
	return docstore.OrderDesc(column)
}

// visibilityScope matches files the user owns or was given access to.
func visibilityScope(user *User) docstore.Query {
	return docstore.Or(
		docstore.Equal("owner", user.ID),
		docstore.Includes("users", user.Email),
	)
}

func listQueries(user *User, filter ListFilter) []docstore.Query {
	queries := []docstore.Query{visibilityScope(user)}

	if len(filter.Types) > 0 {
		values := make([]any, 0, len(filter.Types))
		for _, t := range filter.Types {
			values = append(values, string(t))
		}
		queries = append(queries, docstore.Equal("type", values...))
	}
	if search := strings.TrimSpace(filter.SearchText); search != "" {
		queries = append(queries, docstore.Contains("name", search))
	}

	queries = append(queries, sortQuery(filter.Sort))
	if filter.Limit > 0 {
		queries = append(queries, docstore.Limit(filter.Limit))
	}
	return queries
}
