package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps each collection in its own table. List fields are stored as
// JSON text so the same schema works on Postgres and SQLite.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, collection, id string, fields Document) (Document, error) {
	if !validIdentifier(collection) || id == "" {
		return nil, ErrInvalidQuery
	}
	row, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	row["id"] = id
	row["created_at"] = now
	row["updated_at"] = now

	if err := s.db.WithContext(ctx).Table(collection).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return s.Get(ctx, collection, id)
}

func (s *GormStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if !validIdentifier(collection) {
		return nil, ErrInvalidQuery
	}
	var rows []map[string]interface{}
	err := s.db.WithContext(ctx).
		Table(collection).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", collection, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return Document(rows[0]), nil
}

func (s *GormStore) List(ctx context.Context, collection string, queries ...Query) ([]Document, error) {
	if !validIdentifier(collection) {
		return nil, ErrInvalidQuery
	}
	tx := s.db.WithContext(ctx).Table(collection)
	for _, q := range queries {
		switch {
		case q.isFilter():
			expr, err := s.buildFilter(q)
			if err != nil {
				return nil, err
			}
			tx = tx.Where(expr)
		case q.op == opLimit:
			if q.limit <= 0 {
				return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
			}
			tx = tx.Limit(q.limit)
		case q.op == opOrder:
			if !validIdentifier(q.field) {
				return nil, fmt.Errorf("%w: field %q", ErrInvalidQuery, q.field)
			}
			tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: q.field}, Desc: q.desc})
		}
	}

	var rows []map[string]interface{}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Document(row))
	}
	return docs, nil
}

func (s *GormStore) Update(ctx context.Context, collection, id string, fields Document) (Document, error) {
	if !validIdentifier(collection) {
		return nil, ErrInvalidQuery
	}
	row, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	delete(row, "id")
	delete(row, "created_at")
	row["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).
		Table(collection).
		Where(clause.Eq{Column: clause.Column{Name: "id"}, Value: id}).
		Updates(row)
	if res.Error != nil {
		return nil, fmt.Errorf("update %s: %w", collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, collection, id)
}

func (s *GormStore) Delete(ctx context.Context, collection, id string) error {
	if !validIdentifier(collection) {
		return ErrInvalidQuery
	}
	res := s.db.WithContext(ctx).Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: collection}, id)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", collection, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) buildFilter(q Query) (clause.Expression, error) {
	if q.op != opOr && !validIdentifier(q.field) {
		return nil, fmt.Errorf("%w: field %q", ErrInvalidQuery, q.field)
	}
	column := clause.Column{Name: q.field}

	switch q.op {
	case opEqual:
		if len(q.values) == 0 {
			return nil, fmt.Errorf("%w: equal(%s) needs a value", ErrInvalidQuery, q.field)
		}
		return clause.IN{Column: column, Values: q.values}, nil
	case opContains:
		needle := strings.ToLower(fmt.Sprint(q.values[0]))
		return clause.Expr{
			SQL:  "LOWER(?) LIKE ? ESCAPE '!'",
			Vars: []interface{}{column, "%" + escapeLike(needle) + "%"},
		}, nil
	case opIncludes:
		return s.includes(column, fmt.Sprint(q.values[0]))
	case opOr:
		if len(q.children) == 0 {
			return nil, fmt.Errorf("%w: empty or", ErrInvalidQuery)
		}
		exprs := make([]clause.Expression, 0, len(q.children))
		for _, child := range q.children {
			if !child.isFilter() {
				return nil, fmt.Errorf("%w: %s inside or", ErrInvalidQuery, child)
			}
			expr, err := s.buildFilter(child)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		// A single-element OrConditions would be joined to the previous
		// condition with OR, widening the result.
		if len(exprs) == 1 {
			return exprs[0], nil
		}
		return clause.Or(exprs...), nil
	}
	return nil, ErrInvalidQuery
}

// includes matches rows whose JSON array column holds value as a whole,
// case-sensitive element.
func (s *GormStore) includes(column clause.Column, value string) (clause.Expression, error) {
	if s.db.Dialector.Name() == "postgres" {
		encoded, err := json.Marshal([]string{value})
		if err != nil {
			return nil, err
		}
		return clause.Expr{
			SQL:  "CAST(? AS jsonb) @> CAST(? AS jsonb)",
			Vars: []interface{}{column, string(encoded)},
		}, nil
	}
	return clause.Expr{
		SQL:  "EXISTS (SELECT 1 FROM json_each(?) WHERE json_each.value = ?)",
		Vars: []interface{}{column, value},
	}, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func encodeFields(fields Document) (map[string]interface{}, error) {
	row := make(map[string]interface{}, len(fields)+3)
	for key, value := range fields {
		if !validIdentifier(key) {
			return nil, fmt.Errorf("%w: field %q", ErrInvalidQuery, key)
		}
		switch v := value.(type) {
		case []string:
			if v == nil {
				v = []string{}
			}
			data, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			row[key] = string(data)
		default:
			row[key] = value
		}
	}
	return row, nil
}

// IsNotFound reports whether err means the addressed document does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
