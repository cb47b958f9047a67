package docstore

import "fmt"

type queryOp int

const (
	opEqual queryOp = iota
	opContains
	opIncludes
	opOr
	opLimit
	opOrder
)

// Query is one filter, ordering or limit term. Terms passed together to
// List are combined with AND.
type Query struct {
	op       queryOp
	field    string
	values   []any
	children []Query
	limit    int
	desc     bool
}

// Equal matches documents whose field equals any of values.
func Equal(field string, values ...any) Query {
	return Query{op: opEqual, field: field, values: values}
}

// Contains matches a case-insensitive substring of a string field.
func Contains(field, substr string) Query {
	return Query{op: opContains, field: field, values: []any{substr}}
}

// Includes matches documents whose list field has value as an element.
func Includes(field, value string) Query {
	return Query{op: opIncludes, field: field, values: []any{value}}
}

// Or matches documents satisfying at least one of the filter queries.
func Or(queries ...Query) Query {
	return Query{op: opOr, children: queries}
}

func Limit(n int) Query {
	return Query{op: opLimit, limit: n}
}

func OrderAsc(field string) Query {
	return Query{op: opOrder, field: field}
}

func OrderDesc(field string) Query {
	return Query{op: opOrder, field: field, desc: true}
}

func (q Query) isFilter() bool {
	switch q.op {
	case opEqual, opContains, opIncludes, opOr:
		return true
	default:
		return false
	}
}

func (q Query) String() string {
	switch q.op {
	case opEqual:
		return fmt.Sprintf("equal(%s, %v)", q.field, q.values)
	case opContains:
		return fmt.Sprintf("contains(%s, %v)", q.field, q.values[0])
	case opIncludes:
		return fmt.Sprintf("includes(%s, %v)", q.field, q.values[0])
	case opOr:
		return fmt.Sprintf("or%v", q.children)
	case opLimit:
		return fmt.Sprintf("limit(%d)", q.limit)
	case opOrder:
		if q.desc {
			return fmt.Sprintf("orderDesc(%s)", q.field)
		}
		return fmt.Sprintf("orderAsc(%s)", q.field)
	default:
		return "unknown"
	}
}
