package store

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var errEmptyOr = errors.New("or filter requires at least one predicate")

type filterKind int

const (
	filterEq filterKind = iota
	filterNotNull
	filterOr
)

// Filter is a predicate on a single table: eq, not-is-null, or a disjunction of filters.
type Filter struct {
	kind     filterKind
	column   string
	value    any
	children []Filter
}

func Eq(column string, value any) Filter {
	return Filter{kind: filterEq, column: column, value: value}
}

func NotNull(column string) Filter {
	return Filter{kind: filterNotNull, column: column}
}

func Or(filters ...Filter) Filter {
	return Filter{kind: filterOr, children: filters}
}

// Published is the public visibility gate.
func Published() Filter {
	return Eq("published", true)
}

type Order struct {
	Column    string
	Desc      bool
	NullsLast bool
}

func Asc(column string) Order {
	return Order{Column: column}
}

func DescNullsLast(column string) Order {
	return Order{Column: column, Desc: true, NullsLast: true}
}

// Query describes a single-table read: table, columns, filters, ordering, limit.
type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Orders  []Order
	Limit   int
}

func From(table string, columns ...string) Query {
	return Query{Table: table, Columns: columns}
}

func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

func (q Query) OrderBy(orders ...Order) Query {
	q.Orders = append(append([]Order(nil), q.Orders...), orders...)
	return q
}

func (q Query) Take(limit int) Query {
	q.Limit = limit
	return q
}

// Build renders the query to SQL with $n placeholders.
func (q Query) Build() (string, []any, error) {
	if !identifierPattern.MatchString(q.Table) {
		return "", nil, fmt.Errorf("invalid table %q", q.Table)
	}
	columns := "*"
	if len(q.Columns) > 0 {
		for _, column := range q.Columns {
			if !identifierPattern.MatchString(column) {
				return "", nil, fmt.Errorf("invalid column %q", column)
			}
		}
		columns = strings.Join(q.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, q.Table)

	var args []any
	if len(q.Filters) > 0 {
		parts := make([]string, 0, len(q.Filters))
		for _, filter := range q.Filters {
			part, err := filter.render(&args)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, part)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(q.Orders) > 0 {
		parts := make([]string, 0, len(q.Orders))
		for _, order := range q.Orders {
			if !identifierPattern.MatchString(order.Column) {
				return "", nil, fmt.Errorf("invalid order column %q", order.Column)
			}
			part := order.Column
			if order.Desc {
				part += " DESC"
			} else {
				part += " ASC"
			}
			if order.NullsLast {
				part += " NULLS LAST"
			}
			parts = append(parts, part)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args, nil
}

func (f Filter) render(args *[]any) (string, error) {
	switch f.kind {
	case filterEq:
		if !identifierPattern.MatchString(f.column) {
			return "", fmt.Errorf("invalid filter column %q", f.column)
		}
		*args = append(*args, f.value)
		return fmt.Sprintf("%s = $%d", f.column, len(*args)), nil
	case filterNotNull:
		if !identifierPattern.MatchString(f.column) {
			return "", fmt.Errorf("invalid filter column %q", f.column)
		}
		return f.column + " IS NOT NULL", nil
	case filterOr:
		if len(f.children) == 0 {
			return "", errEmptyOr
		}
		parts := make([]string, 0, len(f.children))
		for _, child := range f.children {
			part, err := child.render(args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	default:
		return "", fmt.Errorf("unknown filter kind %d", f.kind)
	}
}
