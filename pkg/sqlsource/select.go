package sqlsource

import (
	"fmt"
	"strings"
)

// SelectBuilder constructs a SELECT statement with postgres placeholders.
// Conditions use "?" which Build rewrites to $1, $2, ... in order.
type SelectBuilder struct {
	table   string
	columns []string
	where   []string
	args    []interface{}
	orderBy []string
	limit   int
	offset  int
}

func NewSelect(cols ...string) *SelectBuilder {
	return &SelectBuilder{columns: cols}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

// Where adds a condition joined with AND.
func (b *SelectBuilder) Where(condition string, args ...interface{}) *SelectBuilder {
	b.where = append(b.where, condition)
	b.args = append(b.args, args...)
	return b
}

// WhereAny adds a parenthesized group of conditions joined with OR.
// Arguments of the group follow the order of the conditions.
func (b *SelectBuilder) WhereAny(conditions []string, args ...interface{}) *SelectBuilder {
	if len(conditions) == 0 {
		return b
	}
	b.where = append(b.where, "("+strings.Join(conditions, " OR ")+")")
	b.args = append(b.args, args...)
	return b
}

func (b *SelectBuilder) OrderBy(order ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, order...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

func (b *SelectBuilder) Offset(offset int) *SelectBuilder {
	b.offset = offset
	return b
}

// Build returns the statement and its arguments. It fails when the table is
// missing or the placeholder count differs from the argument count.
func (b *SelectBuilder) Build() (string, []interface{}, error) {
	if b.table == "" {
		return "", nil, fmt.Errorf("select: table is required")
	}
	cols := "*"
	if len(b.columns) > 0 {
		cols = strings.Join(b.columns, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	placeholders := 0
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		parts := strings.Split(strings.Join(b.where, " AND "), "?")
		for i, part := range parts {
			sb.WriteString(part)
			if i < len(parts)-1 {
				placeholders++
				fmt.Fprintf(&sb, "$%d", placeholders)
			}
		}
	}
	if placeholders != len(b.args) {
		return "", nil, fmt.Errorf("select: placeholder count (%d) does not match argument count (%d)", placeholders, len(b.args))
	}

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}
	if b.offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", b.offset)
	}
	return sb.String(), b.args, nil
}
