package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps grid column ids to database column names.
	// Columns not in the map use their original names.
	ColumnMapping map[string]string

	// ColumnExpressions maps grid column ids to SQL expressions.
	// Takes precedence over ColumnMapping.
	// Use for computed columns or complex transformations.
	ColumnExpressions map[string]string
}

// SQLEncoder converts a filter model to a parameterized WHERE clause body
// understood by DuckDB and PostgreSQL. Operands are never inlined: every
// value becomes a $n placeholder.
type SQLEncoder struct {
	opts EncoderOptions
}

// NewSQLEncoder creates a new SQL encoder.
// If opts is nil, default options are used.
func NewSQLEncoder(opts *EncoderOptions) *SQLEncoder {
	if opts == nil {
		opts = &EncoderOptions{}
	}
	return &SQLEncoder{opts: *opts}
}

// Column returns the SQL expression for a grid column id.
func (e *SQLEncoder) Column(colID string) string {
	if expr, ok := e.opts.ColumnExpressions[colID]; ok {
		return "(" + expr + ")"
	}
	if name, ok := e.opts.ColumnMapping[colID]; ok {
		return quoteIdentifier(name)
	}
	return quoteIdentifier(colID)
}

// Encode converts a model to a WHERE clause body and its arguments.
// Returns the condition portion without "WHERE" keyword, or an empty string
// if the model filters nothing. Columns are encoded in sorted order.
func (e *SQLEncoder) Encode(m Model) (string, []any, error) {
	if m.Empty() {
		return "", nil, nil
	}

	b := &sqlBuilder{next: 1}
	var parts []string
	for _, colID := range m.Columns() {
		sql, err := b.column(e.Column(colID), m[colID])
		if err != nil {
			return "", nil, fmt.Errorf("column %q: %w", colID, err)
		}
		if sql != "" {
			parts = append(parts, sql)
		}
	}

	switch len(parts) {
	case 0:
		return "", nil, nil
	case 1:
		return parts[0], b.args, nil
	}
	return "(" + strings.Join(parts, ") AND (") + ")", b.args, nil
}

// sqlBuilder accumulates placeholder arguments while encoding.
type sqlBuilder struct {
	next int
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	p := "$" + strconv.Itoa(b.next)
	b.next++
	return p
}

func (b *sqlBuilder) column(col string, f ColumnFilter) (string, error) {
	if f.FilterType == TypeSet {
		return b.set(col, f.Values), nil
	}
	if !f.Combined() {
		return b.condition(col, f)
	}

	if f.Operator == OperatorOr {
		for _, c := range f.Conditions {
			// An empty condition matches everything, and so does the OR.
			if c.Type == Empty {
				return "", nil
			}
		}
	}

	var parts []string
	for _, c := range f.Conditions {
		sql, err := b.condition(col, c)
		if err != nil {
			return "", err
		}
		if sql == "" {
			continue
		}
		parts = append(parts, "("+sql+")")
	}
	return strings.Join(parts, " "+string(f.Operator)+" "), nil
}

func (b *sqlBuilder) condition(col string, f ColumnFilter) (string, error) {
	switch f.Type {
	case Empty:
		return "", nil
	case Blank:
		if f.FilterType == TypeText {
			return col + " IS NULL OR " + col + " = ''", nil
		}
		return col + " IS NULL", nil
	case NotBlank:
		if f.FilterType == TypeText {
			return col + " IS NOT NULL AND " + col + " <> ''", nil
		}
		return col + " IS NOT NULL", nil
	}

	switch f.FilterType {
	case TypeText:
		return b.text(col, f)
	case TypeNumber:
		return b.compare(col, f.Type, f.Filter, f.FilterTo)
	case TypeDate:
		from, err := parseDate(f.DateFrom)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
		var to any
		if f.Type == InRange {
			t, err := parseDate(f.DateTo)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidModel, err)
			}
			to = t
		}
		return b.compare(col, f.Type, from, to)
	}
	return "", fmt.Errorf("%w: filterType %q", ErrUnsupported, f.FilterType)
}

func (b *sqlBuilder) compare(col string, cond Condition, from, to any) (string, error) {
	switch cond {
	case Equals:
		return col + " = " + b.arg(from), nil
	case NotEqual:
		return col + " IS NULL OR " + col + " <> " + b.arg(from), nil
	case LessThan:
		return col + " < " + b.arg(from), nil
	case LessThanOrEqual:
		return col + " <= " + b.arg(from), nil
	case GreaterThan:
		return col + " > " + b.arg(from), nil
	case GreaterThanOrEqual:
		return col + " >= " + b.arg(from), nil
	case InRange:
		return col + " > " + b.arg(from) + " AND " + col + " < " + b.arg(to), nil
	}
	return "", fmt.Errorf("%w: condition %q", ErrUnsupported, cond)
}

// text encodes case-insensitive text conditions with ILIKE. Wildcards in
// the operand are escaped.
func (b *sqlBuilder) text(col string, f ColumnFilter) (string, error) {
	s, _ := f.Filter.(string)
	pattern := escapeLike(s)
	ilike := func(p string) string {
		return col + " ILIKE " + b.arg(p) + ` ESCAPE '\'`
	}

	switch f.Type {
	case Equals:
		return ilike(pattern), nil
	case NotEqual:
		return col + " IS NULL OR NOT (" + ilike(pattern) + ")", nil
	case Contains:
		return ilike("%" + pattern + "%"), nil
	case NotContains:
		return col + " IS NULL OR NOT (" + ilike("%"+pattern+"%") + ")", nil
	case StartsWith:
		return ilike(pattern + "%"), nil
	case EndsWith:
		return ilike("%" + pattern), nil
	}
	return "", fmt.Errorf("%w: text condition %q", ErrUnsupported, f.Type)
}

// set encodes a set filter as IN. A nil value selects NULL cells and no
// values selects nothing.
func (b *sqlBuilder) set(col string, values []any) string {
	var placeholders []string
	var withNull bool
	for _, v := range values {
		if v == nil {
			withNull = true
			continue
		}
		placeholders = append(placeholders, b.arg(v))
	}

	switch {
	case len(placeholders) == 0 && withNull:
		return col + " IS NULL"
	case len(placeholders) == 0:
		return "1 = 0"
	}

	in := col + " IN (" + strings.Join(placeholders, ", ") + ")"
	if withNull {
		return in + " OR " + col + " IS NULL"
	}
	return in
}

// escapeLike escapes LIKE wildcards and the escape character itself.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// quoteIdentifier returns a quoted identifier if needed.
// DuckDB and PostgreSQL both use double quotes for identifiers.
func quoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// QuoteIdentifier is the exported form of quoteIdentifier for query builders
// outside this package.
func QuoteIdentifier(name string) string {
	return quoteIdentifier(name)
}

// needsQuoting returns true if the identifier needs quoting.
// Mixed-case names are quoted so that both dialects keep their case.
func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}

	// Check first character (must be lower-case letter or underscore)
	c := name[0]
	if !isLower(c) && c != '_' {
		return true
	}

	// Check remaining characters (lower-case letters, digits, or underscore)
	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLower(c) && !isDigit(c) && c != '_' {
			return true
		}
	}

	// Check for reserved words (simplified list)
	upper := strings.ToUpper(name)
	switch upper {
	case "SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "TRUE", "FALSE",
		"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TABLE", "INDEX",
		"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "AS", "IN", "IS", "LIKE",
		"BETWEEN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END", "ORDER", "BY",
		"GROUP", "HAVING", "LIMIT", "OFFSET", "UNION", "EXCEPT", "INTERSECT",
		"ALL", "DISTINCT", "VALUES", "SET", "INTO", "PRIMARY", "KEY", "FOREIGN",
		"REFERENCES", "CONSTRAINT", "DEFAULT", "CHECK", "UNIQUE", "ASC", "DESC",
		"NULLS", "FIRST", "LAST", "CAST", "INTERVAL", "DATE", "TIME", "TIMESTAMP",
		"USER", "ILIKE", "ESCAPE":
		return true
	}

	return false
}

// isLower returns true if c is an ASCII lower-case letter.
func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

// isDigit returns true if c is an ASCII digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
