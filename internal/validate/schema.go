// Package validate checks tables against a declared column contract and
// reports every violation at once.
package validate

import (
	"fmt"
	"strings"
	"time"
)

// Type is the declared logical type of a column.
type Type string

const (
	String   Type = "string"
	Float    Type = "float"
	Int      Type = "int"
	Datetime Type = "datetime"
)

// Column declares one column of a Schema. Get returns the cell value for a
// row; a nil interface or nil pointer is a null.
type Column[T any] struct {
	Name     string
	Type     Type
	Nullable bool
	Allowed  []string
	// UTC requires Datetime values to carry the UTC location.
	UTC bool
	Get func(*T) any
}

// Schema is a declared table contract over rows of type T.
type Schema[T any] struct {
	Table   string
	Columns []Column[T]
	// Unique lists columns whose combined values must not repeat.
	Unique []string
}

// Violation is a single failed check.
type Violation struct {
	Row    int // -1 for schema-level checks
	Column string
	Value  string
	Check  string
}

func (v Violation) String() string {
	if v.Row < 0 {
		return fmt.Sprintf("%s: %s", v.Column, v.Check)
	}
	return fmt.Sprintf("row %d %s=%q: %s", v.Row, v.Column, v.Value, v.Check)
}

// Result is the outcome of validating one table. It is valid when it holds
// no violations.
type Result struct {
	Table      string
	Rows       int
	Violations []Violation
}

// Valid reports whether no check failed.
func (r *Result) Valid() bool { return len(r.Violations) == 0 }

// Err returns a *SchemaError carrying every violation, or nil when valid.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &SchemaError{Result: r}
}

// ByColumn counts violations per column.
func (r *Result) ByColumn() map[string]int {
	out := make(map[string]int)
	for _, v := range r.Violations {
		out[v.Column]++
	}
	return out
}

// SchemaError is returned by Result.Err for an invalid table.
type SchemaError struct {
	Result *Result
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d schema violations", e.Result.Table, len(e.Result.Violations))
	for col, n := range e.Result.ByColumn() {
		fmt.Fprintf(&b, "; %s=%d", col, n)
	}
	return b.String()
}

// Validate runs every column check and the uniqueness check over rows.
func (s *Schema[T]) Validate(rows []T) *Result {
	res := &Result{Table: s.Table, Rows: len(rows)}
	for i := range rows {
		for _, col := range s.Columns {
			if v, ok := checkCell(col, col.Get(&rows[i])); !ok {
				v.Row = i
				res.Violations = append(res.Violations, v)
			}
		}
	}
	res.Violations = append(res.Violations, s.checkUnique(rows)...)
	return res
}

func checkCell[T any](col Column[T], raw any) (Violation, bool) {
	val, isNull := deref(raw)
	if isNull {
		if col.Nullable {
			return Violation{}, true
		}
		return Violation{Column: col.Name, Value: "<null>", Check: "not_nullable"}, false
	}

	switch x := val.(type) {
	case string:
		if col.Type != String {
			return typeViolation(col.Name, col.Type, x), false
		}
		if x == "" && !col.Nullable {
			return Violation{Column: col.Name, Value: "", Check: "not_nullable"}, false
		}
		if len(col.Allowed) > 0 && !contains(col.Allowed, x) {
			return Violation{Column: col.Name, Value: x, Check: "isin(" + strings.Join(col.Allowed, ",") + ")"}, false
		}
	case float64:
		if col.Type != Float {
			return typeViolation(col.Name, col.Type, x), false
		}
	case int64, int32, int:
		if col.Type != Int {
			return typeViolation(col.Name, col.Type, x), false
		}
	case time.Time:
		if col.Type != Datetime {
			return typeViolation(col.Name, col.Type, x), false
		}
		if col.UTC && x.Location() != time.UTC {
			return Violation{Column: col.Name, Value: x.String(), Check: "timezone=UTC"}, false
		}
	default:
		return Violation{Column: col.Name, Value: fmt.Sprint(x), Check: fmt.Sprintf("unsupported type %T", x)}, false
	}
	return Violation{}, true
}

func (s *Schema[T]) checkUnique(rows []T) []Violation {
	if len(s.Unique) == 0 {
		return nil
	}
	cols := make([]Column[T], 0, len(s.Unique))
	for _, name := range s.Unique {
		for _, c := range s.Columns {
			if c.Name == name {
				cols = append(cols, c)
			}
		}
	}
	label := strings.Join(s.Unique, "+")

	var out []Violation
	seen := make(map[string]int, len(rows))
	for i := range rows {
		parts := make([]string, len(cols))
		for j, c := range cols {
			v, isNull := deref(c.Get(&rows[i]))
			if isNull {
				parts[j] = "\x00"
				continue
			}
			if t, ok := v.(time.Time); ok {
				parts[j] = t.UTC().Format(time.RFC3339Nano)
			} else {
				parts[j] = fmt.Sprint(v)
			}
		}
		key := strings.Join(parts, "\x1f")
		if first, dup := seen[key]; dup {
			out = append(out, Violation{
				Row:    i,
				Column: label,
				Value:  strings.Join(parts, "|"),
				Check:  fmt.Sprintf("unique (duplicates row %d)", first),
			})
			continue
		}
		seen[key] = i
	}
	return out
}

func deref(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case *string:
		if x == nil {
			return nil, true
		}
		return *x, false
	case *float64:
		if x == nil {
			return nil, true
		}
		return *x, false
	case *int64:
		if x == nil {
			return nil, true
		}
		return *x, false
	case *time.Time:
		if x == nil {
			return nil, true
		}
		return *x, false
	}
	return v, false
}

func typeViolation(col string, want Type, got any) Violation {
	return Violation{Column: col, Value: fmt.Sprint(got), Check: fmt.Sprintf("dtype %s, got %T", want, got)}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
