package validate

import (
	"strings"

	"github.com/parquet-go/parquet-go"
)

// CheckParquet verifies that a persisted Parquet schema carries every declared
// column with a compatible physical type and nullability.
func (s *Schema[T]) CheckParquet(schema *parquet.Schema) []Violation {
	fields := make(map[string]parquet.Field)
	for _, f := range schema.Fields() {
		fields[strings.ToLower(f.Name())] = f
	}

	var out []Violation
	for _, col := range s.Columns {
		f, ok := fields[col.Name]
		if !ok {
			out = append(out, Violation{Row: -1, Column: col.Name, Check: "missing column"})
			continue
		}
		if f.Optional() && !col.Nullable {
			out = append(out, Violation{Row: -1, Column: col.Name, Check: "declared not nullable, stored optional"})
		}
		if !physicalMatches(col.Type, f) {
			out = append(out, Violation{Row: -1, Column: col.Name, Check: "dtype " + string(col.Type) + ", stored " + f.Type().String()})
		}
	}
	return out
}

func physicalMatches(t Type, f parquet.Field) bool {
	kind := f.Type().Kind()
	switch t {
	case String:
		return kind == parquet.ByteArray
	case Float:
		return kind == parquet.Double || kind == parquet.Float
	case Int:
		return kind == parquet.Int64 || kind == parquet.Int32
	case Datetime:
		lt := f.Type().LogicalType()
		return kind == parquet.Int64 && lt != nil && lt.Timestamp != nil
	}
	return false
}
