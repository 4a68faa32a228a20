package sqldb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/activerecord/pkg/orm/schema"
	"github.com/conduit-lang/activerecord/pkg/orm/value"
)

// toDriver converts a value into a database/sql argument. Arrays and objects
// are stored as JSON text.
func toDriver(v value.Value) (any, error) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindArray, value.KindObject:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s column: %w", v.Kind(), err)
		}
		return string(data), nil
	}
	return v.Interface(), nil
}

// fromDriver converts a scanned column into a value, shaped by the property
// type when the column is a declared property
func fromDriver(s *schema.Schema, column string, raw any) (value.Value, error) {
	if raw == nil {
		return value.Null(), nil
	}
	if prop, ok := s.Property(column); ok {
		v, err := value.Coerce(raw, prop.Type.Kind())
		if err != nil {
			return value.Null(), fmt.Errorf("column %s: %w", column, err)
		}
		return v, nil
	}
	if b, ok := raw.([]byte); ok {
		return value.String(string(b)), nil
	}
	return value.From(raw)
}

// scanRows scans every row into a value.Row keyed by column name
func scanRows(s *schema.Schema, rows *sql.Rows) ([]value.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := []value.Row{}
	for rows.Next() {
		raw := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(value.Row, len(columns))
		for i, col := range columns {
			v, err := fromDriver(s, col, raw[i])
			if err != nil {
				return nil, err
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
