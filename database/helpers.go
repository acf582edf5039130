package database

import (
	"database/sql"
	"encoding/json"
	"reflect"
)

// encodeJSON returns the JSON text for v, or nil (SQL NULL) for nil values.
func encodeJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if rv := reflect.ValueOf(v); (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Map) && rv.IsNil() {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v > 0}
}
