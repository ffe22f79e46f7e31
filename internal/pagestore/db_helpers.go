package pagestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// encodeJSON returns value as a JSON text argument, or NULL when asNull is set.
func encodeJSON(value any, asNull bool) (any, error) {
	if asNull {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// decodeJSON reads a nullable JSON column. NULL yields the zero T.
func decodeJSON[T any](raw sql.NullString) (T, error) {
	var out T
	if !raw.Valid || raw.String == "" {
		return out, nil
	}
	err := json.Unmarshal([]byte(raw.String), &out)
	return out, err
}

// scanList drains rows through scan and closes them. what names the rows
// in error messages.
func scanList[T any](rows *sql.Rows, what string, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()

	var result []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("pagestore: scan %s: %w", what, err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pagestore: iterate %s: %w", what, err)
	}
	return result, nil
}
