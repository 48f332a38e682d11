package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Queryable is the union of the sqlx methods the stores rely on; both
// *sqlx.DB and *sqlx.Tx satisfy it, allowing store methods to run either
// standalone or inside a WrapTx transaction.
type Queryable interface {
	Exec(query string, args ...any) (sql.Result, error)
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
	Rebind(query string) string
}

// JsonColumn wraps any JSON-serialisable type so it can be stored in (and
// scanned from) a JSONB column. The zero value scans NULL to a nil pointer.
type JsonColumn[T any] struct {
	val *T
}

func NewJsonColumn[T any](val *T) JsonColumn[T] {
	return JsonColumn[T]{val: val}
}

func (j *JsonColumn[T]) Get() *T { return j.val }

func (j *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		j.val = nil
		return nil
	}

	var raw []byte
	switch source := src.(type) {
	case []byte:
		raw = source
	case string:
		raw = []byte(source)
	default:
		return fmt.Errorf("cannot scan %T in to JsonColumn", src)
	}

	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal JsonColumn: %w", err)
	}

	j.val = out
	return nil
}

func (j JsonColumn[T]) Value() (driver.Value, error) {
	if j.val == nil {
		return nil, nil
	}

	return json.Marshal(j.val)
}
