package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// IntArray maps a Postgres BIGINT[] column to []int64. database/sql has no
// native array support; pgx's own array codecs are reachable only through
// its non-sql.DB interfaces, which sqlx's struct scanning does not use, so
// this type implements Scanner/Valuer by hand over Postgres' literal array
// text format ("{1,2,3}"). See DESIGN.md for why this is standard-library
// rather than a third-party array type.
type IntArray []int64

// Value implements driver.Valuer.
func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Scan implements sql.Scanner.
func (a *IntArray) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("models: cannot scan %T into IntArray", src)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		*a = IntArray{}
		return nil
	}
	fields := strings.Split(s, ",")
	out := make(IntArray, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return fmt.Errorf("models: invalid integer %q in array: %w", f, err)
		}
		out = append(out, n)
	}
	*a = out
	return nil
}
