// Package schema promotes previously unseen scalar fields to typed columns.
package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ColumnType is a portable storage type.
type ColumnType string

const (
	Text      ColumnType = "text"
	Boolean   ColumnType = "boolean"
	Integer   ColumnType = "integer"
	Decimal   ColumnType = "decimal"
	Timestamp ColumnType = "timestamp"
	Date      ColumnType = "date"
)

var (
	isoDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`)
	isoDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// InferType picks a column type for a sample scalar value.
func InferType(sample any) ColumnType {
	switch v := sample.(type) {
	case nil:
		return Text
	case bool:
		return Boolean
	case int, int32, int64:
		return Integer
	case float64:
		if v == float64(int64(v)) {
			return Integer
		}
		return Decimal
	case decimal.Decimal:
		return Decimal
	case time.Time:
		return Timestamp
	case string:
		s := strings.TrimSpace(v)
		if isoDateTime.MatchString(s) {
			if _, err := parseTimestamp(s); err == nil {
				return Timestamp
			}
		}
		if isoDate.MatchString(s) {
			if _, err := time.Parse(time.DateOnly, s); err == nil {
				return Date
			}
		}
	}
	return Text
}

// ParseColumnType maps a database-reported type name to a ColumnType.
func ParseColumnType(dbType string) ColumnType {
	t := strings.ToLower(dbType)
	switch {
	case strings.Contains(t, "bool"):
		return Boolean
	case strings.Contains(t, "timestamp"), strings.Contains(t, "datetime"):
		return Timestamp
	case t == "date":
		return Date
	case strings.Contains(t, "int"):
		return Integer
	case strings.Contains(t, "numeric"), strings.Contains(t, "decimal"),
		strings.Contains(t, "real"), strings.Contains(t, "double"), strings.Contains(t, "float"):
		return Decimal
	}
	return Text
}

// Coerce converts a scalar to a value suitable for a column of type t.
func Coerce(v any, t ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Text:
		return toText(v), nil
	case Boolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	case Integer:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case decimal.Decimal:
			if x.IsInteger() {
				return x.IntPart(), nil
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n, nil
			}
		}
	case Decimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case int64:
			return decimal.NewFromInt(x), nil
		case int:
			return decimal.NewFromInt(int64(x)), nil
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(x)); err == nil {
				return d, nil
			}
		}
	case Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if ts, err := parseTimestamp(strings.TrimSpace(x)); err == nil {
				return ts, nil
			}
			if d, err := time.Parse(time.DateOnly, strings.TrimSpace(x)); err == nil {
				return d, nil
			}
		}
	case Date:
		switch x := v.(type) {
		case time.Time:
			return truncateDay(x), nil
		case string:
			s := strings.TrimSpace(x)
			if d, err := time.Parse(time.DateOnly, s); err == nil {
				return d, nil
			}
			if ts, err := parseTimestamp(s); err == nil {
				return truncateDay(ts), nil
			}
		}
	}
	return nil, eris.Errorf("schema: cannot store %T value %q as %s", v, toText(v), t)
}

func toText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
