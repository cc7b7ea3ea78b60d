package schema

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sample any
		want   ColumnType
	}{
		{"null", nil, Text},
		{"bool", true, Boolean},
		{"integral", int64(42), Integer},
		{"fractional", decimal.RequireFromString("4.2"), Decimal},
		{"whole float", 3.0, Integer},
		{"float", 3.5, Decimal},
		{"datetime", "2024-03-01T10:30:00Z", Timestamp},
		{"datetime space", "2024-03-01 10:30:00", Timestamp},
		{"date", "2024-03-01", Date},
		{"bad date", "2024-13-45", Text},
		{"text", "Via Roma", Text},
		{"numeric string", "123", Text},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferType(tt.sample))
		})
	}
}

func TestParseColumnType(t *testing.T) {
	t.Parallel()

	tests := map[string]ColumnType{
		"text":                     Text,
		"character varying":        Text,
		"boolean":                  Boolean,
		"BOOLEAN":                  Boolean,
		"bigint":                   Integer,
		"INTEGER":                  Integer,
		"numeric":                  Decimal,
		"NUMERIC":                  Decimal,
		"timestamp with time zone": Timestamp,
		"DATETIME":                 Timestamp,
		"date":                     Date,
		"jsonb":                    Text,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseColumnType(in), in)
	}
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	v, err := Coerce(int64(7), Text)
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	v, err = Coerce("true", Boolean)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Coerce(decimal.RequireFromString("12"), Integer)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = Coerce(int64(12), Decimal)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12).Equal(v.(decimal.Decimal)))

	v, err = Coerce("2024-03-01T10:30:00+01:00", Timestamp)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), v)

	v, err = Coerce("2024-03-01T10:30:00Z", Date)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), v)

	v, err = Coerce(nil, Integer)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = Coerce("abc", Integer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot store")

	_, err = Coerce(decimal.RequireFromString("1.5"), Integer)
	assert.Error(t, err)
}
