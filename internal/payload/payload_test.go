package payload

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParse(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"a":1}`))
	require.NoError(t, err)

	_, err = Parse([]byte(`{"a":`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte(`[1,2]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an object")
}

func TestGetAndLookup(t *testing.T) {
	t.Parallel()

	doc := gjson.Parse(`{"companyDetails":{"vat.Code":"IT1","empty":null},"list":[1]}`)

	v, ok := Lookup(doc, "companyDetails", "vat.Code")
	require.True(t, ok)
	assert.Equal(t, "IT1", v.Str)

	_, ok = Lookup(doc, "companyDetails", "empty")
	assert.False(t, ok, "null is absent")

	_, ok = Lookup(doc, "companyDetails", "missing", "deeper")
	assert.False(t, ok)

	_, ok = Get(doc.Get("list"), "0")
	assert.False(t, ok, "arrays have no keys")
}

func TestGet_CaseFoldFallback(t *testing.T) {
	t.Parallel()

	doc := gjson.Parse(`{"VatCode":"IT1","vatcode":"IT2","Address":{"ZipCode":"00100"}}`)

	v, ok := Get(doc, "vatcode")
	require.True(t, ok)
	assert.Equal(t, "IT2", v.Str, "exact match wins")

	v, ok = Get(doc, "VATCODE")
	require.True(t, ok)
	assert.Equal(t, "IT1", v.Str, "first folded match otherwise")

	v, ok = Lookup(doc, "address", "zipCode")
	require.True(t, ok)
	assert.Equal(t, "00100", v.Str)

	_, ok = Get(doc, "vat")
	assert.False(t, ok)
}

func TestFirstAndFirstText(t *testing.T) {
	t.Parallel()

	obj := gjson.Parse(`{"telephone":"  ","tel":"06 123","mail":"a@b.it"}`)

	_, key, ok := First(obj, "phone", "telephone", "tel")
	require.True(t, ok)
	assert.Equal(t, "telephone", key)

	s, ok := FirstText(obj, "phone", "telephone", "tel")
	require.True(t, ok)
	assert.Equal(t, "06 123", s, "blank strings are skipped")
}

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"Roma"`, "Roma", true},
		{`100`, "100", true},
		{`true`, "true", true},
		{`{"code":"RM","description":"Roma"}`, "Roma", true},
		{`{"code":"RM"}`, "RM", true},
		{`[1]`, "", false},
		{`""`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Text(gjson.Parse(tt.raw))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScalar(t *testing.T) {
	t.Parallel()

	v, ok := Scalar(gjson.Parse(`500`))
	require.True(t, ok)
	assert.Equal(t, int64(500), v)

	v, ok = Scalar(gjson.Parse(`12.50`))
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("12.5").Equal(v.(decimal.Decimal)))

	v, ok = Scalar(gjson.Parse(`null`))
	require.True(t, ok)
	assert.Nil(t, v)

	v, _ = Scalar(gjson.Parse(`false`))
	assert.Equal(t, false, v)

	_, ok = Scalar(gjson.Parse(`{"a":1}`))
	assert.False(t, ok)
}

func TestNumber(t *testing.T) {
	t.Parallel()

	d, ok := Number(gjson.Parse(`"1234,56"`))
	require.True(t, ok)
	assert.Equal(t, "1234.56", d.String())

	d, ok = Number(gjson.Parse(`"150"`))
	require.True(t, ok)
	assert.Equal(t, "150", d.String())

	_, ok = Number(gjson.Parse(`"n/a"`))
	assert.False(t, ok)

	y, ok := Int(gjson.Parse(`"2023"`))
	require.True(t, ok)
	assert.Equal(t, 2023, y)

	_, ok = Int(gjson.Parse(`2023.5`))
	assert.False(t, ok)
}

func TestCodeDescription(t *testing.T) {
	t.Parallel()

	code, desc, ok := CodeDescription(gjson.Parse(`{"code":"62.01","description":"Software"}`))
	require.True(t, ok)
	assert.Equal(t, "62.01", code)
	assert.Equal(t, "Software", desc)

	code, desc, ok = CodeDescription(gjson.Parse(`"62.01"`))
	require.True(t, ok)
	assert.Equal(t, "62.01", code)
	assert.Empty(t, desc)
}
