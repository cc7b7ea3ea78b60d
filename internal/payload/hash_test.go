package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash_KeyOrderInsensitive(t *testing.T) {
	t.Parallel()

	a := []byte(`{"b":1,"a":{"y":[1,2],"x":"s"}}`)
	b := []byte("{\n  \"a\": {\"x\": \"s\", \"y\": [1, 2]},\n  \"b\": 1\n}")

	assert.Equal(t, ContentHash(a), ContentHash(b))
	assert.Len(t, ContentHash(a), 64)
}

func TestContentHash_ValueSensitive(t *testing.T) {
	t.Parallel()

	assert.NotEqual(t,
		ContentHash([]byte(`{"amount":100}`)),
		ContentHash([]byte(`{"amount":150}`)),
	)
	assert.NotEqual(t,
		ContentHash([]byte(`{"list":[1,2]}`)),
		ContentHash([]byte(`{"list":[2,1]}`)),
		"array order is significant",
	)
}

func TestCanonical_Compacts(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1,"b":2}`, string(Canonical([]byte(`{ "b": 2, "a": 1 }`))))
}

func TestDigest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Digest("a", "b"), Digest("a", "b"))
	assert.NotEqual(t, Digest("ab", ""), Digest("a", "b"))
}

func TestContentHash_EscapeSpellingInsensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		ContentHash([]byte(`{"companyName":"Società"}`)),
		ContentHash([]byte(`{"companyName":"Societ\u00e0"}`)),
	)
	assert.Equal(t,
		ContentHash([]byte(`{"web":"a/b"}`)),
		ContentHash([]byte(`{"web":"a\/b"}`)),
	)
	assert.Equal(t,
		ContentHash([]byte(`{"Society":1}`)),
		ContentHash([]byte(`{"Soci\u0065ty":1}`)),
		"keys are compared decoded",
	)
	assert.NotEqual(t,
		ContentHash([]byte(`{"companyName":"Società"}`)),
		ContentHash([]byte(`{"companyName":"Societa"}`)),
	)
}

func TestCanonical_NormalizesValues(t *testing.T) {
	t.Parallel()

	got := Canonical([]byte(`{"n":1.50,"e":1e3,"s":"x<y\/z","t":true,"z":null,"l":[0.0,"à"]}`))
	assert.Equal(t, `{"e":1000,"l":[0,"à"],"n":1.5,"s":"x<y/z","t":true,"z":null}`, string(got))
}

func TestCanonical_InvalidInputIsCompacted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":`, string(Canonical([]byte(`{ "a": `))))
}
