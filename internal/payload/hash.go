package payload

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/zeebo/blake3"
)

// Canonical returns a compact rendering of a JSON document with object keys
// sorted at every depth. Strings are re-encoded from their decoded value and
// numbers are normalized, so key order, whitespace, escape spelling and
// trailing zeros do not matter. Invalid input is only compacted.
func Canonical(data []byte) []byte {
	if !gjson.ValidBytes(data) {
		return pretty.Ugly(data)
	}
	var buf bytes.Buffer
	writeCanonical(&buf, gjson.ParseBytes(data))
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, r gjson.Result) {
	switch {
	case r.IsObject():
		type member struct {
			key string
			val gjson.Result
		}
		var members []member
		r.ForEach(func(k, v gjson.Result) bool {
			members = append(members, member{key: k.String(), val: v})
			return true
		})
		sort.SliceStable(members, func(i, j int) bool { return members[i].key < members[j].key })
		buf.WriteByte('{')
		for i, m := range members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, m.key)
			buf.WriteByte(':')
			writeCanonical(buf, m.val)
		}
		buf.WriteByte('}')
	case r.IsArray():
		buf.WriteByte('[')
		for i, v := range r.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, v)
		}
		buf.WriteByte(']')
	case r.Type == gjson.String:
		writeString(buf, r.String())
	case r.Type == gjson.Number:
		if d, err := decimal.NewFromString(r.Raw); err == nil {
			buf.WriteString(d.String())
		} else {
			buf.WriteString(r.Raw)
		}
	case r.Type == gjson.True:
		buf.WriteString("true")
	case r.Type == gjson.False:
		buf.WriteString("false")
	default:
		buf.WriteString("null")
	}
}

// writeString emits s with the minimal escaping encoding/json produces.
func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
}

// ContentHash is the hex blake3 digest of the canonical document.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(Canonical(data))
	return hex.EncodeToString(sum[:])
}

// Digest hashes an ordered list of parts with a unit separator between them.
func Digest(parts ...string) string {
	sum := blake3.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}
