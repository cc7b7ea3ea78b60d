// Package payload provides lenient, order-preserving access to JSON documents
// of unknown shape. Lookups return an explicit presence flag instead of
// failing on missing keys or mismatched types.
package payload

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ErrMalformed is returned when a document is not valid JSON.
var ErrMalformed = eris.New("payload: malformed JSON")

// Parse validates a document and returns its root, which must be an object.
func Parse(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, ErrMalformed
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return gjson.Result{}, eris.Wrap(ErrMalformed, "payload: document root must be an object")
	}
	return root, nil
}

// Get returns the value under key of an object. An exact key match wins;
// otherwise the first key equal under case folding is used, matching how the
// unknown-field recorder treats keys. Null values count as absent.
func Get(obj gjson.Result, key string) (gjson.Result, bool) {
	if !obj.IsObject() {
		return gjson.Result{}, false
	}
	var (
		out   gjson.Result
		found bool
	)
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			out, found = v, true
			return false
		}
		if !found && strings.EqualFold(k.Str, key) {
			out, found = v, true
		}
		return true
	})
	if !found || out.Type == gjson.Null {
		return gjson.Result{}, false
	}
	return out, true
}

// Lookup follows a chain of object keys.
func Lookup(r gjson.Result, path ...string) (gjson.Result, bool) {
	cur := r
	for _, key := range path {
		next, ok := Get(cur, key)
		if !ok {
			return gjson.Result{}, false
		}
		cur = next
	}
	return cur, true
}

// First returns the value of the first key present on obj.
func First(obj gjson.Result, keys ...string) (gjson.Result, string, bool) {
	for _, k := range keys {
		if v, ok := Get(obj, k); ok {
			return v, k, true
		}
	}
	return gjson.Result{}, "", false
}

// FirstText returns the first key of obj holding a non-empty flattened text.
func FirstText(obj gjson.Result, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := Get(obj, k); ok {
			if s, ok := Text(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// Text flattens a value to a trimmed string. Strings, numbers and booleans
// flatten directly; {code, description} objects prefer the description.
func Text(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		return s, s != ""
	case gjson.Number:
		return v.Raw, true
	case gjson.True, gjson.False:
		return strconv.FormatBool(v.Bool()), true
	case gjson.JSON:
		if !v.IsObject() {
			return "", false
		}
		if s, ok := FirstText(v, "description", "descrizione", "value"); ok {
			return s, true
		}
		return FirstText(v, "code", "codice")
	}
	return "", false
}

// CodeDescription splits a string or {code, description} value.
func CodeDescription(v gjson.Result) (code, description string, ok bool) {
	if v.IsObject() {
		code, _ = FirstText(v, "code", "codice")
		description, _ = FirstText(v, "description", "descrizione")
		return code, description, code != "" || description != ""
	}
	code, ok = Text(v)
	return code, "", ok
}

// IsScalar reports whether v is a string, number, boolean or null.
func IsScalar(v gjson.Result) bool {
	return v.Type != gjson.JSON
}

// Scalar converts a scalar value to nil, bool, int64, decimal.Decimal or string.
// Integral numbers without a fraction or exponent become int64.
func Scalar(v gjson.Result) (any, bool) {
	switch v.Type {
	case gjson.Null:
		return nil, true
	case gjson.True, gjson.False:
		return v.Bool(), true
	case gjson.String:
		return v.Str, true
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return n, true
			}
		}
		d, err := decimal.NewFromString(v.Raw)
		if err != nil {
			return v.Raw, true
		}
		return d, true
	}
	return nil, false
}

// Number parses a number or a numeric string (dot or comma decimal separator).
func Number(v gjson.Result) (decimal.Decimal, bool) {
	switch v.Type {
	case gjson.Number:
		d, err := decimal.NewFromString(v.Raw)
		return d, err == nil
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return decimal.Decimal{}, false
		}
		if strings.Contains(s, ",") && !strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", ".")
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// Int parses an integral number or numeric string.
func Int(v gjson.Result) (int, bool) {
	d, ok := Number(v)
	if !ok || !d.IsInteger() {
		return 0, false
	}
	return int(d.IntPart()), true
}
