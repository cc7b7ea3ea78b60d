package payload

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Path is a location inside a document. Array indices are stored as "[n]".
type Path []string

// Child returns a copy of p extended by an object key.
func (p Path) Child(key string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, key)
}

// Index returns a copy of p extended by an array index.
func (p Path) Index(i int) Path {
	return p.Child("[" + strconv.Itoa(i) + "]")
}

// String renders p as a JSONPath such as $.balance.items[0].code.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range p {
		if strings.HasPrefix(seg, "[") {
			b.WriteString(seg)
			continue
		}
		b.WriteString(".")
		b.WriteString(seg)
	}
	return b.String()
}

// Generalized renders p with every array index replaced by [].
func (p Path) Generalized() string {
	g := make(Path, len(p))
	for i, seg := range p {
		if strings.HasPrefix(seg, "[") {
			g[i] = "[]"
			continue
		}
		g[i] = seg
	}
	return g.String()
}

// Key returns the last object key on the path, or "" for an array element.
func (p Path) Key() string {
	if len(p) == 0 || strings.HasPrefix(p[len(p)-1], "[") {
		return ""
	}
	return p[len(p)-1]
}

// Visitor is called for every value below the walk root in document order.
// Returning false skips the value's children.
type Visitor func(path Path, v gjson.Result) bool

// Walk visits every nested value of r depth-first in document order.
func Walk(r gjson.Result, fn Visitor) {
	walk(r, nil, fn)
}

// WalkFrom is Walk with an initial path prefix.
func WalkFrom(r gjson.Result, prefix Path, fn Visitor) {
	walk(r, prefix, fn)
}

func walk(r gjson.Result, path Path, fn Visitor) {
	switch {
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			p := path.Child(k.Str)
			if fn(p, v) {
				walk(v, p, fn)
			}
			return true
		})
	case r.IsArray():
		i := 0
		r.ForEach(func(_, v gjson.Result) bool {
			p := path.Index(i)
			i++
			if fn(p, v) {
				walk(v, p, fn)
			}
			return true
		})
	}
}
