package schema

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength keeps generated names under common 63-byte limits.
const MaxIdentifierLength = 60

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is a safe, normalized identifier.
func ValidIdentifier(name string) bool {
	return len(name) <= 63 && identifierRe.MatchString(name)
}

// NormalizeName turns a source field name into a column identifier:
// accents folded, camelCase split on word boundaries, lower snake case,
// truncated to MaxIdentifierLength.
func NormalizeName(field string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), field)
	if err != nil {
		folded = field
	}

	src := []rune(folded)
	var b strings.Builder
	for i, r := range src {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if unicode.IsUpper(r) && i > 0 && wordBoundary(src, i) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte('_')
		}
	}

	name := collapseUnderscores(b.String())
	if name == "" {
		name = "field"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "f_" + name
	}
	return truncate(name, MaxIdentifierLength)
}

// PromotedName normalizes field and prefixes it with src_ when it would
// shadow one of the reserved column names.
func PromotedName(field string, reserved map[string]bool) string {
	name := NormalizeName(field)
	if reserved[name] {
		name = truncate("src_"+name, MaxIdentifierLength)
	}
	return name
}

// wordBoundary reports whether the upper-case rune at i starts a new word:
// after a lower-case letter or digit, or ending an acronym ("VATCode").
func wordBoundary(src []rune, i int) bool {
	prev := src[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	if unicode.IsUpper(prev) && i+1 < len(src) && unicode.IsLower(src[i+1]) {
		return true
	}
	return false
}

func collapseUnderscores(s string) string {
	var b strings.Builder
	prev := byte('_')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' && prev == '_' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return strings.TrimRight(b.String(), "_")
}

func truncate(name string, n int) string {
	if len(name) > n {
		name = strings.TrimRight(name[:n], "_")
	}
	return name
}
