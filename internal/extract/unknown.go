package extract

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// sectionRule describes which children of a recognized root section are
// read, and whether its unread scalars are promoted to columns instead of
// being recorded as unknown.
type sectionRule struct {
	known           map[string]bool
	consumes        func(key string) bool
	promotesScalars bool
}

var sectionRules = func() map[string]sectionRule {
	rules := make(map[string]sectionRule)
	set := func(keys []string, r sectionRule) {
		for _, k := range keys {
			rules[strings.ToLower(k)] = r
		}
	}
	set(companyBlockKeys, sectionRule{known: companyKnownKeys, promotesScalars: true})
	set(contactBlockKeys, sectionRule{known: contactKnownKeys, promotesScalars: true})
	set(registeredOfficeKeys, sectionRule{known: addressKnownKeys, promotesScalars: true})
	set(otherOfficeKeys, sectionRule{known: addressKnownKeys, promotesScalars: true})
	set(classificationBlockKeys, sectionRule{known: keySet(classificationKeys(), codeKeys, descriptionKeys, dateKeys())})
	set(balanceBlockKeys, sectionRule{
		known:    keySet(balanceSectionKeys(), yearKeys, currencyKeys, dateKeys()),
		consumes: isLegacyGroup,
	})
	return rules
}()

// UnknownFields collects scalar leaves no extractor models: every leaf under
// an unrecognized root key (section "root"), and leaves under unread keys of
// a recognized section. Array indices are generalized to [] and the last
// value seen per path is kept. truncated reports that limit was reached.
func UnknownFields(doc Doc, limit int) (fields []model.UnknownField, truncated bool) {
	index := make(map[string]int)
	record := func(section string, path payload.Path, v gjson.Result) bool {
		if codePattern.MatchString(path.Key()) {
			if _, ok := payload.Number(v); ok {
				return true // read by the code-pattern balance tier
			}
		}
		value, _ := payload.Text(v)
		if v.Type == gjson.String {
			value = v.Str
		}
		f := model.UnknownField{SectionName: section, JSONPath: path.Generalized(), Value: value}
		key := section + "\x00" + f.JSONPath
		if i, ok := index[key]; ok {
			fields[i] = f
			return true
		}
		if limit > 0 && len(fields) >= limit {
			truncated = true
			return false
		}
		index[key] = len(fields)
		fields = append(fields, f)
		return true
	}
	leaves := func(section string, v gjson.Result, path payload.Path) {
		if payload.IsScalar(v) {
			record(section, path, v)
			return
		}
		payload.WalkFrom(v, path, func(p payload.Path, leaf gjson.Result) bool {
			if payload.IsScalar(leaf) {
				return record(section, p, leaf)
			}
			return !truncated
		})
	}

	doc.Root.ForEach(func(k, v gjson.Result) bool {
		path := payload.Path{}.Child(k.Str)
		lower := strings.ToLower(k.Str)
		rule, isSection := sectionRules[lower]
		switch {
		case isSection:
			for _, obj := range sectionObjects(v, path) {
				obj.value.ForEach(func(ck, cv gjson.Result) bool {
					if rule.known[strings.ToLower(ck.Str)] || (rule.consumes != nil && rule.consumes(ck.Str)) {
						return true
					}
					if payload.IsScalar(cv) && rule.promotesScalars {
						return true
					}
					leaves(k.Str, cv, obj.path.Child(ck.Str))
					return !truncated
				})
			}
		case !recognizedRootKeys[lower]:
			leaves(model.SectionRoot, v, path)
		}
		return !truncated
	})
	return fields, truncated
}

type pathValue struct {
	path  payload.Path
	value gjson.Result
}

// sectionObjects returns the object itself, or the object elements of an array.
func sectionObjects(v gjson.Result, path payload.Path) []pathValue {
	if v.IsObject() {
		return []pathValue{{path, v}}
	}
	var out []pathValue
	if v.IsArray() {
		for i, el := range v.Array() {
			if el.IsObject() {
				out = append(out, pathValue{path.Index(i), el})
			}
		}
	}
	return out
}

func classificationKeys() []string {
	out := make([]string, 0, len(classificationFields))
	for _, f := range classificationFields {
		out = append(out, f.key)
	}
	return out
}

func balanceSectionKeys() []string {
	var out []string
	for _, s := range aggregateSectionKeys {
		out = append(out, s.keys...)
	}
	for k := range legacyGroupKeys {
		out = append(out, k)
	}
	return out
}
