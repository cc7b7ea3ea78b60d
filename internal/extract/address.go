package extract

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// AddressTiers is the ordered address strategy list.
var AddressTiers = []Tier[model.Address]{
	{Name: "known_blocks", Run: knownAddressBlocks},
	{Name: "vocabulary_scan", Run: scanAddresses},
}

// minAddressScore is the number of address-shaped keys that makes an object
// an address candidate.
const minAddressScore = 3

var addressKnownKeys = keySet(streetKeys, streetNumberKeys, zipKeys, townKeys,
	provinceKeys, regionKeys, countryKeys, dateKeys())

// Addresses extracts office addresses.
func Addresses(doc Doc, opts Options) Outcome[model.Address] {
	return RunTiers(doc, opts, AddressTiers)
}

func knownAddressBlocks(doc Doc, _ Options) ([]model.Address, []model.Warning) {
	containers := companyBlocks(doc.Root)
	var out []model.Address

	if office, _, ok := block(containers, registeredOfficeKeys...); ok {
		if a, ok := normalizeAddress(office, model.AddressRegisteredOffice, doc.Date); ok {
			out = append(out, a)
		}
	}

	for _, c := range containers {
		v, _, ok := payload.First(c, otherOfficeKeys...)
		if !ok {
			continue
		}
		offices := []gjson.Result{v}
		if v.IsArray() {
			offices = v.Array()
		}
		for _, o := range offices {
			if !o.IsObject() {
				continue
			}
			if a, ok := normalizeAddress(o, model.AddressLocalUnit, doc.Date); ok {
				out = append(out, a)
			}
		}
		break
	}
	return out, nil
}

// scanAddresses scores every nested object against the address vocabulary.
// An accepted candidate's children are not visited again.
func scanAddresses(doc Doc, _ Options) ([]model.Address, []model.Warning) {
	var out []model.Address
	payload.Walk(doc.Root, func(_ payload.Path, v gjson.Result) bool {
		if !v.IsObject() || addressScore(v) < minAddressScore {
			return true
		}
		if a, ok := normalizeAddress(v, model.AddressOther, doc.Date); ok {
			out = append(out, a)
			return false
		}
		return true
	})
	return out, nil
}

func addressScore(obj gjson.Result) int {
	score := 0
	obj.ForEach(func(k, _ gjson.Result) bool {
		if addressVocabulary[strings.ToLower(k.Str)] {
			score++
		}
		return true
	})
	return score
}

// normalizeAddress flattens an address object. Each field accepts a flat
// value or a {code, description} object. Objects without any address field
// are rejected.
func normalizeAddress(obj gjson.Result, addrType string, fallback time.Time) (model.Address, bool) {
	a := model.Address{
		AddressType: addrType,
		Street:      street(obj),
		ZipCode:     firstText(obj, zipKeys),
		Town:        firstText(obj, townKeys),
		Province:    firstText(obj, provinceKeys),
		Region:      firstText(obj, regionKeys),
		Country:     firstText(obj, countryKeys),
	}
	if a.Street == "" && a.ZipCode == "" && a.Town == "" && a.Province == "" && a.Region == "" && a.Country == "" {
		return model.Address{}, false
	}
	a.EffectiveDate = EffectiveDate(obj, fallback)
	a.Extra = extraScalars(obj, addressKnownKeys)
	a.Raw = json.RawMessage(obj.Raw)
	return a, true
}

// street prefers a full street line, else joins toponym and street name,
// then appends the civic number when it is not already there.
func street(obj gjson.Result) string {
	s := firstText(obj, []string{"street", "indirizzo", "address", "via"})
	if s == "" {
		var parts []string
		for _, k := range []string{"toponym", "streetName"} {
			if v, ok := payload.FirstText(obj, k); ok {
				parts = append(parts, v)
			}
		}
		s = strings.Join(parts, " ")
	}
	if s == "" {
		return ""
	}
	if num, ok := payload.FirstText(obj, streetNumberKeys...); ok && !strings.HasSuffix(s, " "+num) {
		s += " " + num
	}
	return s
}

func firstText(obj gjson.Result, keys []string) string {
	s, _ := payload.FirstText(obj, keys...)
	return s
}
