// Package identity derives stable entity identifiers from company natural keys.
package identity

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// Namespace is the fixed UUIDv5 namespace for entity ids. Changing it
// re-keys every entity.
var Namespace = uuid.MustParse("6f1c2d4e-8a3b-5c7d-9e0f-1a2b3c4d5e6f")

// Containers are the blocks searched for natural keys, root first.
var Containers = [][]string{
	nil,
	{"companyDetails"},
	{"company"},
	{"identity"},
	{"anagrafica"},
}

var (
	vatKeys = []string{"vatCode", "vatNumber", "partitaIva", "piva"}
	taxKeys = []string{"taxCode", "fiscalCode", "codiceFiscale"}
)

// Resolution is the outcome of identity resolution.
type Resolution struct {
	EntityID   string
	VATCode    string
	TaxCode    string
	Source     model.IdentitySource
	NaturalKey string
}

// Linked reports whether the id was derived from a natural key.
func (r Resolution) Linked() bool {
	return r.Source != model.IdentityRandom
}

// Resolve looks for a VAT identifier, then a tax identifier, across the root
// and the known nested blocks. Without either it returns a random id.
func Resolve(doc gjson.Result) Resolution {
	vat := find(doc, vatKeys)
	tax := find(doc, taxKeys)

	res := Resolution{VATCode: vat, TaxCode: tax}
	switch {
	case vat != "":
		res.Source, res.NaturalKey = model.IdentityVAT, vat
	case tax != "":
		res.Source, res.NaturalKey = model.IdentityTax, tax
	default:
		res.Source = model.IdentityRandom
		res.EntityID = uuid.New().String()
		return res
	}
	res.EntityID = EntityID(res.NaturalKey)
	return res
}

// EntityID derives the deterministic id for a natural key.
func EntityID(naturalKey string) string {
	return uuid.NewSHA1(Namespace, []byte(NormalizeKey(naturalKey))).String()
}

// NormalizeKey trims, upper-cases and removes inner spaces.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.Join(strings.Fields(key), ""))
}

func find(doc gjson.Result, keys []string) string {
	for _, path := range Containers {
		block, ok := doc, true
		if path != nil {
			block, ok = payload.Lookup(doc, path...)
		}
		if !ok || !block.IsObject() {
			continue
		}
		if s, ok := payload.FirstText(block, keys...); ok {
			if k := NormalizeKey(s); k != "" {
				return k
			}
		}
	}
	return ""
}
