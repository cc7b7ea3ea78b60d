package extract

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/identity"
	"github.com/sells-group/registry-ingest/internal/model"
)

// companyKnownKeys are the company-block keys other extractors consume.
var companyKnownKeys = keySet(
	identityKeys, projectionKeys, dateKeys(),
	contactBlockKeys, phoneKeys, emailKeys, pecKeys, websiteKeys,
	registeredOfficeKeys, otherOfficeKeys, classificationBlockKeys,
)

// Company builds the mutable projection row. Fields are read from the nested
// company blocks in vocabulary order, then from the root. Unmodeled top-level
// scalars of the nested blocks are returned in Extra for promotion; when two
// blocks carry the same key the earlier block wins.
func Company(doc Doc, id identity.Resolution) model.Company {
	c := model.Company{
		EntityID:       id.EntityID,
		VATCode:        id.VATCode,
		TaxCode:        id.TaxCode,
		IdentitySource: id.Source,
	}

	blocks := companyBlocks(doc.Root)
	nested := blocks[1:]
	sources := append(append([]gjson.Result{}, nested...), doc.Root)

	c.Name = firstTextIn(sources, "companyName", "name", "denominazione")
	c.LegalForm = firstTextIn(sources, "legalForm")
	c.Status = firstTextIn(sources, "activityStatus", "status")
	c.REACode = firstTextIn(sources, "reaCode", "rea")
	if s := firstTextIn(sources, "incorporationDate", "registrationDate"); s != "" {
		if d, ok := ParseDate(s); ok {
			c.IncorporationDate = &d
		}
	}

	seen := make(map[string]bool)
	for _, blk := range nested {
		for _, f := range extraScalars(blk, companyKnownKeys) {
			if k := strings.ToLower(f.Name); !seen[k] {
				seen[k] = true
				c.Extra = append(c.Extra, f)
			}
		}
	}
	return c
}
