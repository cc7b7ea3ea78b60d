package extract

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/model"
	"github.com/sells-group/registry-ingest/internal/payload"
)

// ContactTiers is the ordered contacts strategy list.
var ContactTiers = []Tier[model.Contacts]{
	{Name: "well_known_fields", Run: wellKnownContacts},
	{Name: "deep_key_scan", Run: deepScanContacts},
}

var contactKnownKeys = keySet(phoneKeys, emailKeys, pecKeys, websiteKeys, dateKeys())

// Contacts extracts at most one contacts row.
func Contacts(doc Doc, opts Options) Outcome[model.Contacts] {
	return RunTiers(doc, opts, ContactTiers)
}

func wellKnownContacts(doc Doc, _ Options) ([]model.Contacts, []model.Warning) {
	containers := []gjson.Result{doc.Root}
	nested, _, hasBlock := block([]gjson.Result{doc.Root}, contactBlockKeys...)
	if hasBlock {
		containers = append(containers, nested)
	}
	if cd, ok := payload.Get(doc.Root, "companyDetails"); ok && cd.IsObject() {
		containers = append(containers, cd)
	}

	c := model.Contacts{
		Phone:   firstTextIn(containers, phoneKeys...),
		Email:   firstTextIn(containers, emailKeys...),
		PEC:     firstTextIn(containers, pecKeys...),
		Website: firstTextIn(containers, websiteKeys...),
	}
	if c.Empty() {
		return nil, nil
	}

	if hasBlock {
		c.EffectiveDate = EffectiveDate(nested, doc.Date)
		c.Extra = extraScalars(nested, contactKnownKeys)
		c.Raw = json.RawMessage(nested.Raw)
	} else {
		c.EffectiveDate = doc.Date
		c.Raw = contactsRaw(c)
	}
	return []model.Contacts{c}, nil
}

// deepScanContacts walks the whole document matching key substrings. A pec
// match is checked before mail, so "pecEmail" is a certified address.
func deepScanContacts(doc Doc, opts Options) ([]model.Contacts, []model.Warning) {
	if !opts.DeepContactScan {
		return nil, nil
	}
	var c model.Contacts
	payload.Walk(doc.Root, func(path payload.Path, v gjson.Result) bool {
		key := strings.ToLower(path.Key())
		if key == "" || v.Type != gjson.String {
			return true
		}
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return true
		}
		switch {
		case strings.Contains(key, "pec"):
			setOnce(&c.PEC, s)
		case strings.Contains(key, "mail"):
			setOnce(&c.Email, s)
		case strings.Contains(key, "tel"), strings.Contains(key, "phone"):
			setOnce(&c.Phone, s)
		case strings.Contains(key, "sito"), strings.Contains(key, "web"):
			setOnce(&c.Website, s)
		}
		return true
	})
	if c.Empty() {
		return nil, nil
	}
	c.EffectiveDate = doc.Date
	c.Raw = contactsRaw(c)
	return []model.Contacts{c}, nil
}

func firstTextIn(containers []gjson.Result, keys ...string) string {
	for _, c := range containers {
		if s, ok := payload.FirstText(c, keys...); ok {
			return s
		}
	}
	return ""
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func contactsRaw(c model.Contacts) json.RawMessage {
	b, _ := json.Marshal(c)
	return b
}
