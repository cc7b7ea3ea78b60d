package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Facet table names.
const (
	TableCompanies       = "companies"
	TableContacts        = "contacts"
	TableAddresses       = "addresses"
	TableClassifications = "classifications"
	TableLineItems       = "financial_line_items"
)

// Address types.
const (
	AddressRegisteredOffice = "SEDE"
	AddressLocalUnit        = "UNITA_LOCALE"
	AddressOther            = "ALTRO"
)

// Classification types.
const (
	ClassificationPrimary   = "PRIMARY"
	ClassificationSecondary = "SECONDARY"
	ClassificationATECO2007 = "ATECO2007"
	ClassificationATECO2022 = "ATECO2022"
)

// Field is a named column value.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// FacetRow is the storage shape of an append-only facet record. Columns are
// the table's modeled columns; Extra holds source-named scalars that still
// need a column.
type FacetRow struct {
	Table         string
	EffectiveDate time.Time
	Columns       []Field
	Extra         []Field
	Raw           json.RawMessage
	Hash          string
}

// Contacts is at most one row per document.
type Contacts struct {
	ID            string          `json:"id,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	PEC           string          `json:"pec,omitempty"`
	Website       string          `json:"website,omitempty"`
	EffectiveDate time.Time       `json:"effective_date"`
	Extra         []Field         `json:"-"`
	Raw           json.RawMessage `json:"-"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// Empty reports whether no contact channel was found.
func (c Contacts) Empty() bool {
	return c.Phone == "" && c.Email == "" && c.PEC == "" && c.Website == ""
}

// Row converts the contacts record to its facet row.
func (c Contacts) Row() FacetRow {
	return FacetRow{
		Table:         TableContacts,
		EffectiveDate: c.EffectiveDate,
		Columns: []Field{
			{"phone", nullable(c.Phone)},
			{"email", nullable(c.Email)},
			{"pec", nullable(c.PEC)},
			{"website", nullable(c.Website)},
		},
		Extra: c.Extra,
		Raw:   c.Raw,
	}
}

// Address is one office of the entity.
type Address struct {
	ID            string          `json:"id,omitempty"`
	AddressType   string          `json:"address_type"`
	Street        string          `json:"street,omitempty"`
	ZipCode       string          `json:"zip_code,omitempty"`
	Town          string          `json:"town,omitempty"`
	Province      string          `json:"province,omitempty"`
	Region        string          `json:"region,omitempty"`
	Country       string          `json:"country,omitempty"`
	EffectiveDate time.Time       `json:"effective_date"`
	Extra         []Field         `json:"-"`
	Raw           json.RawMessage `json:"-"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// Row converts the address to its facet row.
func (a Address) Row() FacetRow {
	return FacetRow{
		Table:         TableAddresses,
		EffectiveDate: a.EffectiveDate,
		Columns: []Field{
			{"address_type", a.AddressType},
			{"street", nullable(a.Street)},
			{"zip_code", nullable(a.ZipCode)},
			{"town", nullable(a.Town)},
			{"province", nullable(a.Province)},
			{"region", nullable(a.Region)},
			{"country", nullable(a.Country)},
		},
		Extra: a.Extra,
		Raw:   a.Raw,
	}
}

// Classification is one industry code of the entity.
type Classification struct {
	ID                 string          `json:"id,omitempty"`
	ClassificationType string          `json:"classification_type"`
	Code               string          `json:"code"`
	Description        string          `json:"description,omitempty"`
	EffectiveDate      time.Time       `json:"effective_date"`
	Extra              []Field         `json:"-"`
	Raw                json.RawMessage `json:"-"`
	CreatedAt          time.Time       `json:"created_at,omitempty"`
}

// Row converts the classification to its facet row.
func (c Classification) Row() FacetRow {
	return FacetRow{
		Table:         TableClassifications,
		EffectiveDate: c.EffectiveDate,
		Columns: []Field{
			{"classification_type", c.ClassificationType},
			{"code", c.Code},
			{"description", nullable(c.Description)},
		},
		Extra: c.Extra,
		Raw:   c.Raw,
	}
}

// Statement is the financial statement a line item belongs to.
type Statement string

const (
	StatementAssets      Statement = "SP_A" // balance sheet, assets
	StatementLiabilities Statement = "SP_P" // balance sheet, liabilities
	StatementIncome      Statement = "CE"   // income statement
)

// Family is the three-letter legend family of the statement (SPA, SPP, CE).
func (s Statement) Family() string {
	return strings.ReplaceAll(string(s), "_", "")
}

// Valid reports whether s is one of the known statements.
func (s Statement) Valid() bool {
	switch s {
	case StatementAssets, StatementLiabilities, StatementIncome:
		return true
	}
	return false
}

// LineItem is a financial line item, unique on (entity, fiscal year, statement, code).
type LineItem struct {
	ID            string          `json:"id,omitempty"`
	EntityID      string          `json:"entity_id,omitempty"`
	FiscalYear    int             `json:"fiscal_year"`
	Statement     Statement       `json:"statement"`
	Code          string          `json:"code"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	EffectiveDate time.Time       `json:"effective_date"`
	SourceTier    string          `json:"source_tier,omitempty"`
	Path          string          `json:"-"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty"`
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
