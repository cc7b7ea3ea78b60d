package model

import "github.com/shopspring/decimal"

// CompanyReport is the read-side view of one entity and all of its facets.
type CompanyReport struct {
	Company         Company          `json:"company"`
	Contacts        []Contacts       `json:"contacts"`
	Addresses       []Address        `json:"addresses"`
	Classifications []Classification `json:"classifications"`
	LineItems       []LineItem       `json:"line_items"`
	Versions        []EntityVersion  `json:"versions"`
	RawSections     int64            `json:"raw_sections"`
	Runs            []IngestionRun   `json:"runs"`
	Counts          map[string]int64 `json:"counts"`
}

// FinancialGroup sums line items sharing a year, statement and currency.
type FinancialGroup struct {
	FiscalYear int             `json:"fiscal_year"`
	Statement  Statement       `json:"statement"`
	Currency   string          `json:"currency"`
	Total      decimal.Decimal `json:"total"`
	Items      int64           `json:"items"`
}
