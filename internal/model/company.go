// Package model defines the records produced and persisted by document ingestion.
package model

import (
	"encoding/json"
	"time"
)

// IdentitySource records which natural key produced an entity id.
type IdentitySource string

const (
	IdentityVAT    IdentitySource = "vat"
	IdentityTax    IdentitySource = "tax"
	IdentityRandom IdentitySource = "random" // no natural key; cannot be linked to later ingestions
)

// Company is the mutable projection row of a legal entity. Non-empty fields
// overwrite the stored value on each ingestion; empty fields leave it alone.
type Company struct {
	EntityID          string         `json:"entity_id"`
	VATCode           string         `json:"vat_code,omitempty"`
	TaxCode           string         `json:"tax_code,omitempty"`
	IdentitySource    IdentitySource `json:"identity_source"`
	Name              string         `json:"name,omitempty"`
	LegalForm         string         `json:"legal_form,omitempty"`
	Status            string         `json:"status,omitempty"`
	REACode           string         `json:"rea_code,omitempty"`
	IncorporationDate *time.Time     `json:"incorporation_date,omitempty"`
	Extra             []Field        `json:"extra,omitempty"` // unmodeled top-level scalars, promoted to columns
	CreatedAt         time.Time      `json:"created_at,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at,omitempty"`
}

// EntityVersion is an immutable snapshot of one distinct document for an entity.
type EntityVersion struct {
	ID            string          `json:"id"`
	EntityID      string          `json:"entity_id"`
	EffectiveDate time.Time       `json:"effective_date"`
	ContentHash   string          `json:"content_hash"`
	RawPayload    json.RawMessage `json:"raw_payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// RawSection is the lossless capture of a document (or a part of it).
type RawSection struct {
	ID            string          `json:"id"`
	EntityID      string          `json:"entity_id"`
	IngestionID   string          `json:"ingestion_id"`
	SectionName   string          `json:"section_name"`
	EffectiveDate time.Time       `json:"effective_date"`
	RawPayload    json.RawMessage `json:"raw_payload"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// SectionRoot names the whole-document raw capture.
const SectionRoot = "root"
