package model

import "time"

// UnmappedCode is a cross-entity counter of line-item codes missing from the legend.
type UnmappedCode struct {
	Code           string    `json:"code"`
	StatementGuess Statement `json:"statement_guess"`
	Occurrences    int64     `json:"occurrences"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// UnknownField is a scalar leaf that no column models yet.
type UnknownField struct {
	EntityID    string `json:"entity_id,omitempty"`
	SectionName string `json:"section_name"`
	JSONPath    string `json:"json_path"`
	Value       string `json:"value"`
	Occurrences int64  `json:"occurrences,omitempty"`
}

// LegendEntry maps a (family, code) pair to a description.
type LegendEntry struct {
	Family      string `json:"family" yaml:"family"`
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}
