package model

import "time"

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunStatusPartial   RunStatus = "PARTIAL" // initial; never left in place past completion
	RunStatusUpdated   RunStatus = "UPDATED"
	RunStatusUnchanged RunStatus = "UNCHANGED"
	// RunStatusOutdated is reserved for a document superseded by a later
	// effective-date version already on file. Nothing computes it yet.
	RunStatusOutdated RunStatus = "OUTDATED"
	RunStatusError    RunStatus = "ERROR"
)

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusUpdated, RunStatusUnchanged, RunStatusOutdated, RunStatusError:
		return true
	}
	return false
}

// IngestionRun is the bookkeeping row for one document ingestion.
type IngestionRun struct {
	ID         string     `json:"ingestion_id"`
	EntityID   string     `json:"entity_id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// CreatedColumn reports one schema promotion.
type CreatedColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	Type   string `json:"type"`
}

// Warning is a non-fatal extraction or persistence issue.
type Warning struct {
	Table  string `json:"table"`
	Reason string `json:"reason"`
	Row    any    `json:"row,omitempty"`
}

// RunSummary is the structured result of a run, persisted as the run payload.
type RunSummary struct {
	IngestionID    string          `json:"ingestion_id"`
	EntityID       string          `json:"entity_id,omitempty"`
	CreatedColumns []CreatedColumn `json:"created_columns"`
	Inserts        map[string]int  `json:"inserts"`
	Skips          map[string]int  `json:"skips"`
	Warnings       []Warning       `json:"warnings"`
	Status         RunStatus       `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// NewRunSummary returns an empty PARTIAL summary for the ingestion.
func NewRunSummary(ingestionID, entityID string) RunSummary {
	return RunSummary{
		IngestionID:    ingestionID,
		EntityID:       entityID,
		CreatedColumns: []CreatedColumn{},
		Inserts:        map[string]int{},
		Skips:          map[string]int{},
		Warnings:       []Warning{},
		Status:         RunStatusPartial,
	}
}

// AddInserts adds n written rows to a section.
func (s *RunSummary) AddInserts(section string, n int) {
	if n > 0 {
		s.Inserts[section] += n
	}
}

// AddSkips adds n skipped rows (or one empty extraction) to a section.
func (s *RunSummary) AddSkips(section string, n int) {
	if n > 0 {
		s.Skips[section] += n
	}
}

// Warn appends a warning.
func (s *RunSummary) Warn(table, reason string, row any) {
	s.Warnings = append(s.Warnings, Warning{Table: table, Reason: reason, Row: row})
}

// Written returns the total number of rows written across sections.
func (s *RunSummary) Written() int {
	n := 0
	for _, c := range s.Inserts {
		n += c
	}
	return n
}
