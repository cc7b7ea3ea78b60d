package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementFamily(t *testing.T) {
	t.Parallel()

	tests := []struct {
		statement Statement
		want      string
	}{
		{StatementAssets, "SPA"},
		{StatementLiabilities, "SPP"},
		{StatementIncome, "CE"},
	}
	for _, tt := range tests {
		t.Run(string(tt.statement), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.statement.Family())
			assert.True(t, tt.statement.Valid())
		})
	}
	assert.False(t, Statement("XX").Valid())
}

func TestRunStatusIsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, RunStatusPartial.IsTerminal())
	for _, s := range []RunStatus{RunStatusUpdated, RunStatusUnchanged, RunStatusOutdated, RunStatusError} {
		assert.True(t, s.IsTerminal(), s)
	}
}

func TestNewRunSummary_EmptyCollectionsEncode(t *testing.T) {
	t.Parallel()

	s := NewRunSummary("run-1", "ent-1")
	b, err := json.Marshal(s)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "PARTIAL", got["status"])
	assert.Equal(t, []any{}, got["created_columns"])
	assert.Equal(t, []any{}, got["warnings"])
	assert.Equal(t, map[string]any{}, got["inserts"])
}

func TestRunSummaryCounters(t *testing.T) {
	t.Parallel()

	s := NewRunSummary("run-1", "ent-1")
	s.AddInserts("addresses", 2)
	s.AddInserts("contacts", 0)
	s.AddSkips("contacts", 1)
	s.Warn("financial_line_items", "missing fiscal year", map[string]any{"code": "A1"})

	assert.Equal(t, 2, s.Written())
	assert.NotContains(t, s.Inserts, "contacts")
	assert.Equal(t, 1, s.Skips["contacts"])
	require.Len(t, s.Warnings, 1)
	assert.Equal(t, "missing fiscal year", s.Warnings[0].Reason)
}

func TestContactsRow_NullsEmptyChannels(t *testing.T) {
	t.Parallel()

	c := Contacts{Email: "info@example.it"}
	assert.False(t, c.Empty())

	row := c.Row()
	assert.Equal(t, TableContacts, row.Table)
	assert.Equal(t, []Field{{"phone", nil}, {"email", "info@example.it"}, {"pec", nil}, {"website", nil}}, row.Columns)
	assert.True(t, Contacts{}.Empty())
}

func TestAddressRow(t *testing.T) {
	t.Parallel()

	row := Address{AddressType: AddressRegisteredOffice, Street: "Via Roma 1", Town: "Roma"}.Row()
	assert.Equal(t, TableAddresses, row.Table)
	assert.Equal(t, Field{"address_type", "SEDE"}, row.Columns[0])
	assert.Equal(t, Field{"street", "Via Roma 1"}, row.Columns[1])
	assert.Equal(t, Field{"zip_code", nil}, row.Columns[2])
}
