package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/registry-ingest/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	started := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)

	updated := model.IngestionRun{
		ID:         "abc12345-6789-0000-0000-000000000000",
		EntityID:   "e0f1a2b3-0000-5000-8000-000000000000",
		Status:     model.RunStatusUpdated,
		StartedAt:  started,
		FinishedAt: &finished,
		Summary:    model.NewRunSummary("abc12345", "e0f1a2b3"),
	}
	updated.Summary.AddInserts(model.TableContacts, 2)
	updated.Summary.AddInserts(model.TableLineItems, 3)
	updated.Summary.Warn(model.TableAddresses, "bad postal code", nil)

	partial := model.IngestionRun{
		ID:        "def12345-6789-0000-0000-000000000000",
		EntityID:  "e2",
		Status:    model.RunStatusPartial,
		StartedAt: started,
		Summary:   model.NewRunSummary("def12345", "e2"),
	}

	var buf bytes.Buffer
	formatRunsList(&buf, []model.IngestionRun{updated, partial})

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "e0f1a2b3")
	assert.Contains(t, out, "UPDATED")
	assert.Contains(t, out, "2024-06-15 10:30")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "PARTIAL")
}
