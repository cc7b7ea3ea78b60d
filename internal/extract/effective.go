package extract

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/sells-group/registry-ingest/internal/payload"
)

// DateKeyTiers is the precision hierarchy of effective-date fields: a
// last-update date, a generic update date, a "since" date, a role start.
var DateKeyTiers = [][]string{
	{"lastUpdateDate", "lastUpdate", "lastUpdatedAt", "dataUltimoAggiornamento"},
	{"updateDate", "updatedAt", "dataAggiornamento"},
	{"since", "sinceDate", "validFrom", "dataInizioValidita"},
	{"roleStartDate", "startDate", "dataInizio"},
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"20060102",
}

func dateKeys() []string {
	var out []string
	for _, tier := range DateKeyTiers {
		out = append(out, tier...)
	}
	return out
}

// EffectiveDate returns the first parseable date of section in DateKeyTiers
// order, or fallback. Results are truncated to the UTC day.
func EffectiveDate(section gjson.Result, fallback time.Time) time.Time {
	for _, tier := range DateKeyTiers {
		for _, key := range tier {
			v, ok := payload.Get(section, key)
			if !ok || v.Type != gjson.String {
				continue
			}
			if d, ok := ParseDate(v.Str); ok {
				return d
			}
		}
	}
	return day(fallback)
}

// FiscalYearEnd is December 31 of year, UTC.
func FiscalYearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses the date formats seen in registry documents.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), true
		}
	}
	return time.Time{}, false
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
