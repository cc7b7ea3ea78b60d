package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestEffectiveDate_PriorityOrder(t *testing.T) {
	t.Parallel()

	fallback := time.Date(2024, 6, 15, 13, 45, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"last update wins", `{"since":"2020-01-01","updateDate":"2024-02-01","lastUpdateDate":"2024-05-06"}`, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		{"generic update over since", `{"roleStartDate":"2010-01-01","since":"2020-01-01","updatedAt":"2022-07-08T09:10:11Z"}`, time.Date(2022, 7, 8, 0, 0, 0, 0, time.UTC)},
		{"since over role start", `{"roleStartDate":"2010-01-01","since":"2020-01-01"}`, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"role start", `{"roleStartDate":"2010-01-01"}`, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"unparseable skipped", `{"lastUpdateDate":"yesterday","since":"01/02/2019"}`, time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"fallback truncated", `{"other":"2020-01-01"}`, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveDate(gjson.Parse(tt.raw), fallback))
		})
	}
}

func TestFiscalYearEnd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), FiscalYearEnd(2023))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"2023-03-04", "2023-03-04T05:06:07Z", "2023-03-04 05:06:07", "04/03/2023", "20230304"} {
		d, ok := ParseDate(s)
		assert.True(t, ok, s)
		assert.Equal(t, time.Date(2023, 3, 4, 0, 0, 0, 0, time.UTC), d, s)
	}
	_, ok := ParseDate("March 4th")
	assert.False(t, ok)
}
