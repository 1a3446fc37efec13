package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 12, 0, 0, 0, time.UTC)
}

func TestClassifyDate_EveryDayOfLeapYear(t *testing.T) {
	counts := map[Season]int{}
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := start; d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		s := ClassifyDate(d)
		require.Truef(t, s.Known(), "no season for %s", d.Format("01-02"))
		counts[s]++
	}

	assert.Len(t, counts, 4)
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, 366, total)
	// 21 Dec to 19 Mar in a leap year.
	assert.Equal(t, 11+31+29+19, counts[Summer])
	assert.Equal(t, 12+30+31+19, counts[Autumn])
	assert.Equal(t, 11+31+31+21, counts[Winter])
	assert.Equal(t, 9+31+30+20, counts[Spring])
}

func TestClassifyDate_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want Season
	}{
		{"autumn starts 20 Mar", date(time.March, 20), Autumn},
		{"winter starts 20 Jun", date(time.June, 20), Winter},
		{"spring starts 22 Sep", date(time.September, 22), Spring},
		{"summer starts 21 Dec", date(time.December, 21), Summer},
		{"summer ends 19 Mar", date(time.March, 19), Summer},
		{"autumn ends 19 Jun", date(time.June, 19), Autumn},
		{"winter ends 21 Sep", date(time.September, 21), Winter},
		{"spring ends 20 Dec", date(time.December, 20), Spring},
		{"new year", date(time.January, 1), Summer},
		{"leap day", date(time.February, 29), Summer},
		{"zero time is 1 January", time.Time{}, Summer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyDate(tt.date))
		})
	}
}

func TestClassify(t *testing.T) {
	winterDay := date(time.July, 10)

	tests := []struct {
		name  string
		input any
		want  Season
	}{
		{"nil", nil, SeasonUnknown},
		{"not a date", "not-a-date", SeasonUnknown},
		{"blank string", "   ", SeasonUnknown},
		{"empty string", "", SeasonUnknown},
		{"iso date", "2024-01-15", Summer},
		{"iso datetime", "2024-07-10T08:30:00", Winter},
		{"keeps local day of offset", "2024-12-20T23:30:00-03:00", Spring},
		{"slash date", "2024/03/20", Autumn},
		{"year one", "0001-01-01", Summer},
		{"zero time value", time.Time{}, Summer},
		{"time value", winterDay, Winter},
		{"time pointer", &winterDay, Winter},
		{"nil time pointer", (*time.Time)(nil), SeasonUnknown},
		{"json number", json.Number("20240115"), SeasonUnknown},
		{"bool", true, SeasonUnknown},
		{"map", map[string]any{"a": 1}, SeasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, Classify(tt.input))
			})
		})
	}
}

func TestSeason_Labels(t *testing.T) {
	assert.Equal(t, "unknown", SeasonUnknown.String())
	assert.Equal(t, "summer", Summer.String())
	assert.False(t, SeasonUnknown.Known())

	codes := map[string]bool{}
	for _, s := range Seasons {
		assert.Len(t, s.Code(), 3)
		codes[s.Code()] = true
	}
	assert.Len(t, codes, 4)
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(nil))
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("  "))
	assert.False(t, IsBlank("2024-01-01"))
	assert.False(t, IsBlank(json.Number("0")))
}
