package domain

import (
	"regexp"
	"strconv"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var numericDatePattern = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)

// NormalizeDate converts a free-form OCR date string to canonical YYYY-MM-DD.
// It tries the known layouts first, then a numeric slash/dash pattern that
// assumes month-day-year ordering. Day-first inputs are knowingly mis-read by
// the fallback; that ambiguity is inherited from the upstream data and not
// resolved here. Returns ok=false for anything unparseable.
func NormalizeDate(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	m := numericDatePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format("2006-01-02"), true
}
