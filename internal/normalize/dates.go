package normalize

import (
	"strconv"
	"strings"
	"time"
)

// pubDateLayouts are the date layouts PubMed emits, in order of
// decreasing precision.
var pubDateLayouts = []string{
	"2006 Jan 2",
	"2006 Jan",
	"2006",
}

// ParsePubDate parses a PubMed publication date string. Handles the
// standard "2023 Feb 7" forms as well as Medline ranges ("2023 Jan-Feb")
// and season dates ("2023 Spring"), which resolve to their first month or
// to January. Returns nil when no year can be recovered.
func ParsePubDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	fields := strings.Fields(s)
	year, err := strconv.Atoi(fields[0])
	if err != nil || year < 1000 || year > 3000 {
		return nil
	}

	month := time.January
	if len(fields) > 1 {
		// Medline ranges like "Jan-Feb" resolve to the first month.
		token := strings.SplitN(fields[1], "-", 2)[0]
		if m, err := time.Parse("Jan", token); err == nil {
			month = m.Month()
		}
	}

	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return &t
}
