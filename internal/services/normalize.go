package services

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var isoLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// NormalizeDate turns a free-text date into a calendar date (UTC midnight).
// Anything unparseable yields nil; it never fails the caller.
func NormalizeDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "unknown":
		return nil
	}
	if t, ok := lenientParse(s); ok {
		return dateOnly(t)
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t)
		}
	}
	return nil
}

func lenientParse(s string) (t time.Time, ok bool) {
	// dateparse has panicked on pathological input before; treat that as unparseable
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	t, err := dateparse.ParseIn(s, time.UTC)
	return t, err == nil
}

func dateOnly(t time.Time) *time.Time {
	y, m, d := t.Date()
	out := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &out
}

// FormatDate renders a stored date as YYYY-MM-DD or nil.
func FormatDate(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}
