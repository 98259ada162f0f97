package mailsource

import (
	"fmt"
	"strings"
	"time"
)

// SubjectFilter decides whether an email subject carries a job-application
// signal. Providers push the same rule into their server-side query; Match is
// applied afterwards so every provider honours it identically.
type SubjectFilter struct {
	Include []string
	Exclude []string
}

// DefaultSubjectFilter mirrors `subject:"application" -subject:"credit card"`.
func DefaultSubjectFilter() SubjectFilter {
	return SubjectFilter{
		Include: []string{"application"},
		Exclude: []string{"credit card"},
	}
}

func (f SubjectFilter) Match(subject string) bool {
	s := strings.ToLower(subject)
	for _, term := range f.Exclude {
		if strings.Contains(s, strings.ToLower(term)) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, term := range f.Include {
		if strings.Contains(s, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Keep applies the subject rule and the received-time window.
func (f SubjectFilter) Keep(e RawEmail, since time.Time) bool {
	if !e.ReceivedAt.IsZero() && e.ReceivedAt.Before(since) {
		return false
	}
	return f.Match(e.Subject)
}

// GmailQuery renders the filter in Gmail search syntax.
func (f SubjectFilter) GmailQuery(lookbackDays int) string {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	var parts []string
	switch len(f.Include) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("subject:%q", f.Include[0]))
	default:
		alts := make([]string, 0, len(f.Include))
		for _, term := range f.Include {
			alts = append(alts, fmt.Sprintf("subject:%q", term))
		}
		parts = append(parts, "{"+strings.Join(alts, " ")+"}")
	}
	parts = append(parts, fmt.Sprintf("newer_than:%dd", lookbackDays))
	for _, term := range f.Exclude {
		parts = append(parts, fmt.Sprintf("-subject:%q", term))
	}
	return strings.Join(parts, " ")
}

// GraphSearch renders the filter as a KQL expression for Graph's $search.
// Graph does not allow $filter next to $search, so the window goes into KQL too.
func (f SubjectFilter) GraphSearch(since time.Time) string {
	var parts []string
	if len(f.Include) > 0 {
		alts := make([]string, 0, len(f.Include))
		for _, term := range f.Include {
			alts = append(alts, "subject:"+kqlTerm(term))
		}
		if len(alts) == 1 {
			parts = append(parts, alts[0])
		} else {
			parts = append(parts, "("+strings.Join(alts, " OR ")+")")
		}
	}
	for _, term := range f.Exclude {
		parts = append(parts, "NOT subject:"+kqlTerm(term))
	}
	parts = append(parts, "received>="+since.UTC().Format("2006-01-02"))
	return `"` + strings.Join(parts, " AND ") + `"`
}

func kqlTerm(term string) string {
	if strings.ContainsAny(term, " \t") {
		return `\"` + term + `\"`
	}
	return term
}
