package models

import "strings"

type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "Applied"
	StatusInterview ApplicationStatus = "Interview"
	StatusOffer     ApplicationStatus = "Offer"
	StatusRejected  ApplicationStatus = "Rejected"
)

// AllStatuses lists every status in display order.
var AllStatuses = []ApplicationStatus{StatusApplied, StatusRejected, StatusInterview, StatusOffer}

// ParseStatus maps a model-reported status onto the enum. Matching ignores
// case and surrounding whitespace.
func ParseStatus(s string) (ApplicationStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range AllStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// DateColumn is the single date column a status owns. Adding a status without
// a case here makes every merge site report it as unknown.
func (s ApplicationStatus) DateColumn() (string, bool) {
	switch s {
	case StatusApplied:
		return "date_applied", true
	case StatusInterview:
		return "interview_date", true
	case StatusOffer:
		return "offer_date", true
	case StatusRejected:
		return "date_rejected", true
	}
	return "", false
}

// Rank orders the happy path. Rejected is terminal and ranks highest.
func (s ApplicationStatus) Rank() int {
	switch s {
	case StatusApplied:
		return 1
	case StatusInterview:
		return 2
	case StatusOffer:
		return 3
	case StatusRejected:
		return 4
	}
	return 0
}

// IsRegression reports whether moving from prev to s goes backwards.
func (s ApplicationStatus) IsRegression(prev ApplicationStatus) bool {
	return prev.Rank() > 0 && s.Rank() < prev.Rank()
}

type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
)

func ParseProvider(s string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderGoogle, "gmail":
		return ProviderGoogle, true
	case ProviderMicrosoft, "outlook":
		return ProviderMicrosoft, true
	}
	return "", false
}
