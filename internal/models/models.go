package models

import (
	"bytes"
	"encoding/json"
	"time"

	"golang.org/x/oauth2"
)

// JobApplication is one tracked application. CompanyName + JobTitle is the
// natural key; at most one row exists per pair.
type JobApplication struct {
	JobID             string            `gorm:"column:job_id;primaryKey;type:text" json:"job_id"`
	DateApplied       *time.Time        `gorm:"column:date_applied;type:date" json:"date_applied"`
	CompanyName       string            `gorm:"column:company_name;type:text;not null;uniqueIndex:idx_job_applications_natural_key,priority:1" json:"company_name"`
	JobTitle          string            `gorm:"column:job_title;type:text;not null;uniqueIndex:idx_job_applications_natural_key,priority:2" json:"job_title"`
	ApplicationStatus ApplicationStatus `gorm:"column:application_status;type:text;index" json:"application_status"`
	DateRejected      *time.Time        `gorm:"column:date_rejected;type:date" json:"date_rejected"`
	InterviewDate     *time.Time        `gorm:"column:interview_date;type:date" json:"interview_date"`
	OfferDate         *time.Time        `gorm:"column:offer_date;type:date" json:"offer_date"`
}

func (JobApplication) TableName() string { return "job_applications" }

// DateFor returns the date column value owned by status.
func (a *JobApplication) DateFor(status ApplicationStatus) *time.Time {
	switch status {
	case StatusApplied:
		return a.DateApplied
	case StatusInterview:
		return a.InterviewDate
	case StatusOffer:
		return a.OfferDate
	case StatusRejected:
		return a.DateRejected
	}
	return nil
}

// SetDateFor writes d into the date column owned by status and leaves the
// other date columns alone.
func (a *JobApplication) SetDateFor(status ApplicationStatus, d *time.Time) {
	switch status {
	case StatusApplied:
		a.DateApplied = d
	case StatusInterview:
		a.InterviewDate = d
	case StatusOffer:
		a.OfferDate = d
	case StatusRejected:
		a.DateRejected = d
	}
}

// ApplicationEvent is the append-only history of merges into a JobApplication.
type ApplicationEvent struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time         `json:"created_at"`
	JobID           string            `gorm:"type:text;index;not null" json:"job_id"`
	Status          ApplicationStatus `gorm:"type:text" json:"status"`
	PreviousStatus  ApplicationStatus `gorm:"type:text" json:"previous_status"`
	EventDate       *time.Time        `gorm:"type:date" json:"event_date"`
	SourceMessageID string            `json:"source_message_id"`
	Regression      bool              `json:"regression"`
}

// ProcessedEmail marks a provider message that no longer needs a model call.
type ProcessedEmail struct {
	Provider  Provider `gorm:"primaryKey;type:text"`
	MessageID string   `gorm:"primaryKey;type:text"`
	Outcome   string   `gorm:"type:text"`
	CreatedAt time.Time
}

const (
	OutcomeAbsent    = "absent"
	OutcomePersisted = "persisted"
)

// Credential is a provider bearer credential persisted per user. It replaces
// process-local token maps so restarts and multiple instances see the same state.
type Credential struct {
	UserID       string    `gorm:"primaryKey;type:text" json:"user_id"`
	Provider     Provider  `gorm:"primaryKey;type:text" json:"provider"`
	AccessToken  string    `gorm:"type:text;not null" json:"-"`
	RefreshToken string    `gorm:"type:text" json:"-"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the credential has a known expiry in the past.
func (c *Credential) Expired(now time.Time) bool {
	return !c.Expiry.IsZero() && !now.Before(c.Expiry)
}

func (c *Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// ExtractedRecord is the model's structured reading of a single email. Dates
// are kept raw; the reconciliation store normalizes them.
type ExtractedRecord struct {
	CompanyName       string   `json:"company_name"`
	JobTitle          string   `json:"job_title"`
	ApplicationStatus string   `json:"application_status"`
	DateApplied       *RawDate `json:"date_applied"`
	DateRejected      *RawDate `json:"date_rejected"`
	InterviewDate     *RawDate `json:"interview_date"`
	OfferDate         *RawDate `json:"offer_date"`

	SourceMessageID string `json:"-"`
}

// RawDateFor returns the raw date string the model reported for status.
func (r *ExtractedRecord) RawDateFor(status ApplicationStatus) string {
	var p *RawDate
	switch status {
	case StatusApplied:
		p = r.DateApplied
	case StatusInterview:
		p = r.InterviewDate
	case StatusOffer:
		p = r.OfferDate
	case StatusRejected:
		p = r.DateRejected
	}
	if p == nil {
		return ""
	}
	return string(*p)
}

// RawDate is a date exactly as the model wrote it. Numbers keep their literal
// text; objects, arrays and booleans decode to empty and normalize to null.
type RawDate string

func (d *RawDate) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*d = RawDate(t)
	case float64:
		*d = RawDate(bytes.TrimSpace(b))
	default:
		*d = ""
	}
	return nil
}
