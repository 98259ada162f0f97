package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrUnparseableReply means the model answered with neither JSON nor None.
var ErrUnparseableReply = eris.New("could not parse JSON from model reply")

const ExtractionSystemPrompt = `You are an assistant that analyzes whether a given email is a job application email.

If it IS a job application email, respond with a single JSON object and nothing else, with exactly these fields:
  "company_name": the hiring company
  "job_title": the role applied for
  "application_status": exactly one of "Applied", "Interview", "Offer", "Rejected"
  "date_applied": the date if application_status is "Applied", otherwise null
  "date_rejected": the date if application_status is "Rejected", otherwise null
  "interview_date": the date the interview email was received if application_status is "Interview", otherwise null
  "offer_date": the date the offer email was received if application_status is "Offer", otherwise null
Use ISO-8601 dates (YYYY-MM-DD). Only the date field matching the status may be non-null.

If it is NOT a job application email, respond with exactly:
None`

var (
	reLeadingFence  = regexp.MustCompile("^```(?:json|JSON)?\\s*")
	reTrailingFence = regexp.MustCompile("\\s*```$")
)

// ExtractionService turns raw emails into extracted records, one model call per email.
type ExtractionService struct {
	LLM         Completer
	Concurrency int
	log         zerolog.Logger
}

func NewExtractionService(llm Completer, concurrency int, log zerolog.Logger) *ExtractionService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ExtractionService{LLM: llm, Concurrency: concurrency, log: log}
}

// ExtractionResult is the outcome for one email. Record is nil when the email
// is not about a job application; Err is set only for that email's failure.
type ExtractionResult struct {
	Email  mailsource.RawEmail
	Record *models.ExtractedRecord
	Err    error
}

// Extract classifies one email. A nil record with a nil error means Absent.
func (s *ExtractionService) Extract(ctx context.Context, email mailsource.RawEmail) (*models.ExtractedRecord, error) {
	reply, err := s.LLM.Complete(ctx, ExtractionSystemPrompt, buildEmailPrompt(email))
	if err != nil {
		return nil, eris.Wrapf(err, "extract message %s", email.ID)
	}
	rec, err := ParseExtractionReply(reply)
	if err != nil {
		return nil, eris.Wrapf(err, "extract message %s", email.ID)
	}
	if rec != nil {
		rec.SourceMessageID = email.ID
	}
	return rec, nil
}

// ExtractAll runs Extract over a batch. Results keep the input order and a
// failure stays in its own slot.
func (s *ExtractionService) ExtractAll(ctx context.Context, emails []mailsource.RawEmail) []ExtractionResult {
	results := make([]ExtractionResult, len(emails))
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, email := range emails {
		g.Go(func() error {
			rec, err := s.Extract(ctx, email)
			results[i] = ExtractionResult{Email: email, Record: rec, Err: err}
			switch {
			case err != nil:
				s.log.Warn().Err(err).Str("message_id", email.ID).Str("subject", shortSubject(email.Subject)).Msg("❌ extraction failed, skipping email")
			case rec == nil:
				s.log.Debug().Str("message_id", email.ID).Msg("not a job application email")
			default:
				s.log.Info().Str("message_id", email.ID).Str("company", rec.CompanyName).
					Str("title", rec.JobTitle).Str("status", rec.ApplicationStatus).Msg("🧠 extracted application")
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ParseExtractionReply reads the model's answer: fenced or bare JSON, the
// literal None, or JSON embedded in surrounding prose.
func ParseExtractionReply(raw string) (*models.ExtractedRecord, error) {
	text := strings.TrimSpace(raw)
	text = reLeadingFence.ReplaceAllString(text, "")
	text = reTrailingFence.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if strings.EqualFold(text, "none") {
		return nil, nil
	}

	var rec *models.ExtractedRecord
	if err := json.Unmarshal([]byte(text), &rec); err == nil {
		return rec, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		rec = nil
		if err := json.Unmarshal([]byte(text[start:end+1]), &rec); err == nil && rec != nil {
			return rec, nil
		}
	}
	return nil, eris.Wrapf(ErrUnparseableReply, "reply %q", truncate(raw, 200))
}

func buildEmailPrompt(email mailsource.RawEmail) string {
	var b strings.Builder
	b.WriteString("Analyze the following email:\n\n")
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "From: %s\n", email.Sender)
	if !email.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", email.ReceivedAt.Format(time.RFC1123Z))
	}
	b.WriteString("\n")
	b.WriteString(email.Body)
	return b.String()
}

func shortSubject(s string) string {
	return truncate(s, 40)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
