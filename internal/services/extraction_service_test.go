package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/justsurfingit/job-application-tracker/internal/logger"
	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
)

// scriptedLLM answers by message body so results do not depend on call order.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]error
	calls   int
	prompts []string
}

func (s *scriptedLLM) Complete(_ context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, user)
	for key, err := range s.fail {
		if strings.Contains(user, key) {
			return "", err
		}
	}
	for key, reply := range s.replies {
		if strings.Contains(user, key) {
			return reply, nil
		}
	}
	return "None", nil
}

func TestParseExtractionReply(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		absent  bool
		company string
		wantErr bool
	}{
		{name: "none", raw: "None", absent: true},
		{name: "none lowercase padded", raw: "  none \n", absent: true},
		{name: "fenced none", raw: "```\nNONE\n```", absent: true},
		{name: "json null", raw: "null", absent: true},
		{name: "plain json", raw: `{"company_name":"Acme","job_title":"Engineer","application_status":"Applied","date_applied":"2024-05-01"}`, company: "Acme"},
		{name: "fenced json", raw: "```json\n{\"company_name\":\"Acme\",\"job_title\":\"SRE\",\"application_status\":\"Interview\"}\n```", company: "Acme"},
		{name: "prose around json", raw: "Here you go:\n{\"company_name\":\"Globex\",\"job_title\":\"PM\",\"application_status\":\"Offer\"}\nThanks!", company: "Globex"},
		{name: "garbage", raw: "I cannot tell", wantErr: true},
		{name: "broken braces", raw: "{company: Acme}", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ParseExtractionReply(tc.raw)
			if tc.wantErr {
				if !eris.Is(err, ErrUnparseableReply) {
					t.Fatalf("expected ErrUnparseableReply, got rec=%+v err=%v", rec, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.absent {
				if rec != nil {
					t.Fatalf("expected absent, got %+v", rec)
				}
				return
			}
			if rec == nil || rec.CompanyName != tc.company {
				t.Fatalf("unexpected record: %+v", rec)
			}
		})
	}
}

func TestParseExtractionReplyKeepsNullDates(t *testing.T) {
	rec, err := ParseExtractionReply(`{"company_name":"Acme","job_title":"Eng","application_status":"Rejected","date_applied":null,"date_rejected":"2024-02-01"}`)
	if err != nil || rec == nil {
		t.Fatalf("unexpected: %+v %v", rec, err)
	}
	if rec.DateApplied != nil || rec.DateRejected == nil || *rec.DateRejected != "2024-02-01" {
		t.Fatalf("unexpected dates: %+v", rec)
	}
}

func TestParseExtractionReplyToleratesNonStringDates(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "number", raw: `{"company_name":"Acme","job_title":"Eng","application_status":"Applied","date_applied":20240501}`, want: "20240501"},
		{name: "object", raw: `{"company_name":"Acme","job_title":"Eng","application_status":"Applied","date_applied":{"y":2024}}`},
		{name: "array", raw: `{"company_name":"Acme","job_title":"Eng","application_status":"Applied","date_applied":[2024,5,1]}`},
		{name: "bool", raw: `{"company_name":"Acme","job_title":"Eng","application_status":"Applied","date_applied":true}`},
		{name: "in prose", raw: `Result: {"company_name":"Acme","job_title":"Eng","application_status":"Applied","date_applied":{}} done`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ParseExtractionReply(tc.raw)
			if err != nil || rec == nil {
				t.Fatalf("record lost: rec=%+v err=%v", rec, err)
			}
			if rec.CompanyName != "Acme" || rec.JobTitle != "Eng" {
				t.Fatalf("unexpected record %+v", rec)
			}
			got := rec.RawDateFor(models.StatusApplied)
			if got != tc.want {
				t.Fatalf("raw date = %q, want %q", got, tc.want)
			}
			if tc.want == "" && NormalizeDate(got) != nil {
				t.Fatalf("non-scalar date should normalize to null")
			}
		})
	}
}

func TestExtractAllIsolatesFailuresAndKeepsOrder(t *testing.T) {
	llm := &scriptedLLM{
		replies: map[string]string{
			"email-0": `{"company_name":"Acme","job_title":"Eng","application_status":"Applied"}`,
			"email-2": "garbled reply without json",
			"email-3": "```json\n{\"company_name\":\"Globex\",\"job_title\":\"PM\",\"application_status\":\"Offer\"}\n```",
		},
		fail: map[string]error{"email-4": errors.New("model timeout")},
	}
	emails := make([]mailsource.RawEmail, 5)
	for i := range emails {
		emails[i] = mailsource.RawEmail{ID: "m" + string(rune('0'+i)), Subject: "Application", Body: "email-" + string(rune('0'+i))}
	}

	for _, concurrency := range []int{1, 4} {
		svc := NewExtractionService(llm, concurrency, logger.Nop())
		results := svc.ExtractAll(context.Background(), emails)
		if len(results) != 5 {
			t.Fatalf("expected 5 results, got %d", len(results))
		}
		for i, r := range results {
			if r.Email.ID != emails[i].ID {
				t.Fatalf("result %d out of order: %s", i, r.Email.ID)
			}
		}
		if r := results[0]; r.Err != nil || r.Record == nil || r.Record.SourceMessageID != "m0" {
			t.Fatalf("result 0: %+v", r)
		}
		if r := results[1]; r.Err != nil || r.Record != nil {
			t.Fatalf("result 1 should be absent: %+v", r)
		}
		if r := results[2]; !eris.Is(r.Err, ErrUnparseableReply) {
			t.Fatalf("result 2 should be a parse failure: %+v", r)
		}
		if r := results[3]; r.Err != nil || r.Record == nil || r.Record.CompanyName != "Globex" {
			t.Fatalf("result 3: %+v", r)
		}
		if r := results[4]; r.Err == nil {
			t.Fatalf("result 4 should carry the model error")
		}
	}
}

func TestExtractPassesFullBody(t *testing.T) {
	llm := &scriptedLLM{}
	body := strings.Repeat("x", 100_000)
	svc := NewExtractionService(llm, 1, logger.Nop())
	if _, err := svc.Extract(context.Background(), mailsource.RawEmail{ID: "big", Subject: "Application", Body: body}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.Contains(llm.prompts[0], body) {
		t.Fatalf("body was truncated")
	}
}
