package mailsource

import (
	"context"
	"errors"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gmailMaxPage = 500

// GmailSource lists and expands messages through the Gmail API.
type GmailSource struct {
	Filter   SubjectFilter
	Attempts int
	Backoff  time.Duration
	Log      zerolog.Logger

	// ClientOptions are appended before the per-call token source; tests use
	// them to point the client at a local server.
	ClientOptions []option.ClientOption

	now func() time.Time
}

func NewGmailSource(log zerolog.Logger, opts ...option.ClientOption) *GmailSource {
	return &GmailSource{
		Filter:        DefaultSubjectFilter(),
		Attempts:      3,
		Backoff:       time.Second,
		Log:           log,
		ClientOptions: opts,
		now:           time.Now,
	}
}

func (s *GmailSource) Fetch(ctx context.Context, token *oauth2.Token, q Query) ([]RawEmail, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &FetchError{Provider: models.ProviderGoogle, StatusCode: 401, Message: "missing access token"}
	}
	opts := append([]option.ClientOption{}, s.ClientOptions...)
	opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(token)))
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "create gmail service")
	}

	query := s.Filter.GmailQuery(q.LookbackDays)
	log := s.Log.With().Str("provider", string(models.ProviderGoogle)).Str("query", query).Logger()
	since := q.since(s.clock())

	pageSize := int64(100)
	if q.MaxResults > 0 && q.MaxResults < gmailMaxPage {
		pageSize = int64(q.MaxResults)
	}

	// only messages that pass Keep count against the cap
	emails := []RawEmail{}
	scanned := 0
	pageToken := ""
	for {
		page, err := s.listPage(ctx, svc, query, pageSize, pageToken, log)
		if err != nil {
			return nil, gmailFetchError(err)
		}
		for _, m := range page.Messages {
			scanned++
			email, err := s.get(ctx, svc, m.Id, log)
			if err != nil {
				return nil, gmailFetchError(err)
			}
			if !s.Filter.Keep(email, since) {
				log.Debug().Str("message_id", m.Id).Str("subject", email.Subject).Msg("filtered out")
				continue
			}
			emails = append(emails, email)
			if q.MaxResults > 0 && len(emails) >= q.MaxResults {
				log.Debug().Int("scanned", scanned).Int("kept", len(emails)).Msg("gmail list reached cap")
				return emails, nil
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	log.Debug().Int("scanned", scanned).Int("kept", len(emails)).Msg("gmail list complete")
	return emails, nil
}

func (s *GmailSource) listPage(ctx context.Context, svc *gmail.Service, query string, size int64, pageToken string, log zerolog.Logger) (*gmail.ListMessagesResponse, error) {
	var page *gmail.ListMessagesResponse
	err := retry(ctx, log, s.attempts(), s.Backoff, func() error {
		call := svc.Users.Messages.List("me").Q(query).MaxResults(size)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var e error
		page, e = call.Context(ctx).Do()
		return e
	})
	return page, err
}

func (s *GmailSource) get(ctx context.Context, svc *gmail.Service, id string, log zerolog.Logger) (RawEmail, error) {
	var msg *gmail.Message
	err := retry(ctx, log, s.attempts(), s.Backoff, func() error {
		var e error
		msg, e = svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return e
	})
	if err != nil {
		return RawEmail{}, err
	}
	return gmailToRaw(msg), nil
}

func (s *GmailSource) attempts() int {
	if s.Attempts <= 0 {
		return 1
	}
	return s.Attempts
}

func (s *GmailSource) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func gmailToRaw(msg *gmail.Message) RawEmail {
	email := RawEmail{
		ID:      msg.Id,
		Subject: gmailHeader(msg.Payload, "Subject"),
		Sender:  gmailHeader(msg.Payload, "From"),
		Body:    gmailBody(msg.Payload),
	}
	if msg.InternalDate > 0 {
		email.ReceivedAt = time.UnixMilli(msg.InternalDate).UTC()
	}
	return email
}

func gmailFetchError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &FetchError{Provider: models.ProviderGoogle, StatusCode: gErr.Code, Message: gErr.Message, Err: err}
	}
	return &FetchError{Provider: models.ProviderGoogle, Message: err.Error(), Err: err}
}
