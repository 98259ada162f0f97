package mailsource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookSource searches the signed-in user's mailbox through Microsoft Graph.
type OutlookSource struct {
	BaseURL    string
	HTTPClient *http.Client
	PageSize   int
	Filter     SubjectFilter
	Attempts   int
	Backoff    time.Duration
	Log        zerolog.Logger

	now func() time.Time
}

func NewOutlookSource(log zerolog.Logger, baseURL string, client *http.Client) *OutlookSource {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &OutlookSource{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: client,
		PageSize:   50,
		Filter:     DefaultSubjectFilter(),
		Attempts:   3,
		Backoff:    time.Second,
		Log:        log,
		now:        time.Now,
	}
}

type graphMessage struct {
	ID               string `json:"id"`
	Subject          string `json:"subject"`
	ReceivedDateTime string `json:"receivedDateTime"`
	From             struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
}

type graphPage struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *OutlookSource) Fetch(ctx context.Context, token *oauth2.Token, q Query) ([]RawEmail, error) {
	if token == nil || token.AccessToken == "" {
		return nil, &FetchError{Provider: models.ProviderMicrosoft, StatusCode: http.StatusUnauthorized, Message: "missing access token"}
	}
	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient), oauth2.StaticTokenSource(token))

	since := q.since(s.clock())
	search := s.Filter.GraphSearch(since)
	log := s.Log.With().Str("provider", string(models.ProviderMicrosoft)).Str("search", search).Logger()

	top := s.PageSize
	if top <= 0 {
		top = 50
	}
	if q.MaxResults > 0 && q.MaxResults < top {
		top = q.MaxResults
	}
	params := url.Values{}
	params.Set("$search", search)
	params.Set("$select", "id,subject,from,receivedDateTime,body")
	params.Set("$top", strconv.Itoa(top))
	next := s.BaseURL + "/me/messages?" + params.Encode()

	// the KQL window is whole days, so Keep trims to the exact instant and
	// only kept messages count against the cap
	var emails []RawEmail
	scanned := 0
	for next != "" {
		var page graphPage
		link := next
		err := retry(ctx, log, s.attempts(), s.Backoff, func() error {
			var e error
			page, e = s.getPage(ctx, client, link)
			return e
		})
		if err != nil {
			return nil, err
		}
		for _, m := range page.Value {
			scanned++
			email := graphToRaw(m)
			if !s.Filter.Keep(email, since) {
				continue
			}
			emails = append(emails, email)
			if q.MaxResults > 0 && len(emails) >= q.MaxResults {
				log.Debug().Int("scanned", scanned).Int("kept", len(emails)).Msg("graph search reached cap")
				return emails, nil
			}
		}
		next = page.NextLink
	}
	log.Debug().Int("scanned", scanned).Int("kept", len(emails)).Msg("graph search complete")
	if emails == nil {
		emails = []RawEmail{}
	}
	return emails, nil
}

func (s *OutlookSource) getPage(ctx context.Context, client *http.Client, link string) (graphPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return graphPage{}, eris.Wrap(err, "build graph request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.body-content-type="text"`)

	resp, err := client.Do(req)
	if err != nil {
		return graphPage{}, &FetchError{Provider: models.ProviderMicrosoft, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return graphPage{}, &FetchError{Provider: models.ProviderMicrosoft, StatusCode: resp.StatusCode, Message: "read body", Err: err}
	}
	if resp.StatusCode/100 != 2 {
		msg := http.StatusText(resp.StatusCode)
		var gErr graphError
		if json.Unmarshal(body, &gErr) == nil && gErr.Error.Message != "" {
			msg = gErr.Error.Code + ": " + gErr.Error.Message
		}
		return graphPage{}, &FetchError{Provider: models.ProviderMicrosoft, StatusCode: resp.StatusCode, Message: msg}
	}

	var page graphPage
	if err := json.Unmarshal(body, &page); err != nil {
		return graphPage{}, &FetchError{Provider: models.ProviderMicrosoft, StatusCode: resp.StatusCode, Message: "decode graph page", Err: err}
	}
	return page, nil
}

func (s *OutlookSource) attempts() int {
	if s.Attempts <= 0 {
		return 1
	}
	return s.Attempts
}

func (s *OutlookSource) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func graphToRaw(m graphMessage) RawEmail {
	sender := m.From.EmailAddress.Address
	if name := m.From.EmailAddress.Name; name != "" {
		sender = name + " <" + sender + ">"
	}
	body := m.Body.Content
	if strings.EqualFold(m.Body.ContentType, "html") {
		body = htmlToText(body)
	}
	email := RawEmail{ID: m.ID, Subject: m.Subject, Sender: sender, Body: body}
	if t, err := time.Parse(time.RFC3339, m.ReceivedDateTime); err == nil {
		email.ReceivedAt = t.UTC()
	}
	return email
}
