package mailsource

import (
	"context"
	"fmt"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

// ErrNoSource means no adapter is registered for the requested provider.
var ErrNoSource = eris.New("no mail source registered")

// RawEmail is a provider message reduced to what extraction needs.
type RawEmail struct {
	ID         string
	Subject    string
	Sender     string
	ReceivedAt time.Time
	Body       string
}

// Query bounds a fetch. MaxResults of zero means no cap.
type Query struct {
	LookbackDays int
	MaxResults   int
}

func (q Query) since(now time.Time) time.Time {
	days := q.LookbackDays
	if days <= 0 {
		days = 1
	}
	return now.AddDate(0, 0, -days)
}

// Source fetches candidate job-application emails for one provider. It either
// returns every page up to the cap or an error, never a partial result.
type Source interface {
	Fetch(ctx context.Context, token *oauth2.Token, q Query) ([]RawEmail, error)
}

// FetchError is a provider failure surfaced to the caller.
type FetchError struct {
	Provider   models.Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s fetch failed: %s", e.Provider, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Unauthorized reports whether the provider rejected the credential.
func (e *FetchError) Unauthorized() bool {
	return e.StatusCode == 401
}

// Registry resolves a provider to its Source.
type Registry map[models.Provider]Source

func (r Registry) Get(p models.Provider) (Source, error) {
	src, ok := r[p]
	if !ok || src == nil {
		return nil, eris.Wrapf(ErrNoSource, "provider %q", p)
	}
	return src, nil
}
