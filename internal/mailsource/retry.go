package mailsource

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

// retry runs f up to attempts times with exponential backoff. Only transient
// failures (rate limits, 5xx, transport errors) are retried.
func retry(ctx context.Context, log zerolog.Logger, attempts int, sleep time.Duration, f func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = f(); err == nil {
			return nil
		}
		if !isTransient(err) || i == attempts-1 {
			return err
		}
		log.Warn().Err(err).Dur("backoff", sleep).Int("attempt", i+1).Msg("provider call failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return retryableStatus(gErr.Code)
	}
	var fErr *FetchError
	if errors.As(err, &fErr) {
		return fErr.StatusCode == 0 || retryableStatus(fErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
