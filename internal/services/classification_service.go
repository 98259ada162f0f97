package services

import (
	"context"
	"sync"
	"time"

	"github.com/justsurfingit/job-application-tracker/internal/auth"
	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const StatusComplete = "complete"

// Summary is the aggregate outcome of one classification run. Per-email
// details go to the log only.
type Summary struct {
	Provider      models.Provider `json:"provider"`
	Status        string          `json:"status"`
	Fetched       int             `json:"fetched"`
	Skipped       int             `json:"skipped"`
	Extracted     int             `json:"extracted"`
	Absent        int             `json:"absent"`
	ParseFailures int             `json:"parse_failures"`
	ModelErrors   int             `json:"model_errors"`
	UpsertResult
}

// ClassificationService runs the fetch, extract, reconcile pipeline for one
// user and provider at a time.
type ClassificationService struct {
	DB           *gorm.DB
	Sources      mailsource.Registry
	Extractor    *ExtractionService
	Applications *ApplicationService
	Credentials  *auth.CredentialStore
	Query        mailsource.Query
	SweepTimeout time.Duration
	log          zerolog.Logger

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewClassificationService(
	db *gorm.DB,
	sources mailsource.Registry,
	extractor *ExtractionService,
	apps *ApplicationService,
	creds *auth.CredentialStore,
	q mailsource.Query,
	log zerolog.Logger,
) *ClassificationService {
	return &ClassificationService{
		DB:           db,
		Sources:      sources,
		Extractor:    extractor,
		Applications: apps,
		Credentials:  creds,
		Query:        q,
		SweepTimeout: 5 * time.Minute,
		log:          log,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

// Run classifies the user's recent mail with the configured query.
func (s *ClassificationService) Run(ctx context.Context, userID string, provider models.Provider, token *oauth2.Token) (Summary, error) {
	return s.RunQuery(ctx, userID, provider, token, s.Query)
}

// RunQuery is Run with an explicit lookback window and cap. A fetch failure
// fails the run; everything after the fetch degrades per email.
func (s *ClassificationService) RunQuery(ctx context.Context, userID string, provider models.Provider, token *oauth2.Token, q mailsource.Query) (Summary, error) {
	sum := Summary{Provider: provider}
	if token == nil || token.AccessToken == "" {
		return sum, eris.Wrapf(auth.ErrCredentialInvalid, "no bearer credential for user %s provider %s", userID, provider)
	}
	src, err := s.Sources.Get(provider)
	if err != nil {
		return sum, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	log := s.log.With().Str("user_id", userID).Str("provider", string(provider)).Logger()
	log.Info().Int("lookback_days", q.LookbackDays).Msg("📧 classification run starting")

	emails, err := src.Fetch(ctx, token, q)
	if err != nil {
		log.Error().Err(err).Msg("❌ fetch failed")
		return sum, err
	}
	sum.Fetched = len(emails)

	fresh, err := s.unprocessed(ctx, provider, emails)
	if err != nil {
		return sum, err
	}
	sum.Skipped = len(emails) - len(fresh)
	if len(fresh) == 0 {
		sum.Status = StatusComplete
		log.Info().Int("fetched", sum.Fetched).Msg("✅ no new relevant emails")
		return sum, nil
	}
	log.Info().Int("candidates", len(fresh)).Int("skipped", sum.Skipped).Msg("📥 processing candidate emails")

	for _, r := range s.Extractor.ExtractAll(ctx, fresh) {
		switch {
		case eris.Is(r.Err, ErrUnparseableReply):
			sum.ParseFailures++
		case r.Err != nil:
			sum.ModelErrors++
		case r.Record == nil:
			sum.Absent++
			s.markProcessed(ctx, provider, r.Email.ID, models.OutcomeAbsent)
		default:
			sum.Extracted++
			res := s.Applications.Upsert(ctx, []*models.ExtractedRecord{r.Record})
			sum.Attempted += res.Attempted
			sum.Committed += res.Committed
			sum.Inserted += res.Inserted
			sum.Updated += res.Updated
			sum.Dropped += res.Dropped
			sum.Failed += res.Failed
			if res.Committed > 0 {
				s.markProcessed(ctx, provider, r.Email.ID, models.OutcomePersisted)
			}
		}
	}

	sum.Status = StatusComplete
	log.Info().
		Int("fetched", sum.Fetched).
		Int("absent", sum.Absent).
		Int("parse_failures", sum.ParseFailures).
		Int("model_errors", sum.ModelErrors).
		Int("committed", sum.Committed).
		Int("dropped", sum.Dropped).
		Int("failed", sum.Failed).
		Msg("🔖 classification run complete")
	return sum, nil
}

// RunForStoredCredential runs with the credential saved at login.
func (s *ClassificationService) RunForStoredCredential(ctx context.Context, userID string, provider models.Provider) (Summary, error) {
	if s.Credentials == nil {
		return Summary{Provider: provider}, eris.Wrap(auth.ErrCredentialNotFound, "no credential store configured")
	}
	cred, err := s.Credentials.Get(ctx, userID, provider)
	if err != nil {
		return Summary{Provider: provider}, err
	}
	return s.Run(ctx, userID, cred.Provider, cred.Token())
}

// StartWatcher classifies mail for every stored, valid credential once
// immediately and then every interval until ctx is cancelled. The returned
// channel closes when the watcher has stopped.
func (s *ClassificationService) StartWatcher(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 || s.Credentials == nil {
		s.log.Warn().Msg("⚠️ mail watcher disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.log.Info().Msg("mail watcher stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
	s.log.Info().Dur("interval", interval).Msg("👀 mail watcher started")
	return done
}

func (s *ClassificationService) sweep(ctx context.Context) {
	if n, err := s.Credentials.PurgeExpired(ctx); err != nil {
		s.log.Warn().Err(err).Msg("⚠️ watcher could not purge expired credentials")
	} else if n > 0 {
		s.log.Info().Int64("purged", n).Msg("🧹 expired credentials removed")
	}
	creds, err := s.Credentials.ListValid(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("❌ watcher could not list credentials")
		return
	}
	for _, c := range creds {
		if ctx.Err() != nil {
			return
		}
		runCtx := ctx
		var cancel context.CancelFunc = func() {}
		if s.SweepTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, s.SweepTimeout)
		}
		if _, err := s.Run(runCtx, c.UserID, c.Provider, c.Token()); err != nil {
			s.log.Warn().Err(err).Str("user_id", c.UserID).Str("provider", string(c.Provider)).Msg("⚠️ watcher run failed")
		}
		cancel()
	}
}

func (s *ClassificationService) lockUser(userID string) func() {
	s.mu.Lock()
	if s.userLocks == nil {
		s.userLocks = make(map[string]*sync.Mutex)
	}
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// unprocessed drops emails already classified in an earlier run.
func (s *ClassificationService) unprocessed(ctx context.Context, provider models.Provider, emails []mailsource.RawEmail) ([]mailsource.RawEmail, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	ids := make([]string, len(emails))
	for i, e := range emails {
		ids[i] = e.ID
	}
	var seen []string
	err := s.DB.WithContext(ctx).Model(&models.ProcessedEmail{}).
		Where("provider = ? AND message_id IN ?", provider, ids).
		Pluck("message_id", &seen).Error
	if err != nil {
		return nil, eris.Wrap(err, "load processed emails")
	}
	done := make(map[string]bool, len(seen))
	for _, id := range seen {
		done[id] = true
	}
	fresh := make([]mailsource.RawEmail, 0, len(emails))
	for _, e := range emails {
		if !done[e.ID] {
			fresh = append(fresh, e)
		}
	}
	return fresh, nil
}

func (s *ClassificationService) markProcessed(ctx context.Context, provider models.Provider, messageID, outcome string) {
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedEmail{Provider: provider, MessageID: messageID, Outcome: outcome}).Error
	if err != nil {
		s.log.Warn().Err(err).Str("message_id", messageID).Msg("⚠️ could not mark email processed")
	}
}
