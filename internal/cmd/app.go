package cmd

import (
	"context"

	"github.com/justsurfingit/job-application-tracker/internal/auth"
	"github.com/justsurfingit/job-application-tracker/internal/database"
	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"gorm.io/gorm"
)

// app holds the wired services shared by every subcommand.
type app struct {
	DB           *gorm.DB
	Credentials  *auth.CredentialStore
	Applications *services.ApplicationService
	Classifier   *services.ClassificationService
}

// newApp connects the database and, when withPipeline is set, builds the
// model client and mail sources as well.
func newApp(ctx context.Context, rc *Context, withPipeline bool) (*app, error) {
	cfg := rc.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := database.Connect(cfg.Database(), rc.Logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		DB:           db,
		Credentials:  auth.NewCredentialStore(db),
		Applications: services.NewApplicationService(db, rc.Logger),
	}
	if !withPipeline {
		return a, nil
	}

	completer := rc.Completer
	if completer == nil {
		if err := cfg.ValidateLLM(); err != nil {
			_ = database.Close(db)
			return nil, err
		}
		llm, err := services.NewLLMService(ctx, cfg.LLM(), rc.Logger)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		completer = llm
	}
	sources := rc.Sources
	if sources == nil {
		sources = mailsource.Registry{
			models.ProviderGoogle:    mailsource.NewGmailSource(rc.Logger),
			models.ProviderMicrosoft: mailsource.NewOutlookSource(rc.Logger, mailsource.DefaultGraphBaseURL, nil),
		}
	}
	a.Classifier = services.NewClassificationService(
		db,
		sources,
		services.NewExtractionService(completer, cfg.ExtractConcurrency, rc.Logger),
		a.Applications,
		a.Credentials,
		cfg.Query(),
		rc.Logger,
	)
	return a, nil
}

func (a *app) Close() error {
	return database.Close(a.DB)
}
