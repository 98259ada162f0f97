package cmd

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

type ClassifyCmd struct {
	UserID   string `arg:"" name:"user-id" help:"User whose mailbox is classified."`
	Provider string `arg:"" name:"provider" help:"google (gmail) or microsoft (outlook)."`
	Token    string `name:"access-token" env:"ACCESS_TOKEN" help:"Bearer token; the stored credential is used when empty."`
}

func (c *ClassifyCmd) Run(ctx *Context) error {
	provider, ok := models.ParseProvider(c.Provider)
	if !ok {
		return eris.Errorf("unknown provider %q", c.Provider)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(runCtx, ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var summary services.Summary
	if c.Token != "" {
		summary, err = a.Classifier.Run(runCtx, c.UserID, provider, &oauth2.Token{AccessToken: c.Token, TokenType: "Bearer"})
	} else {
		summary, err = a.Classifier.RunForStoredCredential(runCtx, c.UserID, provider)
	}
	if err != nil {
		return err
	}
	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
