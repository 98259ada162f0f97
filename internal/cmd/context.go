package cmd

import (
	"io"

	"github.com/justsurfingit/job-application-tracker/internal/config"
	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"github.com/rs/zerolog"
)

type Context struct {
	Out     io.Writer
	Config  config.Config
	Logger  zerolog.Logger
	Version string

	// Completer and Sources replace the configured model and mail
	// providers when set.
	Completer services.Completer
	Sources   mailsource.Registry
}
