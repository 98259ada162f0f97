package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/justsurfingit/job-application-tracker/internal/cmd"
	"github.com/justsurfingit/job-application-tracker/internal/logger"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "⚠️ could not read .env:", err)
	}

	cli := &cmd.CLI{}
	parser, err := kong.New(cli,
		kong.Name("jobtracker"),
		kong.Description("Track job applications from Gmail and Outlook mail."),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	kctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(os.Stderr, cli.LogLevel, cli.LogJSON)
	runCtx := &cmd.Context{
		Out:     os.Stdout,
		Config:  cli.Config,
		Logger:  log,
		Version: version,
	}
	if err := kctx.Run(runCtx); err != nil {
		log.Error().Err(err).Msg("❌ command failed")
		os.Exit(1)
	}
}
