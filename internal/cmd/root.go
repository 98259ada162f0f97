package cmd

import (
	"github.com/alecthomas/kong"
	"github.com/justsurfingit/job-application-tracker/internal/config"
)

type CLI struct {
	config.Config `embed:""`

	VersionFlag kong.VersionFlag `name:"version" help:"Print version."`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Run the HTTP API and the background mail watcher."`
	Classify ClassifyCmd `cmd:"" help:"Classify recent mail for one user and provider."`
	Status   StatusCmd   `cmd:"" help:"Print applications grouped by status as JSON."`
	Export   ExportCmd   `cmd:"" help:"Write applications grouped by status to an XLSX workbook."`
	Migrate  MigrateCmd  `cmd:"" help:"Create tables and indexes if absent."`
}
