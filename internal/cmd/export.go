package cmd

import (
	"context"
	"os"

	"github.com/justsurfingit/job-application-tracker/internal/export"
	"github.com/rotisserie/eris"
)

type ExportCmd struct {
	Out string `name:"out" short:"o" default:"applications.xlsx" help:"Output path for the XLSX workbook."`
}

func (e *ExportCmd) Run(ctx *Context) error {
	a, err := newApp(context.Background(), ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	grouped, err := a.Applications.ApplicationsByStatus(context.Background())
	if err != nil {
		return err
	}
	f, err := os.Create(e.Out)
	if err != nil {
		return eris.Wrapf(err, "create %s", e.Out)
	}
	if err := export.WriteWorkbook(f, grouped); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", e.Out)
	}
	ctx.Logger.Info().Str("path", e.Out).Msg("📄 workbook written")
	return nil
}
