package cmd

import "context"

type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx *Context) error {
	a, err := newApp(context.Background(), ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Applications.EnsureSchema(); err != nil {
		return err
	}
	ctx.Logger.Info().Msg("✅ schema is up to date")
	return nil
}
