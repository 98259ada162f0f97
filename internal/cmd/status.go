package cmd

import (
	"context"
	"encoding/json"
)

type StatusCmd struct{}

func (s *StatusCmd) Run(ctx *Context) error {
	a, err := newApp(context.Background(), ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	grouped, err := a.Applications.ApplicationsByStatus(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(grouped)
}
