package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-application-tracker/internal/handlers"
)

type ServeCmd struct {
	ShutdownTimeout time.Duration `name:"shutdown-timeout" default:"10s" help:"Grace period for in-flight requests."`
}

func (s *ServeCmd) Run(ctx *Context) error {
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(runCtx, ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	watcherDone := a.Classifier.StartWatcher(runCtx, ctx.Config.WatchInterval)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterDeps{
		Classifier:   a.Classifier,
		Applications: a.Applications,
		Credentials:  a.Credentials,
		AllowOrigins: ctx.Config.Origins(),
		Log:          ctx.Logger,
	})
	srv := &http.Server{
		Addr:              ctx.Config.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ctx.Logger.Info().Str("addr", srv.Addr).Msg("🚀 server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			<-watcherDone
			return err
		}
	case <-runCtx.Done():
	}

	ctx.Logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	<-watcherDone
	return err
}
