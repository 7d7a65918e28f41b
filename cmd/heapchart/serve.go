package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heapchart/heapchart/heapchart"
	"github.com/heapchart/heapchart/heapchart/session"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// shutdown signal.
const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", a.cfg.Listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return a.serve(ctx, ln)
		},
	}
}

// serve runs the site on ln until ctx is done, then shuts down gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	storage, closeStorage, err := openStorage(a.cfg, a.logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			a.logger.Warn("close storage", "error", err)
		}
	}()

	sessions := session.New(session.Options{
		CookieName: a.cfg.Session.Cookie,
		TTL:        a.cfg.GetSessionTTL(),
		Secure:     a.cfg.Session.Secure,
		Logger:     a.logger,
	})
	defer sessions.Close()

	handler := heapchart.NewHandler(storage, sessions, &heapchart.HandlerConfig{Logger: a.logger})
	srv := &http.Server{
		Handler: heapchart.Chain(
			heapchart.WithRecovery(a.logger),
			heapchart.WithLogging(a.logger),
		)(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("heapchart listening",
			"addr", ln.Addr().String(),
			"storage", a.cfg.Storage.Backend,
		)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
