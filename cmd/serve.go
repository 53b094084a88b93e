package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/api"
)

var servePort int

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		port := cfg.Server.Port
		if servePort > 0 {
			port = servePort
		}
		srv := newServer(env, port)

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("api server starting", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return eris.Wrap(err, "server error")
			}
			return nil
		case <-ctx.Done():
		}

		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	},
}

// newServer builds the HTTP server around the API router.
func newServer(env *appEnv, port int) *http.Server {
	deps := api.Deps{
		Scorer:           env.Engine,
		Parser:           env.Parser,
		Breakers:         env.Breakers,
		ReasonExclusions: env.Replacement.ReasonExclusions,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
	}
	if env.Store != nil {
		deps.Store = env.Store
	}
	if env.Discovery != nil {
		deps.Discoverer = env.Discovery
	}
	if env.Search != nil {
		deps.Search = env.Search
	}
	if env.Chat != nil {
		deps.Chat = env.Chat
	}

	writeTimeout := time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second
	if writeTimeout > 0 {
		deps.RequestTimeout = writeTimeout
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout:      writeTimeout,
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override server.port")
	rootCmd.AddCommand(serveCmd)
}
