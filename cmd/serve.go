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

	"github.com/sells-group/leadgen/internal/api"
)

// shutdownTimeout bounds how long serve waits for requests and background
// jobs after a signal.
const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		// Background jobs share the signal context so a shutdown interrupts
		// enrichment and leaves unprocessed leads pending.
		apiSrv := api.NewServer(env.Store, env.Discovery, env.Enricher,
			api.WithCORSOrigins(cfg.Server.CORSOrigins),
			api.WithBackgroundContext(ctx),
		)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           apiSrv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if env.Pages != nil {
			go sweepPages(ctx, env, cfg.Crawl.CacheTTL())
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return eris.Wrap(err, "server listen")
			}
		case <-ctx.Done():
		}

		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
		apiSrv.Wait()
		return nil
	},
}

// sweepPages evicts expired cached pages until ctx is done.
func sweepPages(ctx context.Context, env *pipelineEnv, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := env.Pages.Sweep(); n > 0 {
				zap.L().Debug("page cache swept", zap.Int("evicted", n))
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
