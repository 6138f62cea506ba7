package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"segmentation-tracker/internal/server"
	"segmentation-tracker/pkg/errors"
	"segmentation-tracker/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API used by the dashboard",
	Long: `Serve exposes batch management, catalog reconciliation, roster and
metrics routes as a JSON API. OpenAPI documentation is served under
<base-path>/docs.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":5000", "listen address")
	serveCmd.Flags().String("base-path", "/api", "route prefix for the API")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.base_path", serveCmd.Flags().Lookup("base-path"))
}

func newHandler(a *app) (http.Handler, error) {
	return server.New(server.Config{
		Batches:      a.batches,
		Metrics:      a.metrics,
		Roster:       a.roster,
		Reconciler:   a.reconciler,
		Sync:         a.sync,
		Seed:         a.seed,
		SeedFile:     a.cfg.Batches.SeedFile,
		Expected:     a.cfg.Batches.Expected,
		Stores:       a.stores.pingers,
		BasePath:     a.cfg.Server.BasePath,
		Version:      version,
		CatalogLimit: a.cfg.Server.CatalogLimit,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(a *app) error {
		handler, err := newHandler(a)
		if err != nil {
			return err
		}

		cfg := a.cfg.Server
		srv := &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			a.logger.WithFields(logger.Fields{
				"addr":      cfg.Addr,
				"base_path": cfg.BasePath,
				"driver":    a.cfg.Store.Driver,
			}).Info("HTTP API listening")
			serveErr <- srv.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			if err != http.ErrServerClosed {
				return errors.InternalError("serve", err).
					WithSuggestion("check that " + cfg.Addr + " is free").
					WithContext("addr", cfg.Addr)
			}
			return nil
		case <-ctx.Done():
		}

		a.logger.Info("Shutting down HTTP API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.InternalError("shutdown", err)
		}
		return nil
	})
}
