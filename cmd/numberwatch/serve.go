package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prudhvinik1/numberwatch/internal/api"
)

func serveCmd() *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the operator API and the periodic sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			handler := api.NewHandler(a.sync, a.accounts, a.resources, a.alerts, a.audit, a.auth, a.audit, a.logger)
			server := &http.Server{
				Addr:              fmt.Sprintf(":%s", a.cfg.ServerPort),
				Handler:           api.NewRouter(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("starting server", zap.String("port", a.cfg.ServerPort))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			if withScheduler {
				g.Go(func() error {
					return a.scheduler.Run(gctx)
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}
			a.logger.Info("server stopped gracefully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run the periodic sync scheduler in-process")
	return cmd
}
