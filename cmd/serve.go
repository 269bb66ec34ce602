package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			limiter := newClientLimiter(cfg)
			defer limiter.close()

			h := &gatewayHandler{
				service:      a.service,
				orchestrator: a.orchestrator,
				stats:        a.dispatchLog,
				log:          a.log,
			}
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           newRouter(h, cfg.GatewayToken, limiter),
				ReadHeaderTimeout: 10 * time.Second,
			}

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(sigCtx)
			g.Go(func() error {
				a.log.Infof("🚀 Starting %s on port %d (backends: %v)", gatewayName, cfg.Port, a.orchestrator.Backends())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.log.Info("Shutting down server...")

				// 给进行中的请求留出完成时间
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			a.log.Info("Server exited")
			return nil
		},
	}
}
