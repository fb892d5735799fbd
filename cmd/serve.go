package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/ratelimit"
	"github.com/sells-group/leadscore/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve", false)
		if err != nil {
			return err
		}
		defer env.Close()

		disc, err := initDiscoverer(env.Store)
		if err != nil {
			return err
		}
		searchLimiter, exportLimiter, mem, err := initLimiters(env.Store)
		if err != nil {
			return err
		}
		var cleanupDone <-chan struct{}
		if mem != nil {
			cleanupDone = ratelimit.StartCleanup(ctx, mem, time.Minute)
		} else {
			cleanupDone = ratelimit.StartCleanup(ctx, env.Store, 10*time.Minute)
		}

		srv := server.New(server.Deps{
			Discoverer:     disc,
			Analysis:       env.Analysis,
			Records:        env.Store,
			SearchLimiter:  searchLimiter,
			ExportLimiter:  exportLimiter,
			Breakers:       env.Guard.Breakers(),
			CORSOrigins:    cfg.Server.CORSOrigins,
			ExportMinScore: cfg.Export.MinScore,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		if err := srv.ListenAndServe(ctx, port); err != nil {
			return err
		}

		// Let accepted batches finish their current items.
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := env.Analysis.Wait(waitCtx); err != nil {
			zap.L().Warn("batches still running at shutdown", zap.Error(err))
		}
		<-cleanupDone
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
