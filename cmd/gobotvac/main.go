package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/joshp123/gobotvac/internal/config"
	"github.com/joshp123/gobotvac/internal/core"
	"github.com/joshp123/gobotvac/internal/plugins"
	"github.com/joshp123/gobotvac/internal/router"
	"github.com/joshp123/gobotvac/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "gobotvac",
		Short:        "Neato Botvac daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the gRPC and HTTP servers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newLoginCmd(&configPath),
		&cobra.Command{
			Use:   "check-config",
			Short: "Load and validate the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				var enabled []string
				for id := range config.EnabledPlugins(cfg) {
					enabled = append(enabled, id)
				}
				slices.Sort(enabled)
				fmt.Fprintf(cmd.OutOrStdout(), "config ok: enabled %v, compiled %v\n", enabled, plugins.IDs())
				return nil
			},
		},
	)
	return root
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	enabled := config.EnabledPlugins(cfg)
	compiled := plugins.Compiled(cfg)
	if err := core.ValidatePlugins(compiled); err != nil {
		return err
	}
	if err := core.ValidateEnabledPlugins(compiled, enabled, false); err != nil {
		return err
	}
	active := core.FilterPlugins(compiled, enabled, false)

	if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
		log.Printf("write dashboards: %v", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	if err := router.RegisterPlugins(grpcServer.Server, active); err != nil {
		return err
	}

	registry := core.MetricsRegistry(active, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gobotvac_build_info",
		Help: "Build information",
	}, func() float64 { return 1 }))
	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.NewRouter(active, registry))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, plugin := range active {
		if starter, ok := plugin.(core.Starter); ok {
			starter.Start(ctx)
		}
	}

	errs := make(chan error, 2)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http serve: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Serve(); err != nil {
			errs <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	log.Printf("gobotvac listening grpc=%s http=%s plugins=%d", cfg.Core.GRPCAddr, cfg.Core.HTTPAddr, len(active))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Printf("shutting down")
	case serveErr = <-errs:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcServer.Server.GracefulStop()

	for _, plugin := range active {
		if closer, ok := plugin.(core.Closer); ok {
			closer.Close()
		}
	}
	return serveErr
}
