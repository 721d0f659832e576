package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"meshdiag/internal/diag"
	"meshdiag/internal/mesh"
	"meshdiag/internal/metrics"
	"meshdiag/internal/rest"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the diagnostics API and mesh transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Server == nil {
		return errors.New("server config required")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	sc := cfg.Server

	rloc, err := netip.ParseAddr(sc.Mesh.RLOC)
	if err != nil {
		return fmt.Errorf("server.mesh.rloc: %w", err)
	}
	routes, err := sc.Mesh.MeshRoutes()
	if err != nil {
		return err
	}
	transport, err := mesh.ListenUDP(sc.Mesh.Listen, routes, mesh.Options{
		ReplyWindow: sc.Mesh.ReplyWindow,
		Logger:      log.With("component", "mesh"),
	})
	if err != nil {
		return fmt.Errorf("mesh transport: %w", err)
	}
	defer transport.Close()
	log.Info("mesh transport listening", "addr", transport.LocalAddr(), "routes", len(routes))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs := metrics.NewPromObs(reg)

	engine, err := diag.New(transport, diag.Options{
		Target:         rloc,
		MulticastGroup: sc.Mesh.MulticastGroup,
		CollectTimeout: sc.Diagnostics.CollectTimeout,
		Retention:      sc.Diagnostics.Retention,
		Logger:         log.With("component", "diag"),
		Observer:       obs,
	})
	if err != nil {
		return err
	}

	srv, err := rest.NewServer(engine, rest.Options{
		Listen:          sc.Listen,
		DataDir:         sc.DataDir,
		PollInterval:    sc.PollInterval,
		ShutdownTimeout: sc.ShutdownTimeout,
		NodeTTL:         sc.NodeTTL,
		Logger:          log.With("component", "rest"),
		Gatherer:        reg,
		Metrics:         obs,
	})
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	return srv.Shutdown(context.Background())
}
