package main

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"meshdiag/internal/mesh"
)

func newNodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Simulated mesh node",
	}
	cmd.AddCommand(newNodeServeCmd())
	return cmd
}

func newNodeServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer diagnostic gets from a configured record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Node == nil {
				return errors.New("node config required")
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			rec, err := cfg.Node.Record()
			if err != nil {
				return err
			}
			groups, err := cfg.Node.NodeGroups()
			if err != nil {
				return err
			}
			rloc, err := netip.ParseAddr(cfg.Node.RLOC)
			if err != nil {
				return fmt.Errorf("node.rloc: %w", err)
			}

			node, err := mesh.ServeNode(cfg.Node.Listen, rloc, rec, groups, log)
			if err != nil {
				return err
			}
			defer node.Close()
			log.Info("simulated node serving", "addr", node.LocalAddr(), "rloc", rloc, "tlvs", len(rec))

			ctx, stop := signalContext()
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config")
	return cmd
}
