package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"meshdiag/internal/metrics"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		path       string
		window     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the diagnostics history of a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				if cfg.Server == nil {
					return errors.New("server config required")
				}
				path = filepath.Join(cfg.Server.DataDir, "diagnostics.csv")
			}
			rows, err := metrics.ReadCSV(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := metrics.Summarize(rows, time.Now().UTC().Add(-window))
			if summary.Rows == 0 {
				fmt.Fprintln(out, "no diagnostics in window")
				return nil
			}
			fmt.Fprintf(out, "collections=%d nodes=%d rows=%d from=%s to=%s\n",
				summary.Collections, summary.Nodes, summary.Rows,
				summary.From.Format(time.RFC3339), summary.To.Format(time.RFC3339))
			if summary.BatteryNodes > 0 {
				fmt.Fprintf(out, "battery nodes=%d avg=%.1f p5=%.1f min=%.0f max=%.0f\n",
					summary.BatteryNodes, summary.AvgBattery, summary.P5Battery, summary.MinBattery, summary.MaxBattery)
			}
			if summary.AvgSupplyMV > 0 {
				fmt.Fprintf(out, "supply voltage avg=%.0fmV\n", summary.AvgSupplyMV)
			}
			if summary.SentinelCount > 0 {
				fmt.Fprintf(out, "collections with unaddressed replies=%d\n", summary.SentinelCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&path, "path", "", "history CSV path override")
	cmd.Flags().DurationVar(&window, "window", 5*time.Minute, "time window")
	return cmd
}
