package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"meshdiag/internal/api"
	"meshdiag/internal/metrics"
	"meshdiag/internal/model"
	"meshdiag/internal/tlv"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export diagnostics",
	}
	cmd.AddCommand(newExportCSVCmd())
	return cmd
}

func newExportCSVCmd() *cobra.Command {
	var (
		server  string
		out     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Collect one snapshot and write it as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if server == "" {
				return errors.New("--server is required")
			}
			if out == "" {
				return errors.New("--out is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			snap, err := api.NewClient(normalizeBaseURL(server)).Diagnostics(ctx)
			if err != nil {
				return err
			}

			file, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}
			defer file.Close()
			rows := snapshotRows(time.Now().UTC(), snap)
			if err := metrics.WriteCSV(file, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows from %d nodes to %s\n", len(rows), len(snap), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "diagnostics API address")
	cmd.Flags().StringVar(&out, "out", "", "output file")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}

func snapshotRows(at time.Time, snap api.Snapshot) []model.DiagnosticRow {
	var rows []model.DiagnosticRow
	for _, node := range snap {
		key := node.Key()
		for _, e := range node {
			rows = append(rows, model.DiagnosticRow{
				CollectedAt: at,
				Key:         key,
				Type:        e.Type,
				TypeName:    tlv.Type(e.Type).String(),
				Value:       string(e.Value),
			})
		}
	}
	return rows
}
