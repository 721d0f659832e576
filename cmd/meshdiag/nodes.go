package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"meshdiag/internal/api"
	"meshdiag/internal/store"
)

func newNodesCmd() *cobra.Command {
	var (
		configPath string
		server     string
	)
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List nodes seen in completed snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var nodes []store.NodeInfo
			switch {
			case server != "":
				resp, err := api.NewClient(normalizeBaseURL(server)).Nodes(cmd.Context())
				if err != nil {
					return err
				}
				nodes = resp.Nodes
			default:
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				if cfg.Server == nil {
					return errors.New("server config required")
				}
				reg, err := store.LoadRegistry(filepath.Join(cfg.Server.DataDir, "registry.yaml"))
				if err != nil {
					return err
				}
				nodes = reg.Nodes
			}
			printNodes(cmd.OutOrStdout(), nodes)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML config")
	cmd.Flags().StringVar(&server, "server", "", "diagnostics API address (instead of --config)")
	return cmd
}

func printNodes(w io.Writer, nodes []store.NodeInfo) {
	if len(nodes) == 0 {
		fmt.Fprintln(w, "no known nodes")
		return
	}
	fmt.Fprintf(w, "%-8s  %-16s  %-5s  %-7s  %-20s  %-6s\n",
		"KEY", "EXT_ADDRESS", "MODE", "BATTERY", "LAST_SEEN", "SEEN")
	for _, n := range nodes {
		battery := "-"
		if n.Battery != nil {
			battery = fmt.Sprintf("%d%%", *n.Battery)
		}
		lastSeen := ""
		if !n.LastSeenAt.IsZero() {
			lastSeen = n.LastSeenAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-8s  %-16s  %-5s  %-7s  %-20s  %-6d\n",
			n.Key, n.ExtAddress, n.Mode, battery, lastSeen, n.Collections)
	}
}
