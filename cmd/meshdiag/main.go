package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "meshdiag",
		Short: "Mesh network diagnostics collector for border routers",
		Long: `meshdiag collects network diagnostics from a mesh.

Examples:
  meshdiag serve --config meshdiag.yaml
  meshdiag collect --server 127.0.0.1:8081 --format yaml
  meshdiag export csv --server 127.0.0.1:8081 --out diag.csv
  meshdiag stats --config meshdiag.yaml --window 15m
  meshdiag nodes --config meshdiag.yaml
  meshdiag node serve --config node.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newCollectCmd(),
		newExportCmd(),
		newStatsCmd(),
		newNodesCmd(),
		newNodeCmd(),
	)
	return root
}
