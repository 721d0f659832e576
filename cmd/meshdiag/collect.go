package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"meshdiag/internal/api"
	"meshdiag/internal/tlv"
)

func newCollectCmd() *cobra.Command {
	var (
		server   string
		format   string
		async    bool
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect one diagnostics snapshot from the mesh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if server == "" {
				return fmt.Errorf("--server is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			snap, err := fetchSnapshot(ctx, api.NewClient(normalizeBaseURL(server)), async, interval)
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), snap, format)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "diagnostics API address")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&async, "async", false, "start the collection and poll it instead of one blocking request")
	cmd.Flags().DurationVar(&interval, "interval", 200*time.Millisecond, "poll interval with --async")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall timeout")
	return cmd
}

func fetchSnapshot(ctx context.Context, client *api.Client, async bool, interval time.Duration) (api.Snapshot, error) {
	if async {
		return client.Collect(ctx, interval)
	}
	return client.Diagnostics(ctx)
}

type yamlTLV struct {
	Type  uint8  `yaml:"type"`
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
}

type yamlNode struct {
	Key  string    `yaml:"key"`
	TLVs []yamlTLV `yaml:"tlvs"`
}

func writeSnapshot(w io.Writer, snap api.Snapshot, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml":
		nodes := make([]yamlNode, 0, len(snap))
		for _, node := range snap {
			yn := yamlNode{Key: node.Key(), TLVs: make([]yamlTLV, 0, len(node))}
			for _, e := range node {
				var v any
				if err := json.Unmarshal(e.Value, &v); err != nil {
					return err
				}
				yn.TLVs = append(yn.TLVs, yamlTLV{Type: e.Type, Name: tlv.Type(e.Type).String(), Value: v})
			}
			nodes = append(nodes, yn)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nodes); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
