package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/RenatoUtsch/redes-tp3/transport"
)

var statsLookup string

var statsCmd = &cobra.Command{
	Use:   "stats <admin-addr>",
	Short: "Print a servent's counters over gRPC",
	Long: `Connect to a servent started with --admin-addr and print its counters.
With --lookup the servent's local dictionary is queried as well, without
flooding.

Examples:
  servent stats 127.0.0.1:7001
  servent stats 127.0.0.1:7001 --lookup=foo`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsLookup, "lookup", "", "Also look up this key in the local dictionary")
}

func runStats(cmd *cobra.Command, args []string) error {
	c, err := transport.DialAdmin(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	out := cmd.OutOrStdout()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%-12s %v\n", k, stats[k])
	}

	if statsLookup != "" {
		value, ok, err := c.Lookup(ctx, statsLookup)
		if err != nil {
			return fmt.Errorf("failed to look up %q: %w", statsLookup, err)
		}
		if !ok {
			fmt.Fprintf(out, "%s: not found\n", statsLookup)
		} else {
			fmt.Fprintf(out, "%s\t%s\n", statsLookup, value)
		}
	}
	return nil
}
