package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RenatoUtsch/redes-tp3/logger"
	"github.com/RenatoUtsch/redes-tp3/node"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster <topology.yaml>",
	Short: "Run a whole servent network in one process",
	Long: `Start every servent described by a YAML topology file and keep them running
until interrupted. Neighbors may name other servents of the file by ID.

Example topology:
  ttl: 3
  servents:
    - id: a
      port: 9000
      database: a.txt
      neighbors: [b]
    - id: b
      port: 9001
      entries: {baz: qux}
      neighbors: [a]`,
	Args: cobra.ExactArgs(1),
	RunE: runCluster,
}

func init() {
	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	if err := initLogger(true); err != nil {
		return err
	}

	topo, err := node.LoadTopology(args[0])
	if err != nil {
		return err
	}

	manager := node.NewManager()
	if err := manager.StartTopology(topo); err != nil {
		return fmt.Errorf("failed to start cluster: %w", err)
	}
	logger.Infof("Cluster of %d servents running", len(manager.GetNodes()))

	waitForSignal()

	logger.Info("Shutting down...")
	return manager.StopAll()
}
