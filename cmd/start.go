package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RenatoUtsch/redes-tp3/logger"
	"github.com/RenatoUtsch/redes-tp3/node"
	"github.com/RenatoUtsch/redes-tp3/protocol"
)

var (
	address    string
	port       string
	nodeID     string
	dbPath     string
	neighbors  []string
	initialTTL int
	strict     bool
	adminAddr  string
	httpAddr   string
)

var startCmd = &cobra.Command{
	Use:   "start [<port> <dictionary> [ip:port ...]]",
	Short: "Start a servent",
	Long: `Start a servent that answers from a dictionary file and floods queries to
its neighbors.

The dictionary holds one "key value" pair per line; lines starting with #
are ignored.

Examples:
  # Start a servent with flags
  servent start --port=9000 --db=dict.txt --neighbors=127.0.0.1:9001

  # Same, positional form
  servent start 9000 dict.txt 127.0.0.1:9001

  # Expose counters over gRPC and HTTP
  servent start 9001 other.txt --admin-addr=127.0.0.1:7001 --http-addr=127.0.0.1:8001`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return fmt.Errorf("positional form needs both <port> and <dictionary>")
		}
		return nil
	},
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	// Server flags
	startCmd.Flags().StringVarP(&address, "address", "a", node.DefaultAddress, "Address to bind the servent to")
	startCmd.Flags().StringVarP(&port, "port", "p", node.DefaultPort, "UDP port to bind the servent to")
	startCmd.Flags().StringVarP(&nodeID, "node-id", "n", "", "Node identifier used in logs (generated when empty)")
	startCmd.Flags().StringVarP(&dbPath, "db", "d", "", "Dictionary file to answer lookups from")

	// Flooding flags
	startCmd.Flags().StringSliceVarP(&neighbors, "neighbors", "s", []string{}, "Neighbor servent addresses (comma-separated ip:port)")
	startCmd.Flags().IntVar(&initialTTL, "ttl", protocol.DefaultTTL, "TTL given to queries originated here")
	startCmd.Flags().BoolVar(&strict, "strict", false, "Drop datagrams whose type tag does not match instead of decoding them anyway")

	// Admin flags
	startCmd.Flags().StringVar(&adminAddr, "admin-addr", "", "gRPC admin address (disabled when empty)")
	startCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP status address (disabled when empty)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if err := initLogger(true); err != nil {
		return err
	}

	config := node.DefaultConfig()
	config.NodeID = nodeID
	config.Address = address
	config.Port = port
	config.DatabasePath = dbPath
	config.Neighbors = neighbors
	config.InitialTTL = initialTTL
	config.Strict = strict
	config.AdminAddress = adminAddr
	config.HTTPAddress = httpAddr

	if len(args) >= 2 {
		config.Port = args[0]
		config.DatabasePath = args[1]
		config.Neighbors = append(config.Neighbors, args[2:]...)
	}

	n, err := node.New(config)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	if err := n.Start(); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}

	go func() {
		<-n.Done()
		if err := n.Err(); err != nil {
			logger.Errorf("Servent stopped: %v", err)
		}
	}()

	waitForSignal()

	logger.Info("Shutting down...")
	if err := n.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	return nil
}
