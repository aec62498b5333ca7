package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RenatoUtsch/redes-tp3/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "servent",
	Short: "Flooding key-value lookup network",
	Long: `A Gnutella-style peer-to-peer key lookup network over UDP.

Each servent answers lookups from its local dictionary and floods queries to
its neighbors until their TTL runs out. Clients send a key to one servent and
collect every answer that comes back.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Minimum log level (debug, info, warn, error)")
}

// initLogger sets up the global logger and applies --log-level.
func initLogger(writeToStdout bool) error {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger.Init("", writeToStdout)
	return logger.SetLevel(level)
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan
}
