package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RenatoUtsch/redes-tp3/client"
	"github.com/RenatoUtsch/redes-tp3/logger"
	"github.com/RenatoUtsch/redes-tp3/transport"
)

var (
	clientTimeout time.Duration
	clientStrict  bool
)

var clientCmd = &cobra.Command{
	Use:   "client <ip:port>",
	Short: "Look up keys through a servent",
	Long: `Read keys from stdin, one per line, and print every answer the network
sends back. Each lookup resends once if nothing arrives within the timeout,
then waits for answers until the timeout passes with none.

Examples:
  servent client 127.0.0.1:9000
  echo foo | servent client 127.0.0.1:9000 --timeout=2s`,
	Args: cobra.ExactArgs(1),
	RunE: runClient,
}

func init() {
	rootCmd.AddCommand(clientCmd)

	clientCmd.Flags().DurationVarP(&clientTimeout, "timeout", "t", client.DefaultTimeout, "How long to wait for each answer")
	clientCmd.Flags().BoolVar(&clientStrict, "strict", false, "Skip answers whose type tag is not RESPONSE")
}

func newClient(server string) (*client.Client, error) {
	addr, err := transport.ResolveAddr(server)
	if err != nil {
		return nil, err
	}
	return client.New(client.Config{
		Server:  addr,
		Timeout: clientTimeout,
		Strict:  clientStrict,
	})
}

func runClient(cmd *cobra.Command, args []string) error {
	// Logs go to stderr so stdout only carries prompts and answers
	if err := initLogger(false); err != nil {
		return err
	}
	_ = logger.AddOutput(os.Stderr)

	c, err := newClient(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if err := c.Run(ctx, client.NewLineSource(cmd.InOrStdin(), out), out); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}
