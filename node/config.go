package node

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/google/uuid"

	"github.com/RenatoUtsch/redes-tp3/database"
	"github.com/RenatoUtsch/redes-tp3/protocol"
	"github.com/RenatoUtsch/redes-tp3/transport"
)

// Default configuration constants
const (
	DefaultAddress = "0.0.0.0"
	DefaultPort    = "9000"
)

// Config holds the configuration for a servent node
type Config struct {
	// Node identification, only used to tag logs. Generated when empty.
	NodeID string

	// UDP socket the servent listens and sends on
	Address string
	Port    string

	// Dictionary file to answer from. Database, when set, is used instead.
	DatabasePath string
	Database     *database.Database

	// Servents to forward queries to, as ip:port
	Neighbors []string

	// Flooding configuration
	InitialTTL int
	Strict     bool

	// Optional admin surfaces, disabled when empty
	AdminAddress string
	HTTPAddress  string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Address:    DefaultAddress,
		Port:       DefaultPort,
		Neighbors:  []string{},
		InitialTTL: protocol.DefaultTTL,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrNodeIDRequired
	}
	if c.Port == "" {
		return ErrPortRequired
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, c.Port)
	}
	if c.DatabasePath == "" && c.Database == nil {
		return ErrDatabaseRequired
	}
	if c.InitialTTL < 1 || c.InitialTTL > protocol.MaxTTL {
		return fmt.Errorf("%w: %d", ErrInvalidTTL, c.InitialTTL)
	}
	if _, err := c.NeighborAddrs(); err != nil {
		return err
	}
	return nil
}

// GetAddress returns the full UDP address (address:port)
func (c *Config) GetAddress() string {
	return net.JoinHostPort(c.Address, c.Port)
}

// NeighborAddrs resolves the configured neighbors.
func (c *Config) NeighborAddrs() ([]netip.AddrPort, error) {
	addrs := make([]netip.AddrPort, 0, len(c.Neighbors))
	for _, n := range c.Neighbors {
		ap, err := transport.ResolveAddr(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNeighbor, err)
		}
		addrs = append(addrs, ap)
	}
	return addrs, nil
}

// NewNodeID returns a short random identifier for logs.
func NewNodeID() string {
	return "servent-" + uuid.NewString()[:8]
}
