package node

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/RenatoUtsch/redes-tp3/database"
	"github.com/RenatoUtsch/redes-tp3/logger"
	"github.com/RenatoUtsch/redes-tp3/servent"
	"github.com/RenatoUtsch/redes-tp3/transport"
)

// Node is one running servent: its UDP socket, flooding engine and optional
// admin servers.
type Node struct {
	config    *Config
	db        *database.Database
	neighbors []netip.AddrPort

	conn       *transport.UDP
	engine     *servent.Engine
	grpcServer *transport.GRPC
	httpServer *transport.HTTP

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
	serveErr error
	mu       sync.RWMutex
}

var _ transport.AdminHandler = (*Node)(nil)

// New creates a new node with the given configuration. The database is loaded
// here so a bad file is reported before any socket is bound.
func New(config *Config) (*Node, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.NodeID == "" {
		config.NodeID = NewNodeID()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db := config.Database
	if db == nil {
		var err error
		db, err = database.Load(config.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load database: %w", err)
		}
	}

	neighbors, err := config.NeighborAddrs()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		config:    config,
		db:        db,
		neighbors: neighbors,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}, nil
}

// Start binds the servent socket, starts the receive loop and the admin
// servers. Binding errors are returned synchronously.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return ErrAlreadyStarted
	}
	if n.ctx.Err() != nil {
		return ErrStopped
	}

	conn, err := transport.ListenUDP(n.config.GetAddress())
	if err != nil {
		return fmt.Errorf("failed to bind servent socket: %w", err)
	}

	engine, err := servent.New(servent.Config{
		NodeID:     n.config.NodeID,
		Database:   n.db,
		Neighbors:  n.neighbors,
		InitialTTL: n.config.InitialTTL,
		Strict:     n.config.Strict,
	}, conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to create engine: %w", err)
	}
	n.engine = engine

	if err := n.startAdmin(); err != nil {
		n.engine = nil
		_ = conn.Close()
		return err
	}
	n.conn = conn

	go func() {
		defer n.closeDone()
		if err := engine.Serve(n.ctx); err != nil {
			n.logf("Receive loop stopped: %v", err)
			n.mu.Lock()
			n.serveErr = err
			n.mu.Unlock()
		}
	}()

	n.logf("Node %s started on %s", n.config.NodeID, conn.LocalAddr())
	return nil
}

func (n *Node) startAdmin() error {
	if n.config.AdminAddress != "" {
		grpcServer, err := transport.NewGRPC(n.config.AdminAddress, n)
		if err != nil {
			return fmt.Errorf("failed to create gRPC admin server: %w", err)
		}
		if err := grpcServer.Start(); err != nil {
			return fmt.Errorf("failed to bind gRPC admin server: %w", err)
		}
		n.grpcServer = grpcServer
		n.logf("gRPC admin server listening on %s", grpcServer.Addr())
	}

	if n.config.HTTPAddress != "" {
		httpServer, err := transport.NewHTTP(n.config.HTTPAddress, n)
		if err != nil {
			return fmt.Errorf("failed to create HTTP status server: %w", err)
		}
		if err := httpServer.Start(); err != nil {
			if n.grpcServer != nil {
				_ = n.grpcServer.Stop()
			}
			return fmt.Errorf("failed to bind HTTP status server: %w", err)
		}
		n.httpServer = httpServer
		n.logf("HTTP status server listening on %s", httpServer.Addr())
	}
	return nil
}

// Stop stops the node gracefully
func (n *Node) Stop() error {
	n.mu.Lock()
	nodeID := n.config.NodeID
	started := n.conn != nil
	grpcServer := n.grpcServer
	httpServer := n.httpServer

	// Cancelling closes the socket, which unblocks the receive loop
	n.cancel()
	n.mu.Unlock()

	if !started {
		n.closeDone()
		return nil
	}

	n.logf("Stopping node %s...", nodeID)

	if grpcServer != nil {
		if err := grpcServer.Stop(); err != nil {
			n.logf("Error stopping gRPC server: %v", err)
		}
	}

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpServer.Stop(ctx); err != nil {
			n.logf("Error stopping HTTP server: %v", err)
		}
	}

	<-n.done
	n.logf("Node %s stopped", nodeID)
	return nil
}

func (n *Node) closeDone() {
	n.doneOnce.Do(func() { close(n.done) })
}

// Done is closed once the receive loop has returned, or by Stop on a node
// that never started.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Err returns why the receive loop stopped, nil after a clean Stop.
func (n *Node) Err() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.serveErr
}

// Addr returns the servent's UDP address; invalid before Start.
func (n *Node) Addr() netip.AddrPort {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.conn == nil {
		return netip.AddrPort{}
	}
	return n.conn.LocalAddr()
}

// AdminAddr returns the gRPC admin address, empty when disabled.
func (n *Node) AdminAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.grpcServer == nil {
		return ""
	}
	return n.grpcServer.Addr()
}

// HTTPAddr returns the HTTP status address, empty when disabled.
func (n *Node) HTTPAddr() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.httpServer == nil {
		return ""
	}
	return n.httpServer.Addr()
}

// GetConfig returns the node configuration (for external access)
func (n *Node) GetConfig() *Config {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.config
}

// NodeID implements transport.AdminHandler
func (n *Node) NodeID() string {
	return n.config.NodeID
}

// Stats implements transport.AdminHandler
func (n *Node) Stats() map[string]int64 {
	return n.EngineStats().Map()
}

// EngineStats returns the engine counters, zero before Start.
func (n *Node) EngineStats() servent.Stats {
	n.mu.RLock()
	engine := n.engine
	n.mu.RUnlock()
	if engine == nil {
		return servent.Stats{}
	}
	return engine.Stats()
}

// Lookup implements transport.AdminHandler; it reads the local database only.
func (n *Node) Lookup(key string) (string, bool) {
	return n.db.Lookup(key)
}

// Keys implements transport.AdminHandler
func (n *Node) Keys() []string {
	return n.db.Keys()
}

// logf logs using the global logger with the node ID as prefix
func (n *Node) logf(format string, args ...interface{}) {
	logger.WithNode(n.config.NodeID, logger.LevelInfo)(format, args...)
}
