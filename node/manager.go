package node

import (
	"fmt"
	"sync"
)

// Manager runs several servents in one process
type Manager struct {
	nodes   []*Node        // maintain start order
	nodeMap map[string]int // node ID -> index
	mu      sync.RWMutex
}

// NewManager creates a new node manager
func NewManager() *Manager {
	return &Manager{
		nodes:   make([]*Node, 0),
		nodeMap: make(map[string]int),
	}
}

// StartNode creates and starts a node from config
func (m *Manager) StartNode(config *Config) (*Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.NodeID != "" {
		if _, exists := m.nodeMap[config.NodeID]; exists {
			return nil, fmt.Errorf("node %q already exists", config.NodeID)
		}
	}

	node, err := New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	if err := node.Start(); err != nil {
		return nil, fmt.Errorf("failed to start node %s: %w", config.NodeID, err)
	}

	m.nodes = append(m.nodes, node)
	m.nodeMap[node.NodeID()] = len(m.nodes) - 1
	return node, nil
}

// StartTopology starts every servent of topo in order. On failure the nodes
// already started are stopped.
func (m *Manager) StartTopology(topo *Topology) error {
	configs, err := topo.Configs()
	if err != nil {
		return err
	}
	for _, config := range configs {
		if _, err := m.StartNode(config); err != nil {
			_ = m.StopAll()
			return err
		}
	}
	return nil
}

// Node returns the node with the given ID
func (m *Manager) Node(id string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.nodeMap[id]
	if !ok {
		return nil, false
	}
	return m.nodes[i], true
}

// GetNodes returns a list of all nodes (maintains order)
func (m *Manager) GetNodes() []*Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]*Node, len(m.nodes))
	copy(nodes, m.nodes)
	return nodes
}

// StopAll stops and forgets all nodes
func (m *Manager) StopAll() error {
	m.mu.Lock()
	nodes := m.nodes
	m.nodes = make([]*Node, 0)
	m.nodeMap = make(map[string]int)
	m.mu.Unlock()

	var errs []error
	for _, node := range nodes {
		if err := node.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors stopping nodes: %v", errs)
	}

	return nil
}
