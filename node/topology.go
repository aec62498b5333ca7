package node

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RenatoUtsch/redes-tp3/database"
	"github.com/RenatoUtsch/redes-tp3/protocol"
)

/*
Topology describes a set of servents to run in one process:

	host: 127.0.0.1
	ttl: 3
	servents:
	  - id: a
	    port: 9000
	    database: a.txt          # relative to the topology file
	    neighbors: [b]           # servent IDs or ip:port
	  - id: b
	    port: 9001
	    entries: {baz: qux}      # inline instead of a file
	    neighbors: [a, "10.0.0.5:9000"]
*/
type Topology struct {
	Host     string            `yaml:"host"`
	TTL      int               `yaml:"ttl"`
	Strict   bool              `yaml:"strict"`
	Servents []TopologyServent `yaml:"servents"`

	// directory relative database paths are resolved against
	baseDir string
}

// TopologyServent is one servent entry of a Topology
type TopologyServent struct {
	ID        string            `yaml:"id"`
	Port      int               `yaml:"port"`
	Database  string            `yaml:"database"`
	Entries   map[string]string `yaml:"entries"`
	Neighbors []string          `yaml:"neighbors"`
	Admin     string            `yaml:"admin"`
	HTTP      string            `yaml:"http"`
}

// LoadTopology reads a YAML topology file
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}
	topo, err := ParseTopology(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	topo.baseDir = filepath.Dir(path)
	return topo, nil
}

// ParseTopology decodes a YAML topology and checks servent IDs are unique
func ParseTopology(data []byte) (*Topology, error) {
	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, err
	}
	if topo.Host == "" {
		topo.Host = "127.0.0.1"
	}
	if topo.TTL == 0 {
		topo.TTL = protocol.DefaultTTL
	}
	if len(topo.Servents) == 0 {
		return nil, fmt.Errorf("topology has no servents")
	}

	seen := make(map[string]bool)
	for i, s := range topo.Servents {
		if s.ID == "" {
			return nil, fmt.Errorf("servent %d: %w", i, ErrNodeIDRequired)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("servent %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Port <= 0 || s.Port > 65535 {
			return nil, fmt.Errorf("servent %q: %w", s.ID, ErrInvalidPort)
		}
	}
	return &topo, nil
}

// Configs turns the topology into node configs, resolving neighbor IDs into
// host:port addresses.
func (t *Topology) Configs() ([]*Config, error) {
	ports := make(map[string]int, len(t.Servents))
	for _, s := range t.Servents {
		ports[s.ID] = s.Port
	}

	configs := make([]*Config, 0, len(t.Servents))
	for _, s := range t.Servents {
		config := DefaultConfig()
		config.NodeID = s.ID
		config.Address = t.Host
		config.Port = strconv.Itoa(s.Port)
		config.InitialTTL = t.TTL
		config.Strict = t.Strict
		config.AdminAddress = s.Admin
		config.HTTPAddress = s.HTTP

		switch {
		case s.Database != "":
			path := s.Database
			if !filepath.IsAbs(path) && t.baseDir != "" {
				path = filepath.Join(t.baseDir, path)
			}
			config.DatabasePath = path
		default:
			config.Database = database.New(s.Entries)
		}

		for _, n := range s.Neighbors {
			if port, ok := ports[n]; ok {
				config.Neighbors = append(config.Neighbors, net.JoinHostPort(t.Host, strconv.Itoa(port)))
				continue
			}
			if !strings.Contains(n, ":") {
				return nil, fmt.Errorf("servent %q: %w: unknown servent %q", s.ID, ErrInvalidNeighbor, n)
			}
			config.Neighbors = append(config.Neighbors, n)
		}

		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("servent %q: %w", s.ID, err)
		}
		configs = append(configs, config)
	}
	return configs, nil
}
