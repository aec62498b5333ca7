package node

import "errors"

var (
	ErrNodeIDRequired   = errors.New("node ID is required")
	ErrPortRequired     = errors.New("port is required")
	ErrInvalidPort      = errors.New("port must be a number between 0 and 65535")
	ErrDatabaseRequired = errors.New("database file is required")
	ErrInvalidNeighbor  = errors.New("invalid neighbor address")
	ErrInvalidTTL       = errors.New("initial ttl must be between 1 and 65535")
	ErrAlreadyStarted   = errors.New("node already started")
	ErrStopped          = errors.New("node already stopped")
)
