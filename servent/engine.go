// Package servent implements the flooding engine of a servent: it turns client
// requests into queries, drops queries it has already seen, forwards the rest
// to its neighbors while their TTL lasts and answers the ones its database knows.
package servent

/*
Processing of one datagram

	CLIREQ   -> new query (fresh sequence, origin = sender, initial TTL)
	QUERY    -> decoded query, TTL already decremented by one
	RESPONSE -> unexpected at a servent: logged and dropped

	then, for the query:
	  identity already seen?  -> drop
	  ttl > 0?                -> re-encode and send to every neighbor but the sender
	  key in database?        -> RESPONSE straight to the origin address

Forwarding and answering are independent, a query can trigger both. Everything
runs on the receive goroutine, so the seen set and the sequence counter need no
locking. Counters are atomic since admin surfaces read them concurrently.
*/

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/RenatoUtsch/redes-tp3/database"
	"github.com/RenatoUtsch/redes-tp3/logger"
	"github.com/RenatoUtsch/redes-tp3/protocol"
	"github.com/RenatoUtsch/redes-tp3/transport"
)

// receiveBufferSize leaves room for datagrams larger than any well-formed
// message so oversized keys are still seen up to their terminator.
const receiveBufferSize = 2048

var (
	ErrConnRequired     = errors.New("packet connection is required")
	ErrDatabaseRequired = errors.New("database is required")
)

// Config holds what an Engine needs besides its socket
type Config struct {
	NodeID     string
	Database   *database.Database
	Neighbors  []netip.AddrPort
	InitialTTL int

	// Strict rejects datagrams whose tag does not match the decoder used
	// instead of logging and decoding them anyway.
	Strict bool
}

// Engine is the decision logic of one servent
type Engine struct {
	nodeID    string
	db        *database.Database
	neighbors []netip.AddrPort
	creator   *protocol.QueryCreator
	codec     protocol.Codec
	conn      transport.PacketConn

	seen  map[protocol.QueryIdentity]struct{}
	stats counters
}

// New creates an engine answering from cfg.Database and sending on conn.
func New(cfg Config, conn transport.PacketConn) (*Engine, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if cfg.Database == nil {
		return nil, ErrDatabaseRequired
	}

	neighbors := make([]netip.AddrPort, len(cfg.Neighbors))
	for i, n := range cfg.Neighbors {
		neighbors[i] = netip.AddrPortFrom(n.Addr().Unmap(), n.Port())
	}

	e := &Engine{
		nodeID:    cfg.NodeID,
		db:        cfg.Database,
		neighbors: neighbors,
		creator:   protocol.NewQueryCreator(cfg.InitialTTL),
		conn:      conn,
		seen:      make(map[protocol.QueryIdentity]struct{}),
	}
	e.codec = protocol.Codec{Strict: cfg.Strict}
	if cfg.NodeID != "" {
		e.codec.LogFn = logger.WithNode(cfg.NodeID, logger.LevelWarn)
	}
	return e, nil
}

// Serve runs the receive loop until ctx is cancelled or the connection is
// closed. Datagrams are handled one at a time, in arrival order.
func (e *Engine) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.Close()
	})
	defer stop()

	e.logf(logger.LevelInfo, "Listening on %s with %d neighbor(s), %d key(s)",
		e.conn.LocalAddr(), len(e.neighbors), e.db.Len())

	buf := make([]byte, receiveBufferSize)
	for {
		n, from, err := e.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if transport.IsClosed(err) {
				return fmt.Errorf("receive: %w", err)
			}
			e.logf(logger.LevelError, "Receive failed: %v", err)
			continue
		}
		e.HandleDatagram(buf[:n], from)
	}
}

// HandleDatagram processes one datagram received from `from`. It never fails:
// malformed or unexpected messages are logged and dropped.
func (e *Engine) HandleDatagram(data []byte, from netip.AddrPort) {
	e.stats.received.Add(1)
	from = netip.AddrPortFrom(from.Addr().Unmap(), from.Port())

	msgType, err := protocol.DecodeType(data)
	if err != nil {
		e.stats.malformed.Add(1)
		e.logf(logger.LevelError, "Dropping datagram from %s: %v", from, err)
		return
	}

	var query protocol.QueryMessage
	switch msgType {
	case protocol.Clireq:
		key, err := e.codec.DecodeClireq(data)
		if err != nil {
			e.stats.malformed.Add(1)
			e.logf(logger.LevelError, "Dropping CLIREQ from %s: %v", from, err)
			return
		}
		e.stats.clireqs.Add(1)
		query = e.creator.NewQuery(key, from)
		e.logf(logger.LevelInfo, "Received clireq, new %s", query)

	case protocol.Query:
		query, err = e.codec.DecodeQuery(data)
		if err != nil {
			e.stats.malformed.Add(1)
			e.logf(logger.LevelError, "Dropping QUERY from %s: %v", from, err)
			return
		}
		e.stats.queries.Add(1)
		e.logf(logger.LevelInfo, "Received %s from %s", query, from)

	default:
		e.stats.responses.Add(1)
		e.logf(logger.LevelError, "Servent received %s message from %s", msgType, from)
		return
	}

	e.process(query, from)
}

func (e *Engine) process(query protocol.QueryMessage, from netip.AddrPort) {
	if _, dup := e.seen[query.Identity]; dup {
		e.stats.duplicates.Add(1)
		e.logf(logger.LevelInfo, "Query already seen: %s", query)
		return
	}
	e.seen[query.Identity] = struct{}{}
	e.stats.seen.Store(int64(len(e.seen)))

	e.forward(query, from)
	e.answer(query)
}

// forward floods query to every neighbor except the one it came from.
func (e *Engine) forward(query protocol.QueryMessage, from netip.AddrPort) {
	if query.TTL <= 0 || len(e.neighbors) == 0 {
		return
	}

	packed, err := protocol.EncodeQuery(query)
	if err != nil {
		e.logf(logger.LevelError, "Cannot forward %s: %v", query, err)
		return
	}

	for _, neighbor := range e.neighbors {
		if neighbor == from {
			continue
		}
		e.logf(logger.LevelInfo, "Forwarding query to %s", neighbor)
		if _, err := e.conn.WriteTo(packed, neighbor); err != nil {
			e.stats.sendErrors.Add(1)
			e.logf(logger.LevelWarn, "Forward to %s failed: %v", neighbor, err)
			continue
		}
		e.stats.forwarded.Add(1)
	}
}

// answer sends a RESPONSE to the query's origin when the key is known.
func (e *Engine) answer(query protocol.QueryMessage) {
	value, ok := e.db.Lookup(query.Identity.Key)
	if !ok {
		return
	}

	origin := query.Identity.Origin
	e.logf(logger.LevelInfo, "Sending response to %s", origin)
	if _, err := e.conn.WriteTo(protocol.EncodeResponse(query.Identity.Key, value), origin); err != nil {
		e.stats.sendErrors.Add(1)
		e.logf(logger.LevelWarn, "Response to %s failed: %v", origin, err)
		return
	}
	e.stats.answered.Add(1)
}

func (e *Engine) logf(level logger.Level, format string, args ...interface{}) {
	if e.nodeID == "" {
		logger.Logf(level, format, args...)
		return
	}
	logger.Logf(level, "[%s] %s", e.nodeID, fmt.Sprintf(format, args...))
}
