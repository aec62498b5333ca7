// Package client issues key lookups against a servent and collects every
// response that arrives before the network goes quiet.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/RenatoUtsch/redes-tp3/logger"
	"github.com/RenatoUtsch/redes-tp3/protocol"
	"github.com/RenatoUtsch/redes-tp3/transport"
)

// DefaultTimeout bounds each wait for a response.
const DefaultTimeout = 4 * time.Second

var ErrServerRequired = errors.New("servent address is required")

// Config holds the client configuration
type Config struct {
	Server  netip.AddrPort
	Timeout time.Duration

	// Listen opens the socket used for one lookup. Defaults to an ephemeral
	// IPv4 UDP socket.
	Listen func() (transport.PacketConn, error)

	Strict bool
}

// Result is one response, tagged with the servent that sent it.
type Result struct {
	From     netip.AddrPort
	Response protocol.ResponseMessage
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %s", r.From, r.Response)
}

// Client performs lookups one at a time.
type Client struct {
	cfg   Config
	codec protocol.Codec
}

func New(cfg Config) (*Client, error) {
	if !cfg.Server.IsValid() {
		return nil, ErrServerRequired
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Listen == nil {
		cfg.Listen = func() (transport.PacketConn, error) {
			return transport.ListenUDP("0.0.0.0:0")
		}
	}
	return &Client{
		cfg:   cfg,
		codec: protocol.Codec{Strict: cfg.Strict},
	}, nil
}

// Server returns the servent the client sends requests to.
func (c *Client) Server() netip.AddrPort {
	return c.cfg.Server
}

// Lookup sends a CLIREQ for key and gathers responses. If nothing arrives
// within the timeout the request is sent once more. After that, responses are
// collected until a wait times out. onResponse, if set, sees each result as it
// arrives. Timeouts are not errors; the returned error is for socket failures
// and context cancellation only.
func (c *Client) Lookup(ctx context.Context, key string, onResponse func(Result)) ([]Result, error) {
	conn, err := c.cfg.Listen()
	if err != nil {
		return nil, fmt.Errorf("open socket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	clireq := protocol.EncodeClireq(key)
	send := func() error {
		if _, err := conn.WriteTo(clireq, c.cfg.Server); err != nil {
			return fmt.Errorf("send clireq to %s: %w", c.cfg.Server, err)
		}
		return nil
	}

	if err := send(); err != nil {
		return nil, err
	}

	var results []Result
	collect := func(r Result) {
		results = append(results, r)
		if onResponse != nil {
			onResponse(r)
		}
	}

	r, ok, err := c.receive(ctx, conn)
	if err != nil {
		return results, err
	}
	if ok {
		collect(r)
	} else {
		logger.Warnf("timeout, trying again...")
		if err := send(); err != nil {
			return results, err
		}
	}

	for {
		r, ok, err := c.receive(ctx, conn)
		if err != nil {
			return results, err
		}
		if !ok {
			logger.Infof("timeout, will stop receiving responses.")
			return results, nil
		}
		collect(r)
	}
}

// receive waits up to the timeout for one decodable response. ok is false when
// the wait timed out.
func (c *Client) receive(ctx context.Context, conn transport.PacketConn) (Result, bool, error) {
	buf := make([]byte, protocol.ResponseMessageSize+1)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, false, err
		}
		if err := conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
			return Result{}, false, fmt.Errorf("set deadline: %w", err)
		}

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, false, ctxErr
			}
			if transport.IsTimeout(err) {
				return Result{}, false, nil
			}
			return Result{}, false, fmt.Errorf("receive: %w", err)
		}

		resp, err := c.codec.DecodeResponse(buf[:n])
		if err != nil {
			logger.Errorf("Discarding datagram from %s: %v", from, err)
			continue
		}
		return Result{From: from, Response: resp}, true, nil
	}
}
