package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// PacketConn is the datagram endpoint the servent engine and the client run on.
// Addresses are plain IPv4 netip.AddrPort values so they compare equal to the
// neighbor addresses parsed from configuration.
type PacketConn interface {
	ReadFrom(buf []byte) (int, netip.AddrPort, error)
	WriteTo(buf []byte, addr netip.AddrPort) (int, error)
	SetReadDeadline(t time.Time) error
	LocalAddr() netip.AddrPort
	Close() error
}

// UDP is a PacketConn over an IPv4 UDP socket.
type UDP struct {
	conn *net.UDPConn
}

var _ PacketConn = (*UDP)(nil)

// ListenUDP binds addr ("host:port", ":port" or ":0" for an ephemeral port).
func ListenUDP(addr string) (*UDP, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP %q: %w", addr, err)
	}
	return &UDP{conn: conn}, nil
}

func (u *UDP) ReadFrom(buf []byte) (int, netip.AddrPort, error) {
	n, from, err := u.conn.ReadFromUDPAddrPort(buf)
	return n, unmap(from), err
}

func (u *UDP) WriteTo(buf []byte, addr netip.AddrPort) (int, error) {
	return u.conn.WriteToUDPAddrPort(buf, addr)
}

func (u *UDP) SetReadDeadline(t time.Time) error {
	return u.conn.SetReadDeadline(t)
}

// LocalAddr returns the bound address. An unspecified bind address is
// reported as 127.0.0.1 so it can be handed to peers on the same host.
func (u *UDP) LocalAddr() netip.AddrPort {
	ap := unmap(u.conn.LocalAddr().(*net.UDPAddr).AddrPort())
	if ap.Addr().IsUnspecified() {
		ap = netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), ap.Port())
	}
	return ap
}

func (u *UDP) Close() error {
	return u.conn.Close()
}

// IsTimeout reports whether err is a read deadline expiring.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsClosed reports whether err comes from using a closed connection.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// ResolveAddr parses "host:port" into an IPv4 address, resolving host names.
func ResolveAddr(addr string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		ap = unmap(ap)
		if !ap.Addr().Is4() {
			return netip.AddrPort{}, fmt.Errorf("address %q is not IPv4", addr)
		}
		return ap, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	ap := unmap(udpAddr.AddrPort())
	if !ap.Addr().Is4() {
		return netip.AddrPort{}, fmt.Errorf("address %q does not name an IPv4 host", addr)
	}
	return ap, nil
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
