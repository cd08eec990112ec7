// Package transport provides the non-blocking UDP socket used by the SQP responder.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
)

// ErrWouldBlock is returned by ReceiveFrom when no datagram is ready.
var ErrWouldBlock = errors.New("transport: would block")

// UDP is a bound UDP socket whose reads never wait for data.
type UDP struct {
	conn *net.UDPConn
	raw  syscall.RawConn
}

// ListenUDP binds a UDP socket on address (host:port).
func ListenUDP(ctx context.Context, address string) (*UDP, error) {
	lc := listenConfig()
	pc, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP %s: %w", address, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("unexpected packet conn type %T", pc)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &UDP{conn: conn, raw: raw}, nil
}

// SendTo writes b as a single datagram to addr.
func (u *UDP) SendTo(b []byte, addr netip.AddrPort) error {
	_, err := u.conn.WriteToUDPAddrPort(b, addr)
	return err
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close releases the socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}

// unmap turns IPv4-mapped IPv6 senders into plain IPv4 so one client always
// maps to the same key.
func unmap(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}
