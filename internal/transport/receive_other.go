//go:build !unix

package transport

import (
	"errors"
	"net/netip"
	"os"
	"time"
)

// pollWait bounds how long a read may wait when the platform offers no
// non-blocking recvfrom through RawConn.
const pollWait = time.Millisecond

// ReceiveFrom reads one datagram into buf, returning ErrWouldBlock if none
// arrives within pollWait.
func (u *UDP) ReceiveFrom(buf []byte) (int, netip.AddrPort, error) {
	if err := u.conn.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return 0, netip.AddrPort{}, err
	}

	n, addr, err := u.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, netip.AddrPort{}, ErrWouldBlock
		}
		return 0, netip.AddrPort{}, err
	}

	return n, unmap(addr), nil
}
