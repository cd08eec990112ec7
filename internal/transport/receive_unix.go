//go:build unix

package transport

import (
	"errors"
	"net/netip"
	"os"
	"syscall"
)

// ReceiveFrom reads one queued datagram into buf with a single non-blocking
// recvfrom. It returns ErrWouldBlock when the socket has nothing to read.
func (u *UDP) ReceiveFrom(buf []byte) (int, netip.AddrPort, error) {
	var (
		n     int
		from  syscall.Sockaddr
		opErr error
	)

	err := u.raw.Read(func(fd uintptr) bool {
		n, from, opErr = syscall.Recvfrom(int(fd), buf, 0)
		return true
	})
	if err != nil {
		return 0, netip.AddrPort{}, err
	}

	if opErr != nil {
		if errors.Is(opErr, syscall.EAGAIN) || errors.Is(opErr, syscall.EINTR) {
			return 0, netip.AddrPort{}, ErrWouldBlock
		}
		return 0, netip.AddrPort{}, os.NewSyscallError("recvfrom", opErr)
	}

	return n, sockaddrToAddrPort(from), nil
}

func sockaddrToAddrPort(sa syscall.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *syscall.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *syscall.SockaddrInet6:
		return unmap(netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port)))
	default:
		return netip.AddrPort{}
	}
}
