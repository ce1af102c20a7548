// Package endpoint wires settings-driven sessions to real sockets: it
// dials initiator sessions, accepts acceptor sessions behind a socket
// shared by every session bound to the same port, and runs the reactor
// goroutine(s) that drive them all.
package endpoint

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// dialTCP performs a blocking IPv4 TCP connect, TCP_NODELAY applied
// before connect, a direct port of the original system's
// createClientSock. Non-blocking mode is the caller's responsibility
// once the connection is established, since the reactor that will
// drive it needs a non-blocking fd.
func dialTCP(host string, port int) (int, error) {
	ip, err := resolveIPv4(host)
	if err != nil {
		return -1, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("endpoint: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: setsockopt TCP_NODELAY: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], ip[:])
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: connect %s:%d: %w", host, port, err)
	}
	return fd, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	var out [4]byte
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil {
			return out, fmt.Errorf("endpoint: resolve %s: %w", host, err)
		}
		for _, candidate := range ips {
			if v4 := candidate.To4(); v4 != nil {
				ip = v4
				break
			}
		}
		if ip == nil {
			return out, fmt.Errorf("endpoint: no A record for %s", host)
		}
	}
	v4 := ip.To4()
	if v4 == nil {
		return out, fmt.Errorf("endpoint: %s is not an IPv4 address", host)
	}
	copy(out[:], v4)
	return out, nil
}

// listenTCP creates a non-blocking, SO_REUSEADDR, TCP_NODELAY IPv4
// listening socket on port, a direct port of createAcceptor.
func listenTCP(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("endpoint: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: setsockopt TCP_NODELAY: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: bind port %d: %w", port, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: listen port %d: %w", port, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("endpoint: set listener non-blocking: %w", err)
	}
	return fd, nil
}

func applyBufferSizes(fd, recvSize, sendSize int) {
	if recvSize > 0 {
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvSize)
	}
	if sendSize > 0 {
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, sendSize)
	}
}
