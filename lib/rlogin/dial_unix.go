//go:build linux || freebsd || openbsd || darwin || netbsd || dragonfly

package rlogin

import (
	"net"
	"strconv"
	"time"

	"github.com/gravitational/trace"
	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// reservedPortLow and reservedPortHigh bound the classic BSD rresvport(3)
// search range: Rlogin authenticates the client in part by the fact that
// only a privileged process can bind a source port below 1024.
const (
	reservedPortHigh = 1023
	reservedPortLow  = 512
)

// dialReserved dials raddr from a local port in [reservedPortLow,
// reservedPortHigh], trying ports from high to low and skipping any that
// are already in use, mirroring rresvport's retry loop.
func dialReserved(raddr string, timeout time.Duration) (net.Conn, error) {
	var lastErr error
	for port := reservedPortHigh; port >= reservedPortLow; port-- {
		d := net.Dialer{
			Timeout:   timeout,
			LocalAddr: &net.TCPAddr{Port: port},
		}
		conn, err := d.Dial("tcp", raddr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, trace.ConnectionProblem(lastErr, "no reserved source port available in %d-%d", reservedPortLow, reservedPortHigh)
}

// applySocketOptions sets TCP_NODELAY and SO_KEEPALIVE directly on conn's
// underlying file descriptor, per the nodelay/keepalive parameters to
// init() (spec.md §4.4).
func applySocketOptions(conn net.Conn, nodelay, keepalive bool) error {
	fd := netfd.GetFdFromConn(conn)
	if fd < 0 {
		return trace.BadParameter("could not obtain file descriptor for rlogin connection")
	}
	if nodelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			return trace.Wrap(err, "setting TCP_NODELAY")
		}
	}
	if keepalive {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
			return trace.Wrap(err, "setting SO_KEEPALIVE")
		}
	}
	return nil
}

// resolveHost resolves host to validate it before dialing, so a DNS
// failure is surfaced distinctly from a connection-refused failure
// (spec.md §4.4 step 1).
func resolveHost(host string) error {
	if _, err := net.LookupHost(host); err != nil {
		return trace.Wrap(err, "resolving rlogin host %q", host)
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
