// Package rlogin implements the Rlogin client backend state machine:
// connection setup over a reserved source port, the four-field startup
// handshake, window-size reporting, and backpressure (spec.md §4.4).
package rlogin

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	"github.com/gravitational/trace"
	"github.com/rs/xid"

	"github.com/mayswind/putty-ng/lib/sshproto"
)

// ExitCode mirrors spec.md §4.4's three-valued exitcode() contract.
const (
	ExitCodeConnected   = -1
	ExitCodeSocketError = math.MaxInt32
	ExitCodeClean       = 0
)

// socketAdapter wraps a net.Conn as a sshproto.Socket, tracking the
// write-side backlog and freeze state the rest of the package reasons
// about abstractly.
type socketAdapter struct {
	conn   net.Conn
	frozen bool
	err    error
}

func (s *socketAdapter) Write(b []byte) (int, error) {
	if _, err := s.conn.Write(b); err != nil {
		s.err = err
		return 0, err
	}
	// A real implementation would report the kernel send-buffer backlog;
	// lacking a portable way to read it from net.Conn, we report 0 once
	// the write has been accepted by the kernel.
	return 0, nil
}
func (s *socketAdapter) Close() error   { return s.conn.Close() }
func (s *socketAdapter) SetFrozen(f bool) { s.frozen = f }
func (s *socketAdapter) Error() error    { return s.err }

// Client is the Rlogin backend state machine.
type Client struct {
	socket   sshproto.Socket
	conn     net.Conn
	frontend sshproto.Frontend
	conf     *sshproto.Config
	log      *slog.Logger
	connID   xid.ID

	realHost string

	closedOnSocketError bool
	bufsize             int
	firstbyte           bool
	cansize             bool
	termWidth           int
	termHeight          int

	remoteUsername string
	prompt         sshproto.Prompt
	startupSent    bool
	closed         bool
}

// Init opens a TCP connection to host:port (default 513), optionally over
// a reserved source port, and either sends the Rlogin startup sequence
// immediately (if conf carries a remote username) or arms an interactive
// prompt for it (spec.md §4.4 "init").
func Init(frontend sshproto.Frontend, conf *sshproto.Config, host string, port int,
	remoteUsername string, prompt sshproto.Prompt, nodelay, keepalive bool, log *slog.Logger) (*Client, error) {

	if err := resolveHost(host); err != nil {
		return nil, err
	}
	if port < 0 {
		port = defaultPort
	}

	raddr := joinHostPort(host, port)
	conn, err := dialReserved(raddr, 15*time.Second)
	if err != nil {
		return nil, trace.Wrap(err, "dialing rlogin host %q", host)
	}
	if err := applySocketOptions(conn, nodelay, keepalive); err != nil {
		_ = conn.Close()
		return nil, err
	}

	realHost := host
	if conf.LogHost != "" {
		realHost = conf.LogHost
		if idx := strings.LastIndex(realHost, ":"); idx >= 0 {
			realHost = realHost[:idx]
		}
	}

	if log == nil {
		log = slog.Default()
	}
	connID := xid.New()
	log = log.With(slog.String("component", "rlogin"), slog.String("conn_id", connID.String()))

	c := &Client{
		socket:    &socketAdapter{conn: conn},
		conn:      conn,
		frontend:  frontend,
		conf:      conf,
		log:       log,
		connID:    connID,
		realHost:  realHost,
		firstbyte: true,
	}

	if remoteUsername != "" {
		c.remoteUsername = remoteUsername
		c.sendStartup()
	} else {
		c.prompt = prompt
	}

	return c, nil
}

// RealHost returns the (possibly loghost-overridden) host to display to
// the user, corresponding to *realhost in spec.md §4.4 "init".
func (c *Client) RealHost() string { return c.realHost }

func (c *Client) sendStartup() {
	payload := encodeStartup(c.conf.LocalUsername, c.remoteUsername, c.conf.TermType, c.conf.TermSpeed)
	backlog, err := c.socket.Write(payload)
	if err != nil {
		c.log.Warn("failed to send rlogin startup sequence", slog.String("error", err.Error()))
		return
	}
	c.bufsize = backlog
	c.startupSent = true
	c.log.Debug("rlogin startup sent", slog.String("remote_user", c.remoteUsername))
}

// Send forwards user-typed bytes to the socket once the startup has been
// sent, or feeds them to the pending username prompt otherwise (spec.md
// §4.4 "send").
func (c *Client) Send(buf []byte) int {
	if c.prompt != nil {
		res := c.prompt.Feed(buf)
		if res.Cancel {
			c.prompt = nil
			_ = c.socket.Close()
			return 0
		}
		if !res.Ready {
			return 0
		}
		c.remoteUsername = res.Value
		c.prompt = nil
		c.sendStartup()
		return c.bufsize
	}

	if !c.startupSent {
		// Startup pending for another reason (should not normally
		// happen once a username is known); drop until ready.
		return 0
	}

	backlog, err := c.socket.Write(buf)
	if err != nil {
		c.log.Warn("rlogin write failed", slog.String("error", err.Error()))
		return 0
	}
	c.bufsize = backlog
	return backlog
}

// Size records new window geometry and, once the peer has signalled
// window-size capability, reports it immediately (spec.md §4.4 "size").
func (c *Client) Size(width, height int) {
	c.termWidth, c.termHeight = width, height
	if !c.cansize || c.closed {
		return
	}
	c.sendSize()
}

func (c *Client) sendSize() {
	if _, err := c.socket.Write(encodeWindowSize(c.termWidth, c.termHeight)); err != nil {
		c.log.Warn("failed to send rlogin window size", slog.String("error", err.Error()))
	}
}

// SendBuffer returns the last recorded write-side backlog.
func (c *Client) SendBuffer() int { return c.bufsize }

// Unthrottle freezes the socket once backlog exceeds the high-water mark
// and resumes it once drained (spec.md §5 "Backpressure").
func (c *Client) Unthrottle(backlog int) {
	c.socket.SetFrozen(backlog > highWaterMark)
}

// EnableWindowSize marks the peer as window-size capable and reports the
// current geometry immediately, for callers that cannot observe the real
// urgent-byte enable signal (see OnUrgentByte).
func (c *Client) EnableWindowSize() {
	c.cansize = true
	c.sendSize()
}

// OnUrgentByte handles a TCP urgent (out-of-band) byte (spec.md §4.4.1).
// Only 0x80 (window-size enable) has an effect; flush/flow-control bytes
// are documented but ignored.
func (c *Client) OnUrgentByte(b byte) {
	switch b {
	case urgentWindowSizeEnable:
		c.cansize = true
		c.sendSize()
	case urgentFlush, urgentStopOutput, urgentStartOutput:
		// Documented, intentionally ignored (spec.md §4.4.1).
	default:
		c.log.Debug("ignoring unknown rlogin urgent byte", slog.Int("byte", int(b)))
	}
}

// OnData delivers normal inbound bytes to the frontend, discarding the
// server's single leading NUL acknowledgement byte and applying
// backpressure from the frontend's reported backlog (spec.md §4.4.1).
func (c *Client) OnData(data []byte) {
	if c.firstbyte {
		c.firstbyte = false
		if len(data) > 0 && data[0] == 0x00 {
			data = data[1:]
		}
	}
	if len(data) == 0 {
		return
	}
	backlog := c.frontend.FromBackend(sshproto.DataNormal, data)
	c.socket.SetFrozen(backlog > highWaterMark)
}

// OnClose handles the peer closing the connection (spec.md §4.4.2). Rlogin
// has no half-close: closing always terminates the whole connection.
func (c *Client) OnClose(causeErr error) {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.socket.Close()
	if causeErr != nil {
		c.closedOnSocketError = true
		c.log.Error("rlogin connection closed with error", slog.String("error", causeErr.Error()))
		c.frontend.Fatal(causeErr)
	}
	c.frontend.Notify("rlogin: remote host closed the connection")
}

// ExitCode reports -1 while connected, ExitCodeSocketError if the
// connection closed because of a socket error, or 0 otherwise.
func (c *Client) ExitCode() int {
	if !c.closed {
		return ExitCodeConnected
	}
	if c.closedOnSocketError {
		return ExitCodeSocketError
	}
	return ExitCodeClean
}

// Connected reports whether the underlying socket is still open.
func (c *Client) Connected() bool { return !c.closed }

// SendOK always reports true: Rlogin has no credential-exchange phase that
// would make it unsafe to start sending before the connection is ready.
func (c *Client) SendOK() bool { return true }

// CfgInfo returns 0: Rlogin carries no backend-specific configuration
// summary value.
func (c *Client) CfgInfo() int { return 0 }

// The remaining operations named in spec.md §4.4 are no-ops for Rlogin:
// there are no session-layer specials, line discipline, or logging
// context to hand back, and reconfiguration has nothing live to apply
// beyond what Init already captured.
func (c *Client) Special()                       {}
func (c *Client) GetSpecials() []string          { return nil }
func (c *Client) Ldisc() bool                    { return false }
func (c *Client) ProvideLdisc()                  {}
func (c *Client) ProvideLogctx()                 {}
func (c *Client) Reconfig(conf *sshproto.Config) {}

// Run owns the client's read loop: it pumps inbound bytes from the
// underlying connection into OnData until the peer closes or an error
// occurs, then calls OnClose and returns the same error (nil on a clean
// close). Run never calls OnUrgentByte itself: net.Conn does not expose TCP
// urgent/out-of-band reads portably, so a caller that needs real window-size
// negotiation must read OOB data some other way and call OnUrgentByte
// directly.
func (c *Client) Run() error {
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.OnData(buf[:n])
		}
		if err != nil {
			var closeErr error
			if !errors.Is(err, io.EOF) {
				closeErr = err
			}
			c.OnClose(closeErr)
			return closeErr
		}
	}
}
