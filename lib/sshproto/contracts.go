package sshproto

// Socket is the abstract, already-connected transport both state machines
// are driven by. Sockets deliver inbound bytes to a Frontend out of band
// (via callbacks registered by the owning backend) and accept writes
// synchronously, reporting the resulting write-side backlog.
type Socket interface {
	// Write sends bytes to the peer and returns the current write
	// backlog (bytes queued but not yet flushed to the kernel).
	Write(b []byte) (backlog int, err error)
	// Close terminates the connection in both directions; Rlogin has no
	// half-close.
	Close() error
	// SetFrozen pauses (true) or resumes (false) delivery of inbound
	// bytes to the frontend, used for backpressure.
	SetFrozen(frozen bool)
	// Error returns the error that caused an asynchronous close, or nil
	// if the socket closed cleanly or is still open.
	Error() error
}

// DataKind distinguishes normal inbound bytes from server-to-client urgent
// (out-of-band) bytes.
type DataKind int

const (
	// DataNormal is an ordinary inbound payload byte.
	DataNormal DataKind = iota
	// DataUrgent is a TCP urgent/out-of-band byte (Rlogin control
	// signalling: window-size enable, flush, flow control).
	DataUrgent
)

// Frontend is the sink that receives bytes meant for display or an
// application-level event receiver. FromBackend returns the backlog the
// frontend reports back (e.g. terminal emulator scrollback pressure),
// which the backend may use to decide whether to freeze its socket.
type Frontend interface {
	FromBackend(kind DataKind, data []byte) (backlog int)
	// Fatal reports a connection-ending error to the user-facing layer.
	Fatal(err error)
	// Notify tells the frontend a remote peer has ended the session
	// (used by Rlogin's close semantics, spec.md §4.4.2).
	Notify(msg string)
}

// PromptResult is returned once an interactive prompt completes.
type PromptResult struct {
	// Ready carries the collected answer when the prompt has finished
	// successfully.
	Ready  bool
	Cancel bool
	Value  string
}

// Prompt models an interactive, possibly-asynchronous request for input
// (e.g. "rlogin username: ") whose answer may arrive across several
// Feed calls driven by frontend callbacks.
type Prompt interface {
	// Feed delivers bytes typed by the user (or nil to poll without new
	// input) and returns the prompt's current state.
	Feed(b []byte) PromptResult
	// Cancel aborts the prompt; used when the owning state machine is
	// freed while a prompt is outstanding.
	Cancel()
}

// Policy is the tri-valued override a user can apply to a single known-bug
// workaround.
type Policy int

const (
	// Auto lets the bug table's pattern match decide.
	Auto Policy = iota
	// ForceOn always enables the workaround.
	ForceOn
	// ForceOff always disables the workaround, even if AUTO would match.
	ForceOff
)

// Config is the immutable snapshot of configuration both state machines
// consume (spec.md §6). A zero-value Config is legal and reproduces stock
// (non-bare, auto-bug-detection) behaviour.
type Config struct {
	LocalUsername   string
	TermType        string
	TermSpeed       string
	LogHost         string
	AddressFamily   string
	SSHProtoVersion string
	BugPolicy       map[string]Policy
}

// BugOverride returns the configured policy for the named bug, defaulting
// to Auto when unset.
func (c *Config) BugOverride(bugKey string) Policy {
	if c == nil || c.BugPolicy == nil {
		return Auto
	}
	if p, ok := c.BugPolicy[bugKey]; ok {
		return p
	}
	return Auto
}
