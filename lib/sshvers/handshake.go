package sshvers

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/rs/xid"

	"github.com/mayswind/putty-ng/lib/sshproto"
)

// maxBannerLen caps the peer greeting line we will buffer. spec.md §9 notes
// the original is unbounded here; we impose a sane cap and treat overrun as
// a protocol error rather than follow that behaviour.
const maxBannerLen = 4096

const (
	sshPrefix     = "SSH-"
	bareConnPrefix = "SSHCONNECTION@putty.projects.tartarus.org-"
)

// Result is what the receiver is notified with once the handshake
// completes successfully.
type Result struct {
	SessionID          uuid.UUID
	MajorProtoVersion  int
	RemoteVersionLine  string // full "SSH-x.y-software" line, trimmed
	ProtoVersion       string
	SoftwareVersion    string
	Bugs               BugSet
}

// Receiver is notified once, exactly once, when the handshake concludes
// (successfully or not). After notification the Handshake must not be
// driven further; doing so is a programming error (spec.md §4.3.5).
type Receiver interface {
	OnVersionNegotiated(res Result)
	OnVersionError(err error)
}

type stage int

const (
	stageSearchPrefix stage = iota
	stageCollectTail
	stageDone
)

// Handshake is the resumable SSH version-string exchange state machine
// (spec.md §4.3). It is driven exclusively by HandleInput and is not safe
// for concurrent use — callers are expected to be single-threaded
// cooperative event-loop code, matching spec.md §5.
type Handshake struct {
	conf     *sshproto.Config
	frontend sshproto.Frontend
	socket   sshproto.Socket
	receiver Receiver
	log      *slog.Logger

	wantPrefix      []byte
	ourProtoVersion string
	productID       string
	sendEarly       bool
	bannerSent      bool

	vstring []byte
	stage   stage
	done    bool
	err     error

	sessionID uuid.UUID
	connID    xid.ID

	protoVersion    string
	softwareVersion string
	majorProto      int
	bugs            BugSet
}

// New creates a Handshake. bareMode selects the bare-connection prefix
// (spec.md §3 "want_prefix"); productID is the compile-time product
// identification string embedded in our own banner (spec.md §4.3.1
// "sshver").
func New(conf *sshproto.Config, frontend sshproto.Frontend, socket sshproto.Socket,
	bareMode bool, ourProtoVersion, productID string, receiver Receiver, log *slog.Logger) *Handshake {

	prefix := sshPrefix
	if bareMode {
		prefix = bareConnPrefix
	}
	if len(prefix) > 64 {
		panic("sshvers: want_prefix exceeds 64 bytes")
	}
	if log == nil {
		log = slog.Default()
	}
	connID := xid.New()
	log = log.With(slog.String("component", "sshvers"), slog.String("conn_id", connID.String()))

	return &Handshake{
		conf:            conf,
		frontend:        frontend,
		socket:          socket,
		receiver:        receiver,
		log:             log,
		wantPrefix:      []byte(prefix),
		ourProtoVersion: ourProtoVersion,
		productID:       productID,
		sendEarly:       !IncludesV1(ourProtoVersion),
		sessionID:       uuid.New(),
		connID:          connID,
	}
}

// buildBanner constructs "<prefix><proto>-<software><terminator>" per
// spec.md §4.3.1, substituting '-' and ' ' in the software tail with '_'.
func (h *Handshake) buildBanner(protoVersion string) []byte {
	software := h.productID
	software = replaceAll(software, '-', '_')
	software = replaceAll(software, ' ', '_')

	terminator := "\n"
	if IncludesV2(protoVersion) {
		terminator = "\r\n"
	}
	return []byte(fmt.Sprintf("%s%s-%s%s", h.wantPrefix, protoVersion, software, terminator))
}

func replaceAll(s string, from, to byte) string {
	b := []byte(s)
	for i := range b {
		if b[i] == from {
			b[i] = to
		}
	}
	return string(b)
}

// HandleInput is the idempotent resumable entry point: it consumes as many
// bytes as are currently available in chain and suspends (returns) when it
// needs more. Calling it after the receiver has been notified is a
// programming error.
func (h *Handshake) HandleInput(chain *sshproto.ByteChain) {
	if h.done {
		panic("sshvers: HandleInput called after handshake completion")
	}

	if h.sendEarly && !h.bannerSent {
		h.sendBanner(h.ourProtoVersion)
	}

	for {
		switch h.stage {
		case stageSearchPrefix:
			if !h.stepSearchPrefix(chain) {
				return
			}
		case stageCollectTail:
			if !h.stepCollectTail(chain) {
				return
			}
		case stageDone:
			return
		}
	}
}

// stepSearchPrefix implements spec.md §4.3.2. Returns false when it needs
// more bytes than currently available.
func (h *Handshake) stepSearchPrefix(chain *sshproto.ByteChain) bool {
	want := len(h.wantPrefix)
	if chain.Len() < want {
		return false
	}
	peek := chain.Peek(want)
	if bytes.Equal(peek, h.wantPrefix) {
		chain.Consume(want)
		h.vstring = append([]byte(nil), h.wantPrefix...)
		h.stage = stageCollectTail
		return true
	}

	// Non-matching line: discard through the next LF and retry.
	all := chain.Peek(chain.Len())
	idx := bytes.IndexByte(all, '\n')
	if idx < 0 {
		chain.Consume(len(all))
		return false
	}
	chain.Consume(idx + 1)
	return true
}

// stepCollectTail implements spec.md §4.3.3. Returns false when it needs
// more bytes.
func (h *Handshake) stepCollectTail(chain *sshproto.ByteChain) bool {
	if chain.Len() == 0 {
		return false
	}
	peek := chain.Peek(chain.Len())
	idx := bytes.IndexByte(peek, '\n')

	if idx < 0 {
		h.appendTail(peek)
		chain.Consume(len(peek))
		return false
	}

	h.appendTail(peek[:idx+1])
	chain.Consume(idx + 1)
	h.finish()
	return false
}

func (h *Handshake) appendTail(b []byte) {
	if len(h.vstring)+len(b) > maxBannerLen {
		h.fail(trace.LimitExceeded("peer version string exceeds %d bytes", maxBannerLen))
		h.vstring = nil
		return
	}
	// Geometric growth (x1.25 + 32) matching spec.md §4.3.3, applied via
	// append's own amortized-growth semantics with a pre-grow hint.
	need := len(h.vstring) + len(b)
	if cap(h.vstring) < need {
		newCap := cap(h.vstring)*5/4 + 32
		if newCap < need {
			newCap = need
		}
		grown := make([]byte, len(h.vstring), newCap)
		copy(grown, h.vstring)
		h.vstring = grown
	}
	h.vstring = append(h.vstring, b...)
}

func (h *Handshake) finish() {
	if h.err != nil {
		return
	}
	// Trim trailing CR/LF.
	line := h.vstring
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	h.vstring = line

	tail := line[len(h.wantPrefix):]
	dash := bytes.IndexByte(tail, '-')
	var proto, software string
	if dash < 0 {
		proto = string(tail)
		software = ""
	} else {
		proto = string(tail[:dash])
		software = string(tail[dash+1:])
	}
	if proto == "" {
		h.fail(trace.BadParameter("malformed SSH banner: empty protoversion in %q", string(line)))
		return
	}
	h.protoVersion = proto
	h.softwareVersion = software

	ourV1, ourV2 := IncludesV1(h.ourProtoVersion), IncludesV2(h.ourProtoVersion)
	peerV1, peerV2 := IncludesV1(proto), IncludesV2(proto)

	switch {
	case ourV2 && peerV2:
		h.majorProto = 2
	case ourV1 && peerV1:
		h.majorProto = 1
		if !h.sendEarly && VerCompare(h.ourProtoVersion, proto) > 0 {
			h.log.Debug("downgrading our protocol version to match remote",
				slog.String("ours", h.ourProtoVersion), slog.String("remote", proto))
			h.ourProtoVersion = proto
		}
	case !ourV2:
		h.fail(trace.BadParameter("SSH protocol version 1 required by our configuration but not provided by remote"))
		return
	default:
		h.fail(trace.BadParameter("SSH protocol version 2 required by our configuration but remote only provides (old, insecure) SSH-1"))
		return
	}

	if !h.sendEarly {
		h.sendBanner(h.ourProtoVersion)
	}

	h.bugs = DetectBugs(h.softwareVersion, h.conf)
	h.stage = stageDone
	h.done = true

	h.log.Info("SSH version handshake complete",
		slog.Int("major", h.majorProto),
		slog.String("remote", h.softwareVersion),
		slog.Int("bugs", int(h.bugs)))

	h.receiver.OnVersionNegotiated(Result{
		SessionID:         h.sessionID,
		MajorProtoVersion: h.majorProto,
		RemoteVersionLine: string(h.vstring),
		ProtoVersion:      h.protoVersion,
		SoftwareVersion:   h.softwareVersion,
		Bugs:              h.bugs,
	})
}

func (h *Handshake) fail(err error) {
	h.err = err
	h.stage = stageDone
	h.done = true
	h.log.Warn("SSH version handshake failed", slog.String("error", err.Error()))
	h.receiver.OnVersionError(err)
}

func (h *Handshake) sendBanner(protoVersion string) {
	banner := h.buildBanner(protoVersion)
	if _, err := h.socket.Write(banner); err != nil {
		h.fail(trace.Wrap(err, "writing SSH version banner"))
		return
	}
	h.bannerSent = true
}

// GetRemote returns the peer's full greeting line. Valid only after the
// receiver has been notified of success.
func (h *Handshake) GetRemote() string {
	h.assertComplete()
	return string(h.vstring)
}

// GetLocal returns the banner we transmitted. Valid only after the
// receiver has been notified of success.
func (h *Handshake) GetLocal() string {
	h.assertComplete()
	return string(h.buildBanner(h.ourProtoVersion))
}

// GetBugs returns the computed bug bitset. Valid only after the receiver
// has been notified of success.
func (h *Handshake) GetBugs() BugSet {
	h.assertComplete()
	return h.bugs
}

func (h *Handshake) assertComplete() {
	if !h.done || h.err != nil {
		panic("sshvers: accessed handshake result before successful completion")
	}
}

// Free releases the handshake. There is nothing to free beyond what the GC
// already reclaims, but it exists to match spec.md §4.3's public operation
// surface and to provide a single place for future cleanup.
func (h *Handshake) Free() {}
