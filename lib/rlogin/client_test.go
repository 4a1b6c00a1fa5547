package rlogin

import (
	"testing"

	"github.com/gravitational/trace"

	"github.com/mayswind/putty-ng/lib/sshproto"
)

type mockSocket struct {
	written [][]byte
	frozen  bool
	closed  bool
}

func (m *mockSocket) Write(b []byte) (int, error) {
	m.written = append(m.written, append([]byte(nil), b...))
	return 0, nil
}
func (m *mockSocket) Close() error      { m.closed = true; return nil }
func (m *mockSocket) SetFrozen(f bool)  { m.frozen = f }
func (m *mockSocket) Error() error      { return nil }

type mockFrontend struct {
	backlog  int
	fatal    error
	notified []string
}

func (f *mockFrontend) FromBackend(sshproto.DataKind, []byte) int { return f.backlog }
func (f *mockFrontend) Fatal(err error)                           { f.fatal = err }
func (f *mockFrontend) Notify(msg string)                         { f.notified = append(f.notified, msg) }

type mockPrompt struct {
	feedCount int
	result    sshproto.PromptResult
}

func (p *mockPrompt) Feed([]byte) sshproto.PromptResult {
	p.feedCount++
	return p.result
}
func (p *mockPrompt) Cancel() {}

func newTestClient(sock *mockSocket, fe *mockFrontend) *Client {
	return &Client{
		socket:    sock,
		frontend:  fe,
		conf:      &sshproto.Config{LocalUsername: "alice", TermType: "xterm", TermSpeed: "38400"},
		firstbyte: true,
	}
}

func TestClientStartupSentImmediatelyWhenUsernameKnown(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)
	c.remoteUsername = "bob"
	c.sendStartup()

	if len(sock.written) != 1 {
		t.Fatalf("expected exactly one startup write, got %d", len(sock.written))
	}
	want := encodeStartup("alice", "bob", "xterm", "38400")
	if string(sock.written[0]) != string(want) {
		t.Errorf("startup = % x, want % x", sock.written[0], want)
	}
	if !c.startupSent {
		t.Errorf("startupSent should be true")
	}
}

func TestClientPromptThenStartup(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)
	prompt := &mockPrompt{result: sshproto.PromptResult{Ready: false}}
	c.prompt = prompt

	c.Send([]byte("b"))
	if len(sock.written) != 0 {
		t.Fatalf("no startup should be sent while prompt is incomplete")
	}

	prompt.result = sshproto.PromptResult{Ready: true, Value: "bob"}
	c.Send([]byte("ob\n"))

	if len(sock.written) != 1 {
		t.Fatalf("expected startup sent exactly once prompt completes, got %d writes", len(sock.written))
	}
	if c.prompt != nil {
		t.Errorf("prompt should be cleared once startup is sent")
	}
	want := encodeStartup("alice", "bob", "xterm", "38400")
	if string(sock.written[0]) != string(want) {
		t.Errorf("startup = % x, want % x", sock.written[0], want)
	}
}

func TestClientDiscardsLeadingAckByte(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{backlog: 0}
	c := newTestClient(sock, fe)

	c.OnData([]byte{0x00, 'h', 'i'})
	// second call should not strip anything further
	c.OnData([]byte{0x00, 'x'})

	// We can't directly inspect what reached the frontend without a
	// richer mock; re-derive via a capturing frontend.
	capt := &capturingFrontend{}
	c2 := newTestClient(sock, capt)
	c2.OnData([]byte{0x00, 'h', 'i'})
	c2.OnData([]byte{0x00, 'x'})

	if len(capt.received) != 2 {
		t.Fatalf("expected two deliveries, got %d", len(capt.received))
	}
	if string(capt.received[0]) != "hi" {
		t.Errorf("first delivery = %q, want %q (leading NUL stripped)", capt.received[0], "hi")
	}
	if string(capt.received[1]) != "\x00x" {
		t.Errorf("second delivery = %q, want %q (no further stripping)", capt.received[1], "\x00x")
	}
}

type capturingFrontend struct {
	received [][]byte
	backlog  int
}

func (f *capturingFrontend) FromBackend(kind sshproto.DataKind, data []byte) int {
	f.received = append(f.received, append([]byte(nil), data...))
	return f.backlog
}
func (f *capturingFrontend) Fatal(error)   {}
func (f *capturingFrontend) Notify(string) {}

func TestClientUrgentByteEnablesWindowSizeAndSendsIt(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)
	c.Size(80, 24)
	if len(sock.written) != 0 {
		t.Fatalf("size must not be sent before cansize is true")
	}

	c.OnUrgentByte(urgentWindowSizeEnable)
	if !c.cansize {
		t.Errorf("cansize should be true after urgent 0x80")
	}
	if len(sock.written) != 1 {
		t.Fatalf("expected window size frame sent on urgent enable, got %d writes", len(sock.written))
	}
	want := encodeWindowSize(80, 24)
	if string(sock.written[0]) != string(want) {
		t.Errorf("frame = % x, want % x", sock.written[0], want)
	}

	c.Size(100, 30)
	if len(sock.written) != 2 {
		t.Fatalf("resizing after cansize should send immediately")
	}
}

func TestClientIgnoresOtherUrgentBytes(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)
	c.OnUrgentByte(urgentFlush)
	c.OnUrgentByte(urgentStopOutput)
	c.OnUrgentByte(urgentStartOutput)
	if c.cansize {
		t.Errorf("non-0x80 urgent bytes must not enable window sizing")
	}
	if len(sock.written) != 0 {
		t.Errorf("non-0x80 urgent bytes must not write anything")
	}
}

func TestClientBackpressureFreezesOnHighBacklog(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{backlog: 5000}
	c := newTestClient(sock, fe)
	c.OnData([]byte{0x00, 'x'})
	if !sock.frozen {
		t.Errorf("socket should freeze when frontend backlog exceeds the high-water mark")
	}
}

func TestClientUnthrottle(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)
	c.Unthrottle(5000)
	if !sock.frozen {
		t.Errorf("expected frozen above high-water mark")
	}
	c.Unthrottle(10)
	if sock.frozen {
		t.Errorf("expected unfrozen below high-water mark")
	}
}

func TestClientCloseSemanticsSocketError(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)

	c.OnClose(trace.Errorf("connection reset"))

	if c.ExitCode() != ExitCodeSocketError {
		t.Errorf("ExitCode() = %d, want ExitCodeSocketError", c.ExitCode())
	}
	if fe.fatal == nil {
		t.Errorf("frontend should be notified fatally on socket error")
	}
	if len(fe.notified) == 0 {
		t.Errorf("frontend should be notified of remote exit")
	}
	if !sock.closed {
		t.Errorf("socket should be closed")
	}
}

func TestClientCloseSemanticsClean(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)

	if c.ExitCode() != ExitCodeConnected {
		t.Errorf("ExitCode() before close = %d, want ExitCodeConnected", c.ExitCode())
	}

	c.OnClose(nil)

	if c.ExitCode() != ExitCodeClean {
		t.Errorf("ExitCode() = %d, want ExitCodeClean", c.ExitCode())
	}
	if fe.fatal != nil {
		t.Errorf("frontend should not see a fatal error on clean close")
	}
}

func TestClientConnectedSendOKCfgInfo(t *testing.T) {
	sock := &mockSocket{}
	fe := &mockFrontend{}
	c := newTestClient(sock, fe)

	if !c.Connected() {
		t.Errorf("Connected() = false before close, want true")
	}
	if !c.SendOK() {
		t.Errorf("SendOK() = false, want true (rlogin has no credential-exchange phase)")
	}
	if got := c.CfgInfo(); got != 0 {
		t.Errorf("CfgInfo() = %d, want 0", got)
	}

	c.OnClose(nil)

	if c.Connected() {
		t.Errorf("Connected() = true after close, want false")
	}
}
