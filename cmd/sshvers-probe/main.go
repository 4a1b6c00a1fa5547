// Command sshvers-probe dials a remote host, runs the SSH version
// handshake state machine against the live connection, and prints the
// negotiated protocol version, peer software string, and detected
// compatibility bugs.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mayswind/putty-ng/lib/metrics"
	"github.com/mayswind/putty-ng/lib/sshproto"
	"github.com/mayswind/putty-ng/lib/sshvers"
)

var (
	app = kingpin.New("sshvers-probe", "Probe a host's SSH version banner and compatibility bugs.")

	target     = app.Arg("host:port", "Address to probe.").Required().String()
	bareMode   = app.Flag("bare", "Use the bare-connection protocol prefix instead of SSH-.").Bool()
	ourVersion = app.Flag("proto-version", "Protocol version to offer.").Default("2.0").String()
	productID  = app.Flag("product-id", "Software string to offer in our banner.").Default("sshvers-probe_1.0").String()
	timeout    = app.Flag("timeout", "Dial and handshake timeout.").Default("10s").Duration()
	metricsAddr = app.Flag("metrics-addr", "If set, serve Prometheus metrics on this address instead of exiting after one probe.").String()
)

type netSocket struct {
	conn net.Conn
}

func (s *netSocket) Write(b []byte) (int, error) { _, err := s.conn.Write(b); return 0, err }
func (s *netSocket) Close() error                 { return s.conn.Close() }
func (s *netSocket) SetFrozen(bool)               {}
func (s *netSocket) Error() error                  { return nil }

type discardFrontend struct{}

func (discardFrontend) FromBackend(sshproto.DataKind, []byte) int { return 0 }
func (discardFrontend) Fatal(error)                               {}
func (discardFrontend) Notify(string)                             {}

type probeReceiver struct {
	done chan sshvers.Result
	err  chan error
}

func (r *probeReceiver) OnVersionNegotiated(res sshvers.Result) { r.done <- res }
func (r *probeReceiver) OnVersionError(err error)                { r.err <- err }

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	collector := metrics.New(prometheus.Labels{"target": *target})
	prometheus.MustRegister(collector)

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Error("metrics server exited", slog.String("error", http.ListenAndServe(*metricsAddr, nil).Error()))
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := probe(ctx, *target, log, collector); err != nil {
		fmt.Fprintln(os.Stderr, "sshvers-probe:", err)
		os.Exit(1)
	}
}

func probe(ctx context.Context, addr string, log *slog.Logger, collector *metrics.Collector) error {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	conf := &sshproto.Config{SSHProtoVersion: *ourVersion}
	recv := &probeReceiver{done: make(chan sshvers.Result, 1), err: make(chan error, 1)}
	hs := sshvers.New(conf, discardFrontend{}, &netSocket{conn: conn}, *bareMode, *ourVersion, *productID, recv, log)

	chain := sshproto.NewByteChain()
	buf := make([]byte, 4096)

	for {
		select {
		case res := <-recv.done:
			collector.ObserveHandshake(res.MajorProtoVersion, res.Bugs)
			printResult(res)
			return nil
		case err := <-recv.err:
			return err
		default:
		}

		if dl, ok := ctx.Deadline(); ok {
			_ = conn.SetReadDeadline(dl)
		}
		n, err := conn.Read(buf)
		if n > 0 {
			chain.Append(buf[:n])
			hs.HandleInput(chain)
		}
		if err != nil {
			return fmt.Errorf("reading from %s: %w", addr, err)
		}
	}
}

func printResult(res sshvers.Result) {
	fmt.Printf("remote version line : %s\n", res.RemoteVersionLine)
	fmt.Printf("major protocol      : %d\n", res.MajorProtoVersion)
	fmt.Printf("protocol version    : %s\n", res.ProtoVersion)
	fmt.Printf("software version    : %s\n", res.SoftwareVersion)
	fmt.Printf("session id          : %s\n", res.SessionID)
	for _, flag := range sshvers.AllBugFlags() {
		if res.Bugs.Has(flag) {
			fmt.Printf("bug detected        : %s\n", flag.ConfigKey())
		}
	}
}
