// Command rlogin-client dials an rlogin daemon, forwards the terminal's
// stdin to the remote session and the session's output to stdout, and
// reports connection lifecycle metrics.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mayswind/putty-ng/lib/metrics"
	"github.com/mayswind/putty-ng/lib/rlogin"
	"github.com/mayswind/putty-ng/lib/sshproto"
)

var (
	app = kingpin.New("rlogin-client", "Connect to a remote host over the rlogin protocol.")

	host           = app.Arg("host", "Remote host.").Required().String()
	port           = app.Flag("port", "Remote port.").Default("513").Int()
	localUser      = app.Flag("local-user", "Local username to present.").Default(currentUser()).String()
	remoteUser     = app.Flag("remote-user", "Remote username.").Required().String()
	termType       = app.Flag("term", "Terminal type to present.").Default("xterm").String()
	termSpeed      = app.Flag("speed", "Terminal speed to present.").Default("38400").String()
	noDelay        = app.Flag("nodelay", "Set TCP_NODELAY on the connection.").Default("true").Bool()
	keepAlive      = app.Flag("keepalive", "Set SO_KEEPALIVE on the connection.").Default("true").Bool()
	metricsAddr    = app.Flag("metrics-addr", "If set, serve Prometheus metrics on this address.").String()
)

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}

type stdoutFrontend struct {
	out *bufio.Writer
}

func (f *stdoutFrontend) FromBackend(kind sshproto.DataKind, data []byte) int {
	_, _ = f.out.Write(data)
	_ = f.out.Flush()
	return 0
}
func (f *stdoutFrontend) Fatal(err error) { fmt.Fprintln(os.Stderr, "rlogin-client: fatal:", err) }
func (f *stdoutFrontend) Notify(msg string) { fmt.Fprintln(os.Stderr, "rlogin-client:", msg) }

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	collector := metrics.New(prometheus.Labels{"host": *host})
	prometheus.MustRegister(collector)

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			log.Error("metrics server exited", slog.String("error", http.ListenAndServe(*metricsAddr, nil).Error()))
		}()
	}

	if err := run(log, collector); err != nil {
		fmt.Fprintln(os.Stderr, "rlogin-client:", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, collector *metrics.Collector) error {
	conf := &sshproto.Config{
		LocalUsername: *localUser,
		TermType:      *termType,
		TermSpeed:     *termSpeed,
	}

	frontend := &stdoutFrontend{out: bufio.NewWriter(os.Stdout)}

	client, err := rlogin.Init(frontend, conf, *host, *port, *remoteUser, nil, *noDelay, *keepAlive, log)
	if err != nil {
		return err
	}
	collector.RloginConnectionOpened()
	defer collector.RloginConnectionClosed()

	client.EnableWindowSize()

	go pumpStdin(client)

	err = client.Run()
	collector.SetRloginBacklog(client.SendBuffer())

	switch client.ExitCode() {
	case rlogin.ExitCodeSocketError:
		return fmt.Errorf("rlogin session ended with a socket error: %w", err)
	default:
		return nil
	}
}

func pumpStdin(client *rlogin.Client) {
	buf := make([]byte, 4096)
	in := os.Stdin
	for {
		n, err := in.Read(buf)
		if n > 0 {
			client.Send(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintln(os.Stderr, "rlogin-client: stdin read error:", err)
			}
			return
		}
	}
}
