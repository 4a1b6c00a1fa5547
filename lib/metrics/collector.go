// Package metrics exposes Prometheus instrumentation for the version
// handshake and Rlogin backends as a single custom collector, in the style
// of a locked-map prometheus.Collector rather than package-level metric
// vars, so callers can hold several independently-labeled instances (for
// example one per listener) without colliding on the default registry.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mayswind/putty-ng/lib/sshvers"
)

// Collector aggregates counts across version handshakes and Rlogin
// connections. The zero value is not usable; construct with New.
type Collector struct {
	mu sync.Mutex

	handshakesByVersion map[int]uint64
	bugsTriggered       map[sshvers.BugFlag]uint64
	rloginConnections   int64
	rloginBacklogBytes  int64

	handshakeDesc *prometheus.Desc
	bugDesc       *prometheus.Desc
	connDesc      *prometheus.Desc
	backlogDesc   *prometheus.Desc
}

// New builds a Collector with the given constant labels applied to every
// metric it exports (for example {"listener": "eth0:22"}).
func New(constLabels prometheus.Labels) *Collector {
	return &Collector{
		handshakesByVersion: make(map[int]uint64),
		bugsTriggered:       make(map[sshvers.BugFlag]uint64),
		handshakeDesc: prometheus.NewDesc(
			"putty_ssh_handshakes_total",
			"Total number of completed SSH version handshakes, by negotiated major protocol version.",
			[]string{"major_version"}, constLabels,
		),
		bugDesc: prometheus.NewDesc(
			"putty_ssh_bugs_triggered_total",
			"Total number of times a peer-compatibility bug flag was detected, by flag name.",
			[]string{"bug"}, constLabels,
		),
		connDesc: prometheus.NewDesc(
			"putty_rlogin_connections",
			"Number of currently open rlogin client connections.",
			nil, constLabels,
		),
		backlogDesc: prometheus.NewDesc(
			"putty_rlogin_backlog_bytes",
			"Most recently reported rlogin write-side backlog, in bytes.",
			nil, constLabels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.handshakeDesc
	descs <- c.bugDesc
	descs <- c.connDesc
	descs <- c.backlogDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for major, count := range c.handshakesByVersion {
		metrics <- prometheus.MustNewConstMetric(c.handshakeDesc, prometheus.CounterValue,
			float64(count), majorVersionLabel(major))
	}
	for bug, count := range c.bugsTriggered {
		metrics <- prometheus.MustNewConstMetric(c.bugDesc, prometheus.CounterValue,
			float64(count), bug.ConfigKey())
	}
	metrics <- prometheus.MustNewConstMetric(c.connDesc, prometheus.GaugeValue, float64(c.rloginConnections))
	metrics <- prometheus.MustNewConstMetric(c.backlogDesc, prometheus.GaugeValue, float64(c.rloginBacklogBytes))
}

func majorVersionLabel(major int) string {
	switch major {
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "unknown"
	}
}

// ObserveHandshake records a completed handshake's negotiated major
// version and whichever bug flags were detected on it.
func (c *Collector) ObserveHandshake(majorVersion int, bugs sshvers.BugSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handshakesByVersion[majorVersion]++
	for _, flag := range sshvers.AllBugFlags() {
		if bugs.Has(flag) {
			c.bugsTriggered[flag]++
		}
	}
}

// RloginConnectionOpened increments the open-connections gauge.
func (c *Collector) RloginConnectionOpened() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rloginConnections++
}

// RloginConnectionClosed decrements the open-connections gauge.
func (c *Collector) RloginConnectionClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rloginConnections > 0 {
		c.rloginConnections--
	}
}

// SetRloginBacklog records the most recently observed write-side backlog.
func (c *Collector) SetRloginBacklog(bytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rloginBacklogBytes = int64(bytes)
}
