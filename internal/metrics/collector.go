// Package metrics exports harness activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "opsharness"
)

// Label names.
const (
	labelShell     = "shell"
	labelContainer = "container"
	labelMode      = "mode"
	labelResult    = "result"
)

// Label values.
const (
	modeForced   = "forced"
	modeFiltered = "filtered"
	modeFailed   = "failed"
	resultOK     = "ok"
	resultError  = "error"
)

// -------------------------------------------------------------------------
// Collector
// -------------------------------------------------------------------------

// Collector holds the harness metrics. It implements session.Metrics and
// node.Metrics.
type Collector struct {
	// Negotiations counts prompt negotiations by outcome. mode is "forced"
	// when the configuration shell accepted the custom prompt, "filtered"
	// when echo filtering is used instead and "failed" on error.
	Negotiations *prometheus.CounterVec

	// Commands counts commands sent to shells.
	Commands *prometheus.CounterVec

	// CommandDuration observes the time from send to prompt.
	CommandDuration *prometheus.HistogramVec

	// Crashes counts crash markers seen in shell output.
	Crashes *prometheus.CounterVec

	// Provisioning counts provisioning attempts per container.
	Provisioning *prometheus.CounterVec

	// ProvisioningDuration observes the time spent in NotifyPostBuild.
	ProvisioningDuration prometheus.Histogram

	// DiagnosticFailures counts diagnostic commands that failed.
	DiagnosticFailures *prometheus.CounterVec
}

// NewCollector creates a Collector registered against reg. If reg is nil,
// prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()
	reg.MustRegister(
		c.Negotiations,
		c.Commands,
		c.CommandDuration,
		c.Crashes,
		c.Provisioning,
		c.ProvisioningDuration,
		c.DiagnosticFailures,
	)
	return c
}

func newMetrics() *Collector {
	return &Collector{
		Negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "negotiations_total",
			Help:      "Total prompt negotiations by outcome.",
		}, []string{labelShell, labelMode}),

		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "commands_total",
			Help:      "Total commands sent to shells.",
		}, []string{labelShell, labelResult}),

		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "command_duration_seconds",
			Help:      "Time from sending a command to matching its prompt.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{labelShell}),

		Crashes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shell",
			Name:      "crashes_total",
			Help:      "Total crash markers detected in shell output.",
		}, []string{labelShell}),

		Provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "switch",
			Name:      "provisioning_total",
			Help:      "Total switch provisioning attempts by result.",
		}, []string{labelContainer, labelResult}),

		ProvisioningDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "switch",
			Name:      "provisioning_duration_seconds",
			Help:      "Time spent provisioning a switch.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		DiagnosticFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "switch",
			Name:      "diagnostic_failures_total",
			Help:      "Total diagnostic commands that failed.",
		}, []string{labelContainer}),
	}
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// -------------------------------------------------------------------------
// Shells
// -------------------------------------------------------------------------

// ObserveNegotiation records the outcome of a prompt negotiation.
func (c *Collector) ObserveNegotiation(shell string, custom bool, err error) {
	mode := modeFiltered
	switch {
	case err != nil:
		mode = modeFailed
	case custom:
		mode = modeForced
	}
	c.Negotiations.WithLabelValues(shell, mode).Inc()
}

// ObserveCommand records a command and how long its prompt took.
func (c *Collector) ObserveCommand(shell string, d time.Duration, err error) {
	c.Commands.WithLabelValues(shell, result(err)).Inc()
	c.CommandDuration.WithLabelValues(shell).Observe(d.Seconds())
}

// ObserveCrash records a crash marker.
func (c *Collector) ObserveCrash(shell string) {
	c.Crashes.WithLabelValues(shell).Inc()
}

// -------------------------------------------------------------------------
// Switches
// -------------------------------------------------------------------------

// ObserveProvisioning records a provisioning attempt.
func (c *Collector) ObserveProvisioning(container string, d time.Duration, err error) {
	c.Provisioning.WithLabelValues(container, result(err)).Inc()
	c.ProvisioningDuration.Observe(d.Seconds())
}

// ObserveDiagnostics records the failed commands of a diagnostics run.
func (c *Collector) ObserveDiagnostics(container string, failures int) {
	c.DiagnosticFailures.WithLabelValues(container).Add(float64(failures))
}
