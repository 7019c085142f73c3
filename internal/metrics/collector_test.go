package metrics_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/acolita/openswitch-harness/internal/metrics"
	"github.com/acolita/openswitch-harness/internal/node"
	"github.com/acolita/openswitch-harness/internal/session"
)

var (
	_ session.Metrics = (*metrics.Collector)(nil)
	_ node.Metrics    = (*metrics.Collector)(nil)
)

func TestNegotiations(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(prometheus.NewRegistry())

	c.ObserveNegotiation("vtysh", true, nil)
	c.ObserveNegotiation("vtysh", true, nil)
	c.ObserveNegotiation("bash", false, nil)
	c.ObserveNegotiation("vtysh", false, errors.New("timeout"))

	tests := []struct {
		shell, mode string
		want        float64
	}{
		{"vtysh", "forced", 2},
		{"bash", "filtered", 1},
		{"vtysh", "failed", 1},
		{"vtysh", "filtered", 0},
	}
	for _, tt := range tests {
		if got := counterValue(t, c.Negotiations, tt.shell, tt.mode); got != tt.want {
			t.Errorf("negotiations{%s,%s} = %v, want %v", tt.shell, tt.mode, got, tt.want)
		}
	}
}

func TestCommands(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(prometheus.NewRegistry())

	c.ObserveCommand("vtysh", 200*time.Millisecond, nil)
	c.ObserveCommand("vtysh", 2*time.Second, errors.New("crash"))
	c.ObserveCrash("vtysh")

	if got := counterValue(t, c.Commands, "vtysh", "ok"); got != 1 {
		t.Errorf("commands{ok} = %v, want 1", got)
	}
	if got := counterValue(t, c.Commands, "vtysh", "error"); got != 1 {
		t.Errorf("commands{error} = %v, want 1", got)
	}
	if got := counterValue(t, c.Crashes, "vtysh"); got != 1 {
		t.Errorf("crashes = %v, want 1", got)
	}

	h, err := c.CommandDuration.GetMetricWithLabelValues("vtysh")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	m := &dto.Metric{}
	if err := h.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("duration samples = %d, want 2", got)
	}
	if got := m.GetHistogram().GetSampleSum(); math.Abs(got-2.2) > 1e-9 {
		t.Errorf("duration sum = %v, want 2.2", got)
	}
}

func TestProvisioning(t *testing.T) {
	t.Parallel()

	c := metrics.NewCollector(prometheus.NewRegistry())

	c.ObserveProvisioning("sw1", 40*time.Second, nil)
	c.ObserveProvisioning("sw2", 5*time.Second, errors.New("setup"))
	c.ObserveDiagnostics("sw2", 3)
	c.ObserveDiagnostics("sw2", 0)

	if got := counterValue(t, c.Provisioning, "sw1", "ok"); got != 1 {
		t.Errorf("provisioning{sw1,ok} = %v, want 1", got)
	}
	if got := counterValue(t, c.Provisioning, "sw2", "error"); got != 1 {
		t.Errorf("provisioning{sw2,error} = %v, want 1", got)
	}
	if got := counterValue(t, c.DiagnosticFailures, "sw2"); got != 3 {
		t.Errorf("diagnostic failures = %v, want 3", got)
	}
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.ObserveCrash("valgrind")

	srv := metrics.NewServer("127.0.0.1:0", "", reg)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, metrics.DefaultPath, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `opsharness_shell_crashes_total{shell="valgrind"} 1`) {
		t.Errorf("body missing crash counter:\n%s", rec.Body.String())
	}
}

func TestServe_ListenError(t *testing.T) {
	srv := metrics.NewServer("256.0.0.1:bad", "/m", prometheus.NewRegistry())
	if err := metrics.Serve(context.Background(), srv); err == nil {
		t.Error("Serve() should fail on an invalid address")
	}
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
