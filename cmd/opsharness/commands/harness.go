package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acolita/openswitch-harness/internal/adapters/realclock"
	"github.com/acolita/openswitch-harness/internal/adapters/realfs"
	"github.com/acolita/openswitch-harness/internal/docker"
	"github.com/acolita/openswitch-harness/internal/metrics"
	"github.com/acolita/openswitch-harness/internal/node"
	"github.com/acolita/openswitch-harness/internal/recording"
	"github.com/acolita/openswitch-harness/internal/session"
)

const shutdownTimeout = 5 * time.Second

// harness bundles the clients behind one switch for the lifetime of a
// command.
type harness struct {
	client     *docker.Client
	sw         *node.Switch
	recordings *recording.Manager
	metricsSrv *http.Server
}

// openSwitch connects to the container engine and wires a switch for id.
// Shells are not connected until used.
func openSwitch(ctx context.Context, id string) (*harness, error) {
	client, err := docker.NewClient(ctx, docker.Options{
		Host:   cfg.Docker.Host,
		Binary: cfg.Docker.Binary,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}

	h := &harness{client: client}
	h.recordings = recording.NewManager(id, cfg.Shell.TranscriptDir, realfs.New(), realclock.New())

	sessionOpts := []session.Option{session.WithRecording(h.recordings)}
	nodeOpts := []node.Option{}
	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector(reg)
		sessionOpts = append(sessionOpts, session.WithMetrics(collector))
		nodeOpts = append(nodeOpts, node.WithMetrics(collector))
		h.serveMetrics(ctx, reg)
	}
	nodeOpts = append(nodeOpts, node.WithSessionOptions(sessionOpts...))

	h.sw = node.New(client.Container(id), cfg.NodeConfig(), nodeOpts...)
	return h, nil
}

func (h *harness) serveMetrics(ctx context.Context, reg *prometheus.Registry) {
	h.metricsSrv = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, reg)
	go func() {
		if err := metrics.Serve(ctx, h.metricsSrv); err != nil {
			slog.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	slog.Info("serving metrics",
		slog.String("addr", cfg.Metrics.Addr),
		slog.String("path", cfg.Metrics.Path),
	)
}

// shell returns the named shell, or the default one when name is empty.
func (h *harness) shell(name string) (*session.Session, error) {
	if name == "" {
		return h.sw.Shells().Default()
	}
	return h.sw.Shell(name)
}

// Close exits the shells and releases every client. It never fails.
func (h *harness) Close(ctx context.Context) {
	// Shells are left cleanly even after an interrupt.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	h.sw.Stop(stopCtx)
	h.recordings.CloseAll()
	for _, p := range h.recordings.Paths() {
		slog.Info("transcript saved", slog.String("path", p))
	}

	if h.metricsSrv != nil {
		if err := h.metricsSrv.Shutdown(stopCtx); err != nil {
			slog.Warn("metrics server shutdown", slog.String("error", err.Error()))
		}
	}
	if err := h.client.Close(); err != nil {
		slog.Warn("closing docker client", slog.String("error", err.Error()))
	}
}
