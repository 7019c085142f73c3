// Package node provisions an OpenSwitch container and exposes its shells,
// ports and capabilities to test code.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acolita/openswitch-harness/internal/adapters/realclock"
	"github.com/acolita/openswitch-harness/internal/adapters/realfs"
	"github.com/acolita/openswitch-harness/internal/adapters/realhost"
	"github.com/acolita/openswitch-harness/internal/ports"
	"github.com/acolita/openswitch-harness/internal/session"
)

// State is the provisioning state of a switch.
type State string

const (
	StateCreated      State = "created"
	StateBooting      State = "booting"
	StateProvisioning State = "provisioning"
	StateReady        State = "ready"
	StateFailed       State = "failed"
)

// Artifact and script names in the shared directory.
const (
	SetupScriptName      = "openswitch_setup.py"
	PortMappingFile      = "port_mapping.json"
	CapabilitiesFile     = "capabilities.json"
	DefaultSharedDirPath = "/tmp"
)

// Product names reported by "show version".
const (
	ProductGenericX86   = "genericx86-64"
	ProductGenericX86P4 = "genericx86-p4"
)

// ErrInvalidState is returned when an operation does not apply to the
// current state.
var ErrInvalidState = errors.New("invalid switch state")

// ProvisioningError reports a failed setup. Err is the original failure.
type ProvisioningError struct {
	Container string
	Stage     string
	Err       error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision %s: %s: %v", e.Container, e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Config locates the shared directory and tunes the shells.
type Config struct {
	// SharedDir is the host side of the directory bind mounted into the
	// container.
	SharedDir string

	// SharedDirMount is where SharedDir appears inside the container.
	SharedDirMount string

	// Netns is the namespace holding the front panel interfaces.
	Netns string

	// Shells tunes the default shell profiles.
	Shells session.ProfileOptions
}

func (c Config) withDefaults() Config {
	if c.SharedDirMount == "" {
		c.SharedDirMount = DefaultSharedDirPath
	}
	if c.Netns == "" {
		c.Netns = "swns"
	}
	if c.Shells.Netns == "" {
		c.Shells.Netns = c.Netns
	}
	return c
}

// Metrics receives provisioning events.
type Metrics interface {
	ObserveProvisioning(container string, d time.Duration, err error)
	ObserveDiagnostics(container string, failures int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveProvisioning(string, time.Duration, error) {}
func (nopMetrics) ObserveDiagnostics(string, int)                   {}

// Option configures a Switch.
type Option func(*Switch)

// WithFileSystem sets the filesystem holding the shared directory.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(s *Switch) {
		s.fs = fs
	}
}

// WithHost sets the execution machine used for diagnostics.
func WithHost(h ports.Host) Option {
	return func(s *Switch) {
		s.host = h
	}
}

// WithClock sets the clock.
func WithClock(c ports.Clock) Option {
	return func(s *Switch) {
		s.clock = c
	}
}

// WithMetrics reports provisioning events to m.
func WithMetrics(m Metrics) Option {
	return func(s *Switch) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSessionOptions applies opts to every shell.
func WithSessionOptions(opts ...session.Option) Option {
	return func(s *Switch) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// WithIDGenerator sets the generator of diagnostics run IDs.
func WithIDGenerator(gen func() string) Option {
	return func(s *Switch) {
		s.newID = gen
	}
}

// Result describes a provisioning attempt.
type Result struct {
	Container   string
	ProductName string
	Ports       map[string]string
	SharedDir   string
	// Artifacts are diagnostic files found in the shared directory.
	Artifacts   []string
	Diagnostics *Diagnostics
}

// Switch is an OpenSwitch container under test.
type Switch struct {
	container   ports.Container
	cfg         Config
	fs          ports.FileSystem
	host        ports.Host
	clock       ports.Clock
	metrics     Metrics
	newID       func() string
	sessionOpts []session.Option
	shells      *session.Manager
	ports       *PortMap

	mu           sync.Mutex
	state        State
	productName  string
	capabilities Capabilities
	capacities   Capacities
}

// New creates a switch for container and registers its shells. vtysh is
// the default shell.
func New(container ports.Container, cfg Config, opts ...Option) *Switch {
	s := &Switch{
		container:    container,
		cfg:          cfg.withDefaults(),
		fs:           realfs.New(),
		host:         realhost.New(),
		clock:        realclock.New(),
		metrics:      nopMetrics{},
		newID:        uuid.NewString,
		ports:        NewPortMap(nil),
		state:        StateCreated,
		capabilities: Capabilities{},
		capacities:   Capacities{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shells = session.NewManager(container, s.sessionOpts...)
	for _, p := range session.DefaultProfiles(s.cfg.Shells) {
		if _, err := s.shells.Register(p); err != nil {
			// Default profile names are distinct.
			panic(err)
		}
	}
	return s
}

// ID returns the container ID.
func (s *Switch) ID() string {
	return s.container.ID()
}

// State returns the provisioning state.
func (s *Switch) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Shells returns the shell registry.
func (s *Switch) Shells() *session.Manager {
	return s.shells
}

// Shell returns the shell called name.
func (s *Switch) Shell(name string) (*session.Session, error) {
	return s.shells.Get(name)
}

// Ports returns the port mapping.
func (s *Switch) Ports() *PortMap {
	return s.ports
}

// ProductName returns the product detected during provisioning.
func (s *Switch) ProductName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.productName
}

// Capabilities returns the features declared by the image.
func (s *Switch) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// Capacities returns the limits declared by the image.
func (s *Switch) Capacities() Capacities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacities
}

func (s *Switch) transition(to State, from ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(from, s.state) {
		return fmt.Errorf("%w: %s is %s, want %v", ErrInvalidState, s.container.ID(), s.state, from)
	}
	s.state = to
	return nil
}

func (s *Switch) setState(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
}

// Start marks the container as booting. Creating and starting the
// container is up to the caller.
func (s *Switch) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.transition(StateBooting, StateCreated)
}

// NotifyPostBuild provisions a booted container: it copies the setup
// script to the shared directory, runs it, detects the product and merges
// the port mapping written by the script. When the script fails, logs are
// collected into the shared directory before the error is returned.
//
// A ready switch may be provisioned again; the new port mapping is merged
// over the existing one. The result is returned on failure too, so callers
// can keep the diagnostic artifacts.
func (s *Switch) NotifyPostBuild(ctx context.Context, scriptPath string) (*Result, error) {
	if err := s.transition(StateProvisioning, StateBooting, StateReady); err != nil {
		return nil, err
	}

	start := s.clock.Now()
	res := &Result{Container: s.container.ID(), SharedDir: s.cfg.SharedDir}
	err := s.provision(ctx, scriptPath, res)

	res.Ports = s.ports.Snapshot()
	res.Artifacts = s.artifacts()
	s.metrics.ObserveProvisioning(s.container.ID(), s.clock.Now().Sub(start), err)

	if err != nil {
		s.setState(StateFailed)
		slog.Error("switch provisioning failed",
			slog.String("container", s.container.ID()),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	s.setState(StateReady)
	slog.Info("switch ready",
		slog.String("container", s.container.ID()),
		slog.String("product", res.ProductName),
		slog.Int("ports", len(res.Ports)),
	)
	return res, nil
}

func (s *Switch) provision(ctx context.Context, scriptPath string, res *Result) error {
	fail := func(stage string, err error) error {
		return &ProvisioningError{Container: s.container.ID(), Stage: stage, Err: err}
	}

	if err := s.installScript(scriptPath); err != nil {
		return fail("install setup script", err)
	}

	command := fmt.Sprintf("python %s -d", path.Join(s.cfg.SharedDirMount, SetupScriptName))
	if _, err := s.container.ExecOnce(ctx, command); err != nil {
		res.Diagnostics = s.collectDiagnostics(ctx)
		return fail("setup script", err)
	}

	product, err := s.detectProduct(ctx)
	if err != nil {
		return fail("detect product", err)
	}
	res.ProductName = product

	mapping, err := s.readPortMapping()
	if err != nil {
		return fail("read port mapping", err)
	}
	s.ports.Merge(mapping)

	caps, capacities, err := loadCapabilities(s.fs, filepath.Join(s.cfg.SharedDir, CapabilitiesFile))
	if err != nil {
		return fail("load capabilities", err)
	}

	s.mu.Lock()
	s.productName = product
	s.capabilities = caps
	s.capacities = capacities
	s.mu.Unlock()
	return nil
}

func (s *Switch) installScript(scriptPath string) error {
	if scriptPath == "" {
		return errors.New("no setup script given")
	}
	data, err := s.fs.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", scriptPath, err)
	}
	if err := s.fs.MkdirAll(s.cfg.SharedDir, 0755); err != nil {
		return fmt.Errorf("create shared dir: %w", err)
	}
	dst := filepath.Join(s.cfg.SharedDir, SetupScriptName)
	if err := s.fs.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

func (s *Switch) detectProduct(ctx context.Context) (string, error) {
	vtysh, err := s.shells.Get(session.ShellVtysh)
	if err != nil {
		return "", err
	}
	if _, err := vtysh.SendCommand(ctx, "show version"); err != nil {
		return "", err
	}
	if strings.Contains(vtysh.Response(), ProductGenericX86) {
		return ProductGenericX86, nil
	}
	return ProductGenericX86P4, nil
}

func (s *Switch) readPortMapping() (map[string]string, error) {
	file := filepath.Join(s.cfg.SharedDir, PortMappingFile)
	data, err := s.fs.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return mapping, nil
}

// LoadPorts merges the port mapping left in the shared directory by an
// earlier provisioning run.
func (s *Switch) LoadPorts() error {
	mapping, err := s.readPortMapping()
	if err != nil {
		return fmt.Errorf("load ports: %w", err)
	}
	s.ports.Merge(mapping)
	return nil
}

// SetPortState brings the interface behind label up or down. Interfaces
// missing from the default namespace are handled in the switch namespace.
func (s *Switch) SetPortState(ctx context.Context, label string, up bool) error {
	iface, err := s.ports.Lookup(label)
	if err != nil {
		return fmt.Errorf("set port state: %w", err)
	}

	out, err := s.container.ExecOnce(ctx, "ls /sys/class/net/")
	if err != nil {
		return fmt.Errorf("list interfaces: %w", err)
	}

	prefix := ""
	if !slices.Contains(strings.Fields(out), iface) {
		prefix = "ip netns exec " + s.cfg.Netns + " "
	}
	state := "down"
	if up {
		state = "up"
	}

	command := fmt.Sprintf("%sip link set dev %s %s", prefix, iface, state)
	if _, err := s.container.ExecOnce(ctx, command); err != nil {
		return fmt.Errorf("set port %s %s: %w", label, state, err)
	}
	slog.Debug("port state changed",
		slog.String("container", s.container.ID()),
		slog.String("port", label),
		slog.String("interface", iface),
		slog.String("state", state),
	)
	return nil
}

// Stop exits every configuration shell, then closes all shells. It never
// fails.
func (s *Switch) Stop(ctx context.Context) {
	for _, sh := range s.shells.Sessions() {
		if sh.Profile().Vtysh {
			sh.Exit(ctx)
		}
	}
	s.shells.CloseAll()
}
