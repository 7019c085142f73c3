package session

import (
	"regexp"
	"time"

	"github.com/acolita/openswitch-harness/internal/prompt"
)

// Shell identities registered on every switch.
const (
	ShellBash     = "bash"
	ShellBashSwns = "bash_swns"
	ShellVsctl    = "vsctl"
	ShellVtysh    = "vtysh"
	ShellValgrind = "valgrind"
)

// DefaultVtyshCommand starts vtysh with line buffered output so the text
// printed right before a crash still reaches the terminal.
const DefaultVtyshCommand = "stdbuf -oL vtysh"

// Default timeouts.
const (
	DefaultCommandTimeout     = 30 * time.Second
	DefaultNegotiationTimeout = 30 * time.Second
	DefaultExtendedTimeout    = 60 * time.Second
)

// Profile describes one kind of shell. Sessions differ only by profile.
type Profile struct {
	// Name is the shell identity, e.g. "vtysh".
	Name string

	// Command is spawned in the container to open the shell.
	Command string

	// InitialPrompt matches the prompt printed by Command.
	InitialPrompt *regexp.Regexp

	// Prefix is prepended to every command sent.
	Prefix string

	// Timeout bounds each command unless overridden per call.
	Timeout time.Duration

	// Vtysh runs the prompt negotiation that turns the bash shell into a
	// configuration shell.
	Vtysh bool

	// VtyshCommand launches the configuration shell from bash.
	VtyshCommand string

	// CrashMarker is the text that, followed by the bash prompt, reveals a
	// crashed configuration shell. Empty disables crash detection.
	CrashMarker string

	// FilterEcho strips the command echo from responses of plain shells.
	// Negotiation decides it for vtysh profiles.
	FilterEcho bool

	// NegotiationTimeout bounds each step of Connect.
	NegotiationTimeout time.Duration
}

func (p Profile) withDefaults() Profile {
	if p.Command == "" {
		p.Command = "bash"
	}
	if p.InitialPrompt == nil {
		p.InitialPrompt = prompt.InitialPrompt
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultCommandTimeout
	}
	if p.NegotiationTimeout <= 0 {
		p.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if p.Vtysh && p.VtyshCommand == "" {
		p.VtyshCommand = DefaultVtyshCommand
	}
	return p
}

// ProfileOptions tunes the default profiles.
type ProfileOptions struct {
	CommandTimeout      time.Duration
	NegotiationTimeout  time.Duration
	ExtendedTimeout     time.Duration
	CrashMarker         string
	ValgrindCrashMarker string
	ValgrindCommand     string
	Netns               string
}

// DefaultProfileOptions returns the stock tuning.
func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{
		CommandTimeout:      DefaultCommandTimeout,
		NegotiationTimeout:  DefaultNegotiationTimeout,
		ExtendedTimeout:     DefaultExtendedTimeout,
		CrashMarker:         prompt.DefaultCrashMarker,
		ValgrindCrashMarker: prompt.DefaultCrashMarker,
		ValgrindCommand:     "stdbuf -oL valgrind --leak-check=full vtysh",
		Netns:               "swns",
	}
}

func (o ProfileOptions) withDefaults() ProfileOptions {
	d := DefaultProfileOptions()
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = d.CommandTimeout
	}
	if o.NegotiationTimeout <= 0 {
		o.NegotiationTimeout = d.NegotiationTimeout
	}
	if o.ExtendedTimeout <= 0 {
		o.ExtendedTimeout = d.ExtendedTimeout
	}
	if o.CrashMarker == "" {
		o.CrashMarker = d.CrashMarker
	}
	if o.ValgrindCrashMarker == "" {
		o.ValgrindCrashMarker = o.CrashMarker
	}
	if o.ValgrindCommand == "" {
		o.ValgrindCommand = d.ValgrindCommand
	}
	if o.Netns == "" {
		o.Netns = d.Netns
	}
	return o
}

// DefaultProfiles returns the shells of an OpenSwitch container. vtysh
// comes first and is the default shell. Zero options take the stock
// values.
func DefaultProfiles(opts ProfileOptions) []Profile {
	opts = opts.withDefaults()
	return []Profile{
		{
			Name:               ShellVtysh,
			Command:            "bash",
			Timeout:            opts.CommandTimeout,
			Vtysh:              true,
			VtyshCommand:       DefaultVtyshCommand,
			CrashMarker:        opts.CrashMarker,
			NegotiationTimeout: opts.NegotiationTimeout,
		},
		{
			Name:               ShellValgrind,
			Command:            "bash",
			Timeout:            opts.ExtendedTimeout,
			Vtysh:              true,
			VtyshCommand:       opts.ValgrindCommand,
			CrashMarker:        opts.ValgrindCrashMarker,
			NegotiationTimeout: opts.ExtendedTimeout,
		},
		{
			Name:               ShellBash,
			Command:            "bash",
			Timeout:            opts.CommandTimeout,
			FilterEcho:         true,
			NegotiationTimeout: opts.NegotiationTimeout,
		},
		{
			Name:               ShellBashSwns,
			Command:            "ip netns exec " + opts.Netns + " bash",
			Timeout:            opts.CommandTimeout,
			FilterEcho:         true,
			NegotiationTimeout: opts.NegotiationTimeout,
		},
		{
			Name:               ShellVsctl,
			Command:            "bash",
			Prefix:             "ovs-vsctl ",
			Timeout:            opts.ExtendedTimeout,
			FilterEcho:         true,
			NegotiationTimeout: opts.NegotiationTimeout,
		},
	}
}
