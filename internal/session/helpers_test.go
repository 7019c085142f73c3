package session

import (
	"sync"
	"testing"
	"time"

	"github.com/acolita/openswitch-harness/internal/prompt"
	"github.com/acolita/openswitch-harness/internal/testing/fakes/fakecontainer"
	"github.com/acolita/openswitch-harness/internal/testing/fakes/fakepty"
)

const (
	forcedVtysh   = prompt.VtyshForcedToken + "# "
	standardVtysh = "switch# "
	bashToken     = prompt.BashForcedToken
)

// bashTerminal answers the bootstrap of a plain bash shell.
func bashTerminal() *fakepty.PTY {
	p := fakepty.New()
	p.Emit("root@switch:~# ")
	p.On(prompt.ForcePromptCommand(bashToken), bashToken)
	p.On("", bashToken)
	p.On("exit", "logout\r\n").HangUp()
	return p
}

// vtyshTerminal answers the bootstrap and vtysh negotiation of an image
// that does or does not support "set prompt".
func vtyshTerminal(supported bool) *fakepty.PTY {
	p := fakepty.New()
	p.Emit("root@switch:~# ")
	p.On(prompt.ForcePromptCommand(bashToken), bashToken)
	p.On("stdbuf -oL vtysh", "\r\n"+standardVtysh)
	if supported {
		p.On(prompt.SetPromptCommand(prompt.VtyshForcedToken), forcedVtysh)
		p.On("exit", bashToken)
		p.On("stty -echo", bashToken).DisableEcho()
		p.On("", forcedVtysh)
		p.On("end", forcedVtysh)
	} else {
		p.On(prompt.SetPromptCommand(prompt.VtyshForcedToken), "% Unknown command.\r\n"+standardVtysh)
		p.On("exit", bashToken)
		p.On("", "\r\n"+standardVtysh)
		p.On("end", "\r\n"+standardVtysh)
	}
	return p
}

// vtyshProfile is the vtysh profile with short timeouts.
func vtyshProfile() Profile {
	return Profile{
		Name:               ShellVtysh,
		Command:            "bash",
		Vtysh:              true,
		CrashMarker:        prompt.DefaultCrashMarker,
		Timeout:            2 * time.Second,
		NegotiationTimeout: 2 * time.Second,
	}
}

func bashProfile() Profile {
	return Profile{
		Name:               ShellBash,
		Command:            "bash",
		FilterEcho:         true,
		Timeout:            2 * time.Second,
		NegotiationTimeout: 2 * time.Second,
	}
}

// containerWith returns a container whose every shell gets a terminal from
// build, and the terminals handed out so far.
func containerWith(build func() *fakepty.PTY) *fakecontainer.Container {
	c := fakecontainer.New("sw1")
	c.Terminal = func(string) (*fakepty.PTY, error) {
		return build(), nil
	}
	return c
}

func newSession(t *testing.T, c *fakecontainer.Container, p Profile, opts ...Option) *Session {
	t.Helper()
	s := New(c, p, opts...)
	t.Cleanup(s.Close)
	return s
}

type recordedMetrics struct {
	mu           sync.Mutex
	negotiations []bool
	failures     int
	commands     int
	crashes      int
}

func (m *recordedMetrics) ObserveNegotiation(_ string, custom bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures++
		return
	}
	m.negotiations = append(m.negotiations, custom)
}

func (m *recordedMetrics) ObserveCommand(string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands++
}

func (m *recordedMetrics) ObserveCrash(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crashes++
}
