package commands

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/acolita/openswitch-harness/internal/docker"
	"github.com/acolita/openswitch-harness/internal/expect"
	"github.com/acolita/openswitch-harness/internal/node"
	"github.com/acolita/openswitch-harness/internal/session"
)

func TestParsePortState(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"up", true, false},
		{"UP", true, false},
		{"down", false, false},
		{"Down", false, false},
		{"flap", false, true},
		{"", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePortState(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePortState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parsePortState(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComparePortLabels(t *testing.T) {
	labels := []string{"10", "2", "1-2", "1", "49", "1-1"}
	slices.SortFunc(labels, comparePortLabels)

	want := []string{"1", "1-1", "1-2", "2", "10", "49"}
	if !slices.Equal(labels, want) {
		t.Errorf("sorted = %q, want %q", labels, want)
	}
}

func TestWriteResult(t *testing.T) {
	var buf bytes.Buffer
	writeResult(&buf, &node.Result{
		Container:   "sw1",
		ProductName: node.ProductGenericX86,
		SharedDir:   "/var/run/topology/sw1",
		Ports:       map[string]string{"10": "10", "2": "eth2"},
		Artifacts:   []string{"/var/run/topology/sw1/container_logs"},
		Diagnostics: &node.Diagnostics{RunID: "run-1", Failures: 2},
	})
	out := buf.String()

	for _, want := range []string{
		"container:  sw1",
		"product:    genericx86-64",
		"ports:      2",
		"diagnostics run run-1: 2 failed commands",
		"  /var/run/topology/sw1/container_logs",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "eth2") > strings.Index(out, "  10 ") {
		t.Errorf("ports not sorted by label:\n%s", out)
	}
}

func TestWriteSteps(t *testing.T) {
	script := &expect.Script{Steps: []expect.Step{{Name: "login"}, {Name: "show"}}}

	var buf bytes.Buffer
	writeSteps(&buf, script, []int{0})

	if !strings.Contains(buf.String(), "login") || strings.Contains(buf.String(), "show") {
		t.Errorf("writeSteps() = %q", buf.String())
	}
}

type fakeRunner struct {
	sent      []string
	responses map[string]string
	errs      map[string]error
	last      string
}

func (f *fakeRunner) Name() string { return "vtysh" }

func (f *fakeRunner) SendCommand(_ context.Context, text string, _ ...session.CommandOption) (int, error) {
	f.sent = append(f.sent, text)
	f.last = text
	return 0, f.errs[text]
}

func (f *fakeRunner) Response() string { return f.responses[f.last] }

func TestRunConsole(t *testing.T) {
	runner := &fakeRunner{
		responses: map[string]string{"show version": "OpenSwitch 0.4.0"},
		errs:      map[string]error{"show crash": &session.FatalCrashError{Shell: "vtysh", Command: "show crash"}},
	}
	in := strings.NewReader("show version\nshow crash\nconfigure terminal\nexit\nnever sent\n")
	var out, errOut bytes.Buffer

	if err := runConsole(context.Background(), runner, in, &out, &errOut); err != nil {
		t.Fatalf("runConsole() error = %v", err)
	}

	want := []string{"show version", "show crash", "configure terminal"}
	if !slices.Equal(runner.sent, want) {
		t.Errorf("sent = %q, want %q", runner.sent, want)
	}
	if !strings.Contains(out.String(), "vtysh> ") || !strings.Contains(out.String(), "OpenSwitch 0.4.0") {
		t.Errorf("out = %q", out.String())
	}
	if !strings.Contains(errOut.String(), "next command reconnects") {
		t.Errorf("errOut = %q", errOut.String())
	}
}

func TestRunConsole_EOF(t *testing.T) {
	runner := &fakeRunner{}
	if err := runConsole(context.Background(), runner, strings.NewReader("show run"), &bytes.Buffer{}, &bytes.Buffer{}); err != nil {
		t.Fatalf("runConsole() error = %v", err)
	}
	if len(runner.sent) != 1 {
		t.Errorf("sent = %q", runner.sent)
	}
}

func TestRunConsole_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runConsole(ctx, &fakeRunner{}, strings.NewReader("show run\nshow run\n"), &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("runConsole() error = %v, want context.Canceled", err)
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	t.Cleanup(func() {
		levelFlag, metricsAddr, sharedDirFlag = "", "", ""
	})
	levelFlag = "debug"
	metricsAddr = ":9110"
	sharedDirFlag = "/var/run/topology/sw9"

	c, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if c.Logging.Level != "debug" || c.Metrics.Addr != ":9110" || c.Switch.SharedDir != "/var/run/topology/sw9" {
		t.Errorf("overrides not applied: %+v %+v %+v", c.Logging, c.Metrics, c.Switch)
	}

	levelFlag = "chatty"
	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() should reject an unknown level")
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	if !strings.HasPrefix(buf.String(), "opsharness ") {
		t.Errorf("version output = %q", buf.String())
	}
}

func TestRootCmd_RequiresContainer(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"exec", "--", "show", "version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "container") {
		t.Errorf("Execute() error = %v, want missing --container", err)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{"console", "exec", "port-state", "provision", "run-script", "version"}
	var got []string
	for _, c := range rootCmd.Commands() {
		got = append(got, c.Name())
	}
	for _, name := range want {
		if !slices.Contains(got, name) {
			t.Errorf("missing subcommand %q in %q", name, got)
		}
	}
}

func TestRejected(t *testing.T) {
	vtysh := session.Profile{Name: session.ShellVtysh, Vtysh: true}
	bash := session.Profile{Name: session.ShellBash}

	tests := []struct {
		name     string
		profile  session.Profile
		response string
		wantErr  bool
	}{
		{"vtysh output", vtysh, "hostname sw1", false},
		{"vtysh unknown command", vtysh, "% Unknown command.", true},
		{"bash output looks like vtysh error", bash, "% Unknown command.", false},
		{"vsctl output", session.Profile{Name: session.ShellVsctl}, "% Invalid input detected", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rejected(tt.profile, tt.response)
			if (err != nil) != tt.wantErr {
				t.Fatalf("rejected() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "vtysh rejected the command (unknown_command)") {
				t.Errorf("rejected() = %v", err)
			}
		})
	}
}

func TestWriteHints(t *testing.T) {
	var buf bytes.Buffer
	writeHints(&buf, &docker.ExecError{
		Container: "sw1",
		Command:   "ip link set dev eth7 up",
		ExitCode:  1,
		Output:    `Cannot find device "eth7"`,
	})

	if !strings.Contains(buf.String(), "hint: Interface missing: eth7.") {
		t.Errorf("hints = %q", buf.String())
	}
	if !strings.Contains(buf.String(), "  $ opsharness exec -s bash_swns -- ip link show") {
		t.Errorf("hints missing command: %q", buf.String())
	}

	buf.Reset()
	writeHints(&buf, errors.New("nothing recognizable"))
	if buf.Len() != 0 {
		t.Errorf("hints = %q, want none", buf.String())
	}
}
