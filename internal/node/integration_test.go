//go:build integration

package node

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/acolita/openswitch-harness/internal/docker"
	"github.com/acolita/openswitch-harness/internal/session"
)

// liveSwitch wires a switch to the running container named by
// OPSHARNESS_TEST_CONTAINER.
func liveSwitch(t *testing.T) *Switch {
	t.Helper()
	id := os.Getenv("OPSHARNESS_TEST_CONTAINER")
	if id == "" {
		t.Skip("OPSHARNESS_TEST_CONTAINER not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := docker.NewClient(ctx, docker.Options{})
	if err != nil {
		t.Fatalf("docker.NewClient() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	sw := New(client.Container(id), Config{SharedDir: t.TempDir()})
	t.Cleanup(func() { sw.Stop(context.Background()) })
	return sw
}

func TestLiveBashShell(t *testing.T) {
	sw := liveSwitch(t)
	sh, err := sw.Shell(session.ShellBash)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sh.SendCommand(context.Background(), "echo hello world"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if got := sh.Response(); got != "hello world" {
		t.Errorf("Response() = %q, want %q", got, "hello world")
	}
}

func TestLiveVtyshShell(t *testing.T) {
	sw := liveSwitch(t)
	sh, err := sw.Shell(session.ShellVtysh)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sh.SendCommand(context.Background(), "show version"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	t.Logf("vtysh negotiated custom prompt: %v", sh.CustomPrompt())
	if !strings.Contains(sh.Response(), "OpenSwitch") {
		t.Errorf("Response() = %q, want a version banner", sh.Response())
	}
}
