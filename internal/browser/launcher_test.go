package browser

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
)

func TestLaunchArgsHeadless(t *testing.T) {
	args := launchArgs(LaunchConfig{
		CDPAddress: "127.0.0.1",
		CDPPort:    9333,
		ProfileDir: "/tmp/profile",
		Headless:   true,
		WindowSize: "1280,800",
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--remote-debugging-port=9333",
		"--remote-debugging-address=127.0.0.1",
		"--user-data-dir=/tmp/profile",
		"--window-size=1280,800",
		"--headless=new",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("launchArgs() missing %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "about:blank" {
		t.Fatalf("last arg = %q; want about:blank", args[len(args)-1])
	}
}

func TestLaunchArgsHeaded(t *testing.T) {
	args := launchArgs(LaunchConfig{CDPAddress: "127.0.0.1", CDPPort: 9333, WindowSize: "800,600"})
	for _, a := range args {
		if strings.HasPrefix(a, "--headless") {
			t.Fatalf("headed launch carries %q", a)
		}
	}
}

func TestNewLauncherDefaults(t *testing.T) {
	l := NewLauncher(LaunchConfig{})
	if l.cfg.WindowSize != "1280,800" {
		t.Fatalf("WindowSize = %q; want 1280,800", l.cfg.WindowSize)
	}
	if l.cfg.ReadyWait <= 0 {
		t.Fatalf("ReadyWait = %v; want positive default", l.cfg.ReadyWait)
	}
	if l.Running() {
		t.Fatal("Running() = true before Launch")
	}
}

func TestLaunchSkipsWhenPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	l := NewLauncher(LaunchConfig{CDPAddress: "127.0.0.1", CDPPort: port, ExecPath: "/nonexistent/chrome"})
	if err := l.Launch(context.Background()); err != nil {
		t.Fatalf("Launch() error = %v; want nil when port busy", err)
	}
	if l.Running() {
		t.Fatal("Running() = true; launcher should not spawn when port is busy")
	}
	if got, want := l.CDPURL(), "http://127.0.0.1:"+strconv.Itoa(port); got != want {
		t.Fatalf("CDPURL() = %q; want %q", got, want)
	}
}

func TestAllocateRejectsUnknownMode(t *testing.T) {
	if _, err := Allocate(context.Background(), Config{Mode: "firefox"}); err == nil {
		t.Fatal("Allocate() = nil error; want unknown mode error")
	}
}

func TestAllocateRemoteDoesNotDial(t *testing.T) {
	alloc, err := Allocate(context.Background(), Config{Mode: ModeRemote, CDPAddress: "127.0.0.1", CDPPort: 9})
	if err != nil {
		t.Fatalf("Allocate(remote) error = %v", err)
	}
	defer alloc.Release()
	if alloc.Ctx == nil {
		t.Fatal("Allocate(remote) returned nil context")
	}
}

func TestConfigWindowSize(t *testing.T) {
	if got := (Config{}).windowSize(); got != "1280,800" {
		t.Fatalf("windowSize() = %q; want default", got)
	}
	if got := (Config{ViewportWidth: 1024, ViewportHeight: 768}).windowSize(); got != "1024,768" {
		t.Fatalf("windowSize() = %q; want 1024,768", got)
	}
}
