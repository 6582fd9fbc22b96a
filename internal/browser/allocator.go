package browser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	ModeExec   = "exec"
	ModeLaunch = "launch"
	ModeRemote = "remote"
)

// Config selects how a browser is obtained.
type Config struct {
	Mode           string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	ExecPath       string
	CDPAddress     string
	CDPPort        int
	ProfileDir     string
}

// CDPURL returns the remote debugging endpoint.
func (c Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c Config) windowSize() string {
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return "1280,800"
	}
	return fmt.Sprintf("%d,%d", c.ViewportWidth, c.ViewportHeight)
}

// Allocation is a chromedp allocator plus the resources behind it.
type Allocation struct {
	Ctx      context.Context
	cancel   context.CancelFunc
	launcher *Launcher
}

// Release cancels the allocator and stops any browser this process spawned.
func (a *Allocation) Release() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.launcher != nil && a.launcher.Running() {
		a.launcher.Stop()
	}
}

// execOptions mirrors chromedp's defaults with headless and window size
// taken from cfg.
func execOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-scrollbars", cfg.Headless),
		chromedp.Flag("mute-audio", cfg.Headless),
		chromedp.Flag("window-size", cfg.windowSize()),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	return opts
}

// Allocate returns a chromedp allocator context for cfg.Mode.
func Allocate(ctx context.Context, cfg Config) (*Allocation, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", ModeExec:
		allocCtx, cancel := chromedp.NewExecAllocator(ctx, execOptions(cfg)...)
		slog.Info("browser allocator ready", "mode", ModeExec, "headless", cfg.Headless, "window_size", cfg.windowSize())
		return &Allocation{Ctx: allocCtx, cancel: cancel}, nil

	case ModeLaunch:
		profile := cfg.ProfileDir
		if profile == "" {
			profile = filepath.Join(".", "browser_profile")
		}
		l := NewLauncher(LaunchConfig{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ExecPath:   cfg.ExecPath,
			ProfileDir: profile,
			Headless:   cfg.Headless,
			WindowSize: cfg.windowSize(),
			ReadyWait:  15 * time.Second,
		})
		if err := l.Launch(ctx); err != nil {
			return nil, err
		}
		allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, l.CDPURL())
		slog.Info("browser allocator ready", "mode", ModeLaunch, "cdp_url", l.CDPURL())
		return &Allocation{Ctx: allocCtx, cancel: cancel, launcher: l}, nil

	case ModeRemote:
		allocCtx, cancel := chromedp.NewRemoteAllocator(ctx, cfg.CDPURL())
		slog.Info("browser allocator ready", "mode", ModeRemote, "cdp_url", cfg.CDPURL())
		return &Allocation{Ctx: allocCtx, cancel: cancel}, nil

	default:
		return nil, fmt.Errorf("unknown browser mode %q (want %s, %s or %s)", cfg.Mode, ModeExec, ModeLaunch, ModeRemote)
	}
}
