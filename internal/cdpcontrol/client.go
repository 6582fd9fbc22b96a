package cdpcontrol

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultStepTimeout  = 5 * time.Second
	defaultNavTimeout   = 30 * time.Second
	defaultPollInterval = 100 * time.Millisecond
)

// Options tunes page behaviour. Zero values select the defaults.
type Options struct {
	Viewport     Viewport
	StepTimeout  time.Duration
	NavTimeout   time.Duration
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = Viewport{Width: 1280, Height: 800}
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = defaultStepTimeout
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = defaultNavTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return o
}

// Client owns one browser instance and hands out isolated pages (tabs).
type Client struct {
	allocCtx context.Context
	opts     Options

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewClient wraps a chromedp allocator context (exec or remote).
func NewClient(allocCtx context.Context, opts Options) *Client {
	return &Client{allocCtx: allocCtx, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Client) Options() Options { return c.opts }

// Connect starts (or attaches to) the browser. It is safe to call twice.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	if c.browserCtx != nil {
		return nil
	}
	if c.allocCtx == nil {
		return newError(CodeCDPUnavailable, "missing browser allocator", nil)
	}

	slog.Info("cdpcontrol connect start")
	browserCtx, browserCancel := chromedp.NewContext(c.allocCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(browserCtx) }()
	select {
	case err := <-errCh:
		if err != nil {
			browserCancel()
			return newError(CodeCDPUnavailable, "connect to browser failed", err)
		}
	case <-ctx.Done():
		browserCancel()
		return newError(CodeCDPUnavailable, "connect to browser cancelled", ctx.Err())
	}

	c.browserCtx, c.browserCancel = browserCtx, browserCancel
	slog.Info("cdpcontrol connect ok")
	return nil
}

// NewPage opens a fresh tab sized to the configured viewport. Each page is
// owned by one caller and must be closed by it.
func (c *Client) NewPage(ctx context.Context) (*Page, error) {
	c.mu.Lock()
	if err := c.connectLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	browserCtx := c.browserCtx
	c.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	// The first Run on a fresh context creates the target, so it must not
	// carry a deadline: cancelling it would close the tab.
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(c.opts.Viewport.Width, c.opts.Viewport.Height)); err != nil {
		tabCancel()
		return nil, newError(CodeCDPUnavailable, "open tab failed", err)
	}

	p := &Page{
		ctx:          tabCtx,
		cancel:       tabCancel,
		stepTimeout:  c.opts.StepTimeout,
		navTimeout:   c.opts.NavTimeout,
		pollInterval: c.opts.PollInterval,
	}
	if t := chromedp.FromContext(tabCtx).Target; t != nil {
		p.targetID = string(t.TargetID)
	}
	chromedp.ListenTarget(tabCtx, p.console.listen)
	slog.Debug("cdpcontrol page opened", "target_id", p.targetID)
	return p, nil
}

// Close shuts down the browser if this client started it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
	}
	c.browserCtx, c.browserCancel = nil, nil
	slog.Info("cdpcontrol client closed")
	return nil
}
