package cdpcontrol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/chromedp/chromedp"
)

type evalEnvelope struct {
	OK           bool            `json:"ok"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Page is a single browser tab. Every blocking call waits at most the step
// (or navigation) timeout and also stops when the caller's ctx is done.
type Page struct {
	ctx      context.Context
	cancel   context.CancelFunc
	targetID string

	stepTimeout  time.Duration
	navTimeout   time.Duration
	pollInterval time.Duration

	console consoleLog
}

// ConsoleErrors returns the uncaught exceptions and console.error messages
// seen in the tab so far.
func (p *Page) ConsoleErrors() []string { return p.console.snapshot() }

// Close closes the tab.
func (p *Page) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// stepContext derives a context from the tab (so chromedp can find its
// target) bounded by timeout and by the caller's ctx.
func (p *Page) stepContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	stepCtx, cancel := context.WithTimeout(p.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return stepCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url and requires a 2xx main document response.
func (p *Page) Navigate(ctx context.Context, url string) (NavigationResult, error) {
	stepCtx, cancel := p.stepContext(ctx, p.navTimeout)
	defer cancel()

	slog.Debug("cdpcontrol navigate", "target_id", p.targetID, "url", url)
	resp, err := chromedp.RunResponse(stepCtx, chromedp.Navigate(url))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return NavigationResult{}, ctxErr
		}
		if isDeadline(err, stepCtx) {
			return NavigationResult{}, newError(CodeTimeout, fmt.Sprintf("navigation to %s timed out after %s", url, p.navTimeout), err)
		}
		return NavigationResult{}, newError(CodeNavigationFailed, "navigation to "+url+" failed", err)
	}
	if resp == nil {
		return NavigationResult{}, newError(CodeNavigationFailed, "navigation to "+url+" produced no document response", nil)
	}

	res := NavigationResult{URL: resp.URL, StatusCode: resp.Status, MimeType: resp.MimeType}
	if resp.Status < 200 || resp.Status >= 300 {
		return res, newError(CodeNavigationFailed, fmt.Sprintf("navigation to %s returned status %d", url, resp.Status), nil)
	}
	return res, nil
}

// WaitVisible blocks until the first match of loc is visible.
func (p *Page) WaitVisible(ctx context.Context, loc Locator) error {
	js, err := loc.probeJS()
	if err != nil {
		return err
	}

	stepCtx, cancel := p.stepContext(ctx, p.stepTimeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var (
		last    probeResult
		lastErr error
	)
	for {
		var res probeResult
		evalErr := p.eval(stepCtx, js, &res)
		if probeFatal(evalErr) {
			return evalErr
		}
		if evalErr == nil {
			last, lastErr = res, nil
			if res.Visible {
				return nil
			}
		} else {
			// Evaluation races with document replacement; keep polling.
			lastErr = evalErr
			slog.Debug("cdpcontrol visibility probe failed", "locator", loc.String(), "error", evalErr)
		}

		select {
		case <-stepCtx.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return p.visibilityTimeout(loc, last, lastErr)
		case <-ticker.C:
		}
	}
}

// probeFatal reports whether a probe error will repeat on every poll.
func probeFatal(err error) bool {
	return ErrorCode(err) == CodeValidation
}

func (p *Page) visibilityTimeout(loc Locator, last probeResult, lastErr error) error {
	switch {
	case lastErr != nil && last.Count == 0:
		return newError(CodeTimeout, fmt.Sprintf("waiting for %s timed out after %s", loc, p.stepTimeout), lastErr)
	case last.Count == 0:
		return newError(CodeElementNotFound, fmt.Sprintf("no element matches %s after %s", loc, p.stepTimeout), nil)
	default:
		return newError(CodeElementNotVisible, fmt.Sprintf("%s matched %d element(s) but the first is not visible after %s", loc, last.Count, p.stepTimeout), nil)
	}
}

// Count returns how many elements match loc right now.
func (p *Page) Count(ctx context.Context, loc Locator) (int, error) {
	js, err := loc.probeJS()
	if err != nil {
		return 0, err
	}
	stepCtx, cancel := p.stepContext(ctx, p.stepTimeout)
	defer cancel()

	var res probeResult
	if err := p.eval(stepCtx, js, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Attribute reads name from the first match of loc. The bool reports whether
// the attribute is present.
func (p *Page) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	if name == "" {
		return "", false, newError(CodeValidation, "attribute name is required", nil)
	}
	js, err := loc.attributeJS(name)
	if err != nil {
		return "", false, err
	}
	stepCtx, cancel := p.stepContext(ctx, p.stepTimeout)
	defer cancel()

	var res struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := p.eval(stepCtx, js, &res); err != nil {
		return "", false, err
	}
	return res.Value, res.Present, nil
}

// Click waits for the first match of loc to be visible and clicks its centre
// with a synthesized mouse event.
func (p *Page) Click(ctx context.Context, loc Locator) error {
	sel, err := loc.Selector()
	if err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, loc); err != nil {
		return err
	}

	stepCtx, cancel := p.stepContext(ctx, p.stepTimeout)
	defer cancel()

	slog.Debug("cdpcontrol click", "target_id", p.targetID, "locator", loc.String())
	if err := chromedp.Run(stepCtx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isDeadline(err, stepCtx) {
			return newError(CodeTimeout, "click on "+loc.String()+" timed out", err)
		}
		return newError(CodeEvalFailure, "click on "+loc.String()+" failed", err)
	}
	return nil
}

// WaitURL blocks until the document URL matches re and returns it.
func (p *Page) WaitURL(ctx context.Context, re *regexp.Regexp) (string, error) {
	if re == nil {
		return "", newError(CodeValidation, "url pattern is required", nil)
	}
	stepCtx, cancel := p.stepContext(ctx, p.stepTimeout)
	defer cancel()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	var last string
	for {
		var cur string
		if err := chromedp.Run(stepCtx, chromedp.Location(&cur)); err == nil {
			last = cur
			if re.MatchString(cur) {
				return cur, nil
			}
		}
		select {
		case <-stepCtx.Done():
			if ctxErr := ctx.Err(); ctxErr != nil {
				return last, ctxErr
			}
			return last, newError(CodeTimeout, fmt.Sprintf("url %q did not match %s after %s", last, re, p.stepTimeout), nil)
		case <-ticker.C:
		}
	}
}

// Screenshot captures the full page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	stepCtx, cancel := p.stepContext(ctx, p.navTimeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(stepCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, classify(ctx, stepCtx, "screenshot", err)
	}
	return buf, nil
}

func (p *Page) eval(ctx context.Context, js string, out any) error {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &raw)); err != nil {
		if isDeadline(err, ctx) {
			return newError(CodeTimeout, "evaluation timed out", err)
		}
		return newError(CodeEvalFailure, "evaluation failed", err)
	}

	var env evalEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation envelope", err)
	}
	if !env.OK {
		code := env.ErrorCode
		if code == "" {
			code = CodeEvalFailure
		}
		return newError(code, env.ErrorMessage, nil)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return newError(CodeEvalFailure, "invalid evaluation data", err)
	}
	return nil
}

func isDeadline(err error, ctx context.Context) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

func classify(callerCtx, stepCtx context.Context, op string, err error) error {
	if ctxErr := callerCtx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isDeadline(err, stepCtx) {
		return newError(CodeTimeout, op+" timed out", err)
	}
	return newError(CodeEvalFailure, op+" failed", err)
}
