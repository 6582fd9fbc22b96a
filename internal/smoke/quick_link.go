package smoke

import (
	"context"
	"regexp"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

// Step names of QuickLinkCheck that SetupGuideCheck does not use.
const (
	StepWaitURL     = "wait-url"
	StepTextVisible = "text-visible"
)

// QuickLinkCheck follows a homepage quick link into another page's anchor
// and requires the destination content and a known text to show.
type QuickLinkCheck struct {
	CheckName    string
	BaseURL      string
	Page         string
	LinkSelector string
	URLPattern   *regexp.Regexp
	ContentID    string
	Text         string
}

// NewQuickLinkCheck returns the homepage "My Mac Config" quick link check.
func NewQuickLinkCheck(baseURL string) *QuickLinkCheck {
	return &QuickLinkCheck{
		CheckName:    KindQuickLink,
		BaseURL:      baseURL,
		Page:         "index.html",
		LinkSelector: `a.link-card[href="setup-guide.html#my-mac-config"]`,
		URLPattern:   regexp.MustCompile(`setup-guide\.html#my-mac-config`),
		ContentID:    "markdown-content",
		Text:         "MacBook Air (M4)",
	}
}

func (c *QuickLinkCheck) Name() string { return c.CheckName }

func (c *QuickLinkCheck) Run(ctx context.Context, p Page) Result {
	pageURL := JoinURL(c.BaseURL, c.Page)
	run := newStepRun(ctx, c.Name(), KindQuickLink, pageURL)

	run.step(StepNavigate, func() (string, error) {
		_, err := p.Navigate(ctx, pageURL)
		return "", err
	})

	run.step(StepClick, func() (string, error) {
		return c.LinkSelector, p.Click(ctx, cdpcontrol.CSS(c.LinkSelector))
	})

	run.step(StepWaitURL, func() (string, error) {
		return p.WaitURL(ctx, c.URLPattern)
	})

	run.step(StepContentVisible, func() (string, error) {
		return "", p.WaitVisible(ctx, cdpcontrol.ID(c.ContentID))
	})

	run.step(StepTextVisible, func() (string, error) {
		return c.Text, p.WaitVisible(ctx, cdpcontrol.Text(c.Text))
	})

	return run.finish()
}
