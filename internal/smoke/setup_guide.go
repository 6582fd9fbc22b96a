package smoke

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

const (
	KindSetupGuide = "setup-guide"
	KindQuickLink  = "quick-link"
)

// Step names of SetupGuideCheck, in execution order.
const (
	StepNavigate        = "navigate"
	StepContentVisible  = "content-visible"
	StepTOCFirstVisible = "toc-first-visible"
	StepExtractTarget   = "extract-target"
	StepClick           = "click"
	StepTargetVisible   = "target-visible"
)

// Check is one smoke check. Run never panics on page failures; it reports
// them in the Result.
type Check interface {
	Name() string
	Run(ctx context.Context, p Page) Result
}

// SetupGuideCheck loads the setup guide, requires the rendered markdown
// region, follows the first table-of-contents link and requires its target
// to be visible.
type SetupGuideCheck struct {
	CheckName       string
	BaseURL         string
	Page            string
	ContentID       string
	TOCSelector     string
	StrictFragments bool
}

// NewSetupGuideCheck returns the check with the site's default layout:
// setup-guide.html, #markdown-content and "#toc a".
func NewSetupGuideCheck(baseURL string) *SetupGuideCheck {
	return &SetupGuideCheck{
		CheckName:       KindSetupGuide,
		BaseURL:         baseURL,
		Page:            "setup-guide.html",
		ContentID:       "markdown-content",
		TOCSelector:     "#toc a",
		StrictFragments: true,
	}
}

func (c *SetupGuideCheck) Name() string { return c.CheckName }

func (c *SetupGuideCheck) Run(ctx context.Context, p Page) Result {
	pageURL := JoinURL(c.BaseURL, c.Page)
	run := newStepRun(ctx, c.Name(), KindSetupGuide, pageURL)
	toc := cdpcontrol.CSS(c.TOCSelector)

	run.step(StepNavigate, func() (string, error) {
		nav, err := p.Navigate(ctx, pageURL)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("status %d", nav.StatusCode), nil
	})

	run.step(StepContentVisible, func() (string, error) {
		return "", p.WaitVisible(ctx, cdpcontrol.ID(c.ContentID))
	})

	run.step(StepTOCFirstVisible, func() (string, error) {
		if err := p.WaitVisible(ctx, toc); err != nil {
			return "", err
		}
		if n, err := p.Count(ctx, toc); err == nil {
			return fmt.Sprintf("%d toc entries", n), nil
		}
		return "", nil
	})

	var targetID string
	run.step(StepExtractTarget, func() (string, error) {
		href, ok, err := p.Attribute(ctx, toc, "href")
		if err != nil {
			return "", err
		}
		if !ok {
			return "", cdpcontrol.NewError(cdpcontrol.CodeValidation, "first toc entry has no href", nil)
		}
		targetID, err = TargetID(href, c.StrictFragments)
		if err != nil {
			return "", err
		}
		return "target #" + targetID, nil
	})

	run.step(StepClick, func() (string, error) {
		return "", p.Click(ctx, toc)
	})

	run.step(StepTargetVisible, func() (string, error) {
		id := resolveFragment(ctx, p, targetID)
		return "#" + id, p.WaitVisible(ctx, cdpcontrol.ID(id))
	})

	return run.finish()
}

// resolveFragment picks the first of the fragment's candidate ids present in
// the document, falling back to the raw id.
func resolveFragment(ctx context.Context, p Page, id string) string {
	cands := FragmentCandidates(id)
	if len(cands) == 1 {
		return id
	}
	for _, c := range cands {
		if n, err := p.Count(ctx, cdpcontrol.ID(c)); err == nil && n > 0 {
			return c
		}
	}
	return id
}

// JoinURL joins a site root and a page path with exactly one slash.
func JoinURL(base, page string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(page, "/")
}
