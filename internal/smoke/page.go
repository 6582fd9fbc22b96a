// Package smoke runs browser smoke checks against a served documentation site.
package smoke

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_page.go -package=mocks github.com/dgnsrekt/docsmoke/internal/smoke Page

import (
	"context"
	"regexp"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

// Page is the set of browser operations a check needs. Implemented by
// *cdpcontrol.Page.
type Page interface {
	Navigate(ctx context.Context, url string) (cdpcontrol.NavigationResult, error)
	WaitVisible(ctx context.Context, loc cdpcontrol.Locator) error
	Count(ctx context.Context, loc cdpcontrol.Locator) (int, error)
	Attribute(ctx context.Context, loc cdpcontrol.Locator, name string) (string, bool, error)
	Click(ctx context.Context, loc cdpcontrol.Locator) error
	WaitURL(ctx context.Context, re *regexp.Regexp) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close()
}

// PageFactory opens a fresh page for one check run.
type PageFactory func(ctx context.Context) (Page, error)

// ClientPages adapts a cdpcontrol client into a PageFactory.
func ClientPages(c *cdpcontrol.Client) PageFactory {
	return func(ctx context.Context) (Page, error) {
		p, err := c.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
