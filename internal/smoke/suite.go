package smoke

import (
	"fmt"
	"regexp"

	"github.com/dgnsrekt/docsmoke/internal/config"
)

// FromSuite builds checks from a suite file. The suite's base URL wins over
// baseURL when set.
func FromSuite(suite *config.Suite, baseURL string, strictFragments bool) ([]Check, error) {
	if suite == nil {
		suite = config.DefaultSuite()
	}
	if suite.BaseURL != "" {
		baseURL = suite.BaseURL
	}

	checks := make([]Check, 0, len(suite.Checks))
	for _, e := range suite.Checks {
		switch e.Kind {
		case config.CheckSetupGuide:
			checks = append(checks, &SetupGuideCheck{
				CheckName:       e.Name,
				BaseURL:         baseURL,
				Page:            e.Page,
				ContentID:       e.ContentID,
				TOCSelector:     e.TOCSelector,
				StrictFragments: strictFragments,
			})
		case config.CheckQuickLink:
			re, err := regexp.Compile(e.URLPattern)
			if err != nil {
				return nil, fmt.Errorf("check %q: url_pattern: %w", e.Name, err)
			}
			checks = append(checks, &QuickLinkCheck{
				CheckName:    e.Name,
				BaseURL:      baseURL,
				Page:         e.Page,
				LinkSelector: e.LinkSelector,
				URLPattern:   re,
				ContentID:    e.ContentID,
				Text:         e.Text,
			})
		default:
			return nil, fmt.Errorf("check %q: unknown kind %q", e.Name, e.Kind)
		}
	}
	return checks, nil
}
