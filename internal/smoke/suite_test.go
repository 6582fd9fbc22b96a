package smoke

import (
	"testing"

	"github.com/dgnsrekt/docsmoke/internal/config"
)

func TestFromSuite(t *testing.T) {
	suite, err := config.ParseSuite([]byte(`
base_url: http://staging.test
checks:
  - name: guide
    kind: setup-guide
  - name: quick
    kind: quick-link
`))
	if err != nil {
		t.Fatalf("ParseSuite() error = %v; want nil", err)
	}

	checks, err := FromSuite(suite, "http://ignored.test", false)
	if err != nil {
		t.Fatalf("FromSuite() error = %v; want nil", err)
	}
	if len(checks) != 2 {
		t.Fatalf("len(checks) = %d; want 2", len(checks))
	}
	guide, ok := checks[0].(*SetupGuideCheck)
	if !ok {
		t.Fatalf("checks[0] = %T; want *SetupGuideCheck", checks[0])
	}
	if guide.BaseURL != "http://staging.test" || guide.StrictFragments || guide.TOCSelector != "#toc a" {
		t.Fatalf("guide = %+v; want suite base url, lenient, default toc", guide)
	}
	quick, ok := checks[1].(*QuickLinkCheck)
	if !ok {
		t.Fatalf("checks[1] = %T; want *QuickLinkCheck", checks[1])
	}
	if !quick.URLPattern.MatchString("http://staging.test/setup-guide.html#my-mac-config") {
		t.Fatalf("URLPattern %q does not match destination", quick.URLPattern)
	}
}

func TestFromSuite_Defaults(t *testing.T) {
	checks, err := FromSuite(nil, "http://localhost:8001", true)
	if err != nil {
		t.Fatalf("FromSuite(nil) error = %v; want nil", err)
	}
	if len(checks) != 1 || checks[0].Name() != config.CheckSetupGuide {
		t.Fatalf("FromSuite(nil) = %v; want the setup guide check only", checks)
	}
}

func TestFromSuite_BadPattern(t *testing.T) {
	suite := &config.Suite{Checks: []config.CheckEntry{{Name: "q", Kind: config.CheckQuickLink, URLPattern: "("}}}
	if _, err := FromSuite(suite, "http://x", true); err == nil {
		t.Fatal("FromSuite() error = nil; want pattern error")
	}
}
