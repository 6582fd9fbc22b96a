package smoke

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeElement is one element of a fakeSite document.
type fakeElement struct {
	visible bool
	text    string
}

// fakeDoc models the parts of a rendered page the checks look at.
type fakeDoc struct {
	status   int64
	elements map[string]fakeElement // by id
	// tocLinks are the hrefs of "#toc a" in document order; nil entries have
	// no href attribute.
	tocLinks   []*string
	tocHidden  bool
	cardLinks  map[string]string // selector -> destination URL
	hiddenText bool
}

// fakeSite serves fakeDocs by URL.
type fakeSite struct {
	docs map[string]*fakeDoc
}

type fakePage struct {
	site *fakeSite

	mu          sync.Mutex
	url         string
	doc         *fakeDoc
	clicks      []string
	closed      int
	screenshots int
	screenErr   error
}

func href(s string) *string { return &s }

func newFakePage(site *fakeSite) *fakePage { return &fakePage{site: site} }

func (p *fakePage) Navigate(_ context.Context, url string) (cdpcontrol.NavigationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.site.docs[url]
	if !ok {
		return cdpcontrol.NavigationResult{URL: url, StatusCode: 404}, cdpcontrol.NewError(cdpcontrol.CodeNavigationFailed, "navigate "+url+": status 404", nil)
	}
	p.url = url
	p.doc = doc
	return cdpcontrol.NavigationResult{URL: url, StatusCode: doc.status}, nil
}

func (p *fakePage) WaitVisible(_ context.Context, loc cdpcontrol.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := loc.Validate(); err != nil {
		return err
	}
	if p.doc == nil {
		return notFound(loc)
	}
	switch loc.Kind {
	case cdpcontrol.KindID:
		el, ok := p.doc.elements[loc.Value]
		if !ok {
			return notFound(loc)
		}
		if !el.visible {
			return notVisible(loc)
		}
	case cdpcontrol.KindCSS:
		if loc.Value == "#toc a" {
			if len(p.doc.tocLinks) == 0 {
				return notFound(loc)
			}
			if p.doc.tocHidden {
				return notVisible(loc)
			}
			return nil
		}
		if _, ok := p.doc.cardLinks[loc.Value]; !ok {
			return notFound(loc)
		}
	case cdpcontrol.KindText:
		for _, el := range p.doc.elements {
			if strings.Contains(el.text, loc.Value) {
				if p.doc.hiddenText {
					return notVisible(loc)
				}
				return nil
			}
		}
		return notFound(loc)
	}
	return nil
}

func (p *fakePage) Count(_ context.Context, loc cdpcontrol.Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return 0, nil
	}
	if loc.Kind == cdpcontrol.KindCSS && loc.Value == "#toc a" {
		return len(p.doc.tocLinks), nil
	}
	if loc.Kind == cdpcontrol.KindID {
		if _, ok := p.doc.elements[loc.Value]; ok {
			return 1, nil
		}
	}
	return 0, nil
}

func (p *fakePage) Attribute(_ context.Context, loc cdpcontrol.Locator, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil || loc.Value != "#toc a" || name != "href" || len(p.doc.tocLinks) == 0 {
		return "", false, notFound(loc)
	}
	first := p.doc.tocLinks[0]
	if first == nil {
		return "", false, nil
	}
	return *first, true, nil
}

func (p *fakePage) Click(_ context.Context, loc cdpcontrol.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return notFound(loc)
	}
	p.clicks = append(p.clicks, loc.String())
	if loc.Value == "#toc a" {
		if len(p.doc.tocLinks) == 0 {
			return notFound(loc)
		}
		if first := p.doc.tocLinks[0]; first != nil {
			base, _, _ := strings.Cut(p.url, "#")
			p.url = base + *first
		}
		return nil
	}
	dest, ok := p.doc.cardLinks[loc.Value]
	if !ok {
		return notFound(loc)
	}
	base, _, _ := strings.Cut(dest, "#")
	p.url = dest
	p.doc = p.site.docs[base]
	return nil
}

func (p *fakePage) WaitURL(_ context.Context, re *regexp.Regexp) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if re.MatchString(p.url) {
		return p.url, nil
	}
	return p.url, cdpcontrol.NewError(cdpcontrol.CodeTimeout, "url "+p.url+" never matched "+re.String(), nil)
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots++
	if p.screenErr != nil {
		return nil, p.screenErr
	}
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
}

func notFound(loc cdpcontrol.Locator) error {
	return cdpcontrol.NewError(cdpcontrol.CodeElementNotFound, "no element matches "+loc.String(), nil)
}

func notVisible(loc cdpcontrol.Locator) error {
	return cdpcontrol.NewError(cdpcontrol.CodeElementNotVisible, loc.String()+" is not visible", nil)
}

const testBase = "http://docs.test"

// guideSite returns a healthy site: a rendered setup guide whose first toc
// entry points at a visible heading, and a homepage quick link into it.
func guideSite() *fakeSite {
	return &fakeSite{docs: map[string]*fakeDoc{
		testBase + "/setup-guide.html": {
			status: 200,
			elements: map[string]fakeElement{
				"markdown-content": {visible: true, text: "MacBook Air (M4) setup notes"},
				"introduction":     {visible: true, text: "Introduction"},
				"my-mac-config":    {visible: true, text: "My Mac Config"},
			},
			tocLinks: []*string{href("#introduction"), href("#my-mac-config")},
		},
		testBase + "/index.html": {
			status:   200,
			elements: map[string]fakeElement{"hero": {visible: true, text: "Welcome"}},
			cardLinks: map[string]string{
				`a.link-card[href="setup-guide.html#my-mac-config"]`: testBase + "/setup-guide.html#my-mac-config",
			},
		},
	}}
}

func guideDoc(site *fakeSite) *fakeDoc { return site.docs[testBase+"/setup-guide.html"] }
