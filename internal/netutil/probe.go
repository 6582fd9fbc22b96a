package netutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// ErrSiteUnavailable is returned by ProbePage when the page cannot be
// fetched or answers with a non-2xx status.
var ErrSiteUnavailable = errors.New("site unavailable")

// maxProbeBody caps how much of a page ProbePage reads.
const maxProbeBody = 4 << 20

// PageProbe is what ProbePage learned about a served page.
type PageProbe struct {
	URL        string
	StatusCode int
	Title      string
	// MissingIDs lists requested ids absent from the served markup.
	MissingIDs []string
}

// ProbePage fetches url with a plain HTTP GET and reports which of ids are
// present in the static markup. It does not run scripts, so only elements
// the server sends (not ones rendered client-side) can be found.
func ProbePage(ctx context.Context, client *http.Client, url string, ids ...string) (*PageProbe, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w: %w", url, ErrSiteUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	probe := &PageProbe{URL: url, StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return probe, fmt.Errorf("probe %s: %w: status %d", url, ErrSiteUnavailable, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return probe, fmt.Errorf("probe %s: parse html: %w", url, err)
	}

	found := make(map[string]bool, len(ids))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := getAttr(n, "id"); id != "" {
				found[id] = true
			}
			if n.Data == "title" && probe.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				probe.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, id := range ids {
		if !found[id] {
			probe.MissingIDs = append(probe.MissingIDs, id)
		}
	}
	return probe, nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
