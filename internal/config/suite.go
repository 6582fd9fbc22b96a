package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CheckSetupGuide = "setup-guide"
	CheckQuickLink  = "quick-link"
)

// CheckEntry describes one check of a suite. Fields that do not apply to a
// kind are ignored.
type CheckEntry struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	Page         string `yaml:"page"`
	ContentID    string `yaml:"content_id"`
	TOCSelector  string `yaml:"toc_selector"`
	LinkSelector string `yaml:"link_selector"`
	URLPattern   string `yaml:"url_pattern"`
	Text         string `yaml:"text"`
}

// Suite is the top-level YAML configuration listing the checks to run.
type Suite struct {
	BaseURL string       `yaml:"base_url"`
	Checks  []CheckEntry `yaml:"checks"`
}

// DefaultSuite runs the setup guide check only.
func DefaultSuite() *Suite {
	s := &Suite{Checks: []CheckEntry{{Name: "setup-guide", Kind: CheckSetupGuide}}}
	s.applyDefaults()
	return s
}

// LoadSuite reads and validates a suite YAML file.
// Returns an os.ErrNotExist-wrapped error if the file is absent.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("suite config: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite decodes and validates suite YAML.
func ParseSuite(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("suite config: %w", err)
	}
	if len(s.Checks) < 1 {
		return nil, fmt.Errorf("suite config: at least one check entry is required")
	}
	seen := make(map[string]bool, len(s.Checks))
	for i, c := range s.Checks {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("suite config: checks[%d] missing name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("suite config: duplicate check name %q", name)
		}
		seen[name] = true
		switch c.Kind {
		case CheckSetupGuide, CheckQuickLink:
		case "":
			return nil, fmt.Errorf("suite config: checks[%d] missing kind", i)
		default:
			return nil, fmt.Errorf("suite config: checks[%d] unknown kind %q", i, c.Kind)
		}
	}
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.applyDefaults()
	return &s, nil
}

func (s *Suite) applyDefaults() {
	for i := range s.Checks {
		c := &s.Checks[i]
		c.Name = strings.TrimSpace(c.Name)
		if c.ContentID == "" {
			c.ContentID = "markdown-content"
		}
		switch c.Kind {
		case CheckSetupGuide:
			if c.Page == "" {
				c.Page = "setup-guide.html"
			}
			if c.TOCSelector == "" {
				c.TOCSelector = "#toc a"
			}
		case CheckQuickLink:
			if c.Page == "" {
				c.Page = "index.html"
			}
			if c.LinkSelector == "" {
				c.LinkSelector = `a.link-card[href="setup-guide.html#my-mac-config"]`
			}
			if c.URLPattern == "" {
				c.URLPattern = `setup-guide\.html#my-mac-config`
			}
			if c.Text == "" {
				c.Text = "MacBook Air (M4)"
			}
		}
	}
}
