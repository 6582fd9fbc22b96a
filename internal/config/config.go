package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// AppName names the per-user data directory.
const AppName = "docsmoke"

// Config holds all configuration for a smoke run.
type Config struct {
	// Site under test
	BaseURL   string
	SuiteFile string

	// Browser settings
	BrowserMode    string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	ChromePath     string
	CDPAddress     string
	CDPPort        int

	// Check behavior
	StepTimeoutMS   int
	NavTimeoutMS    int
	StrictFragments bool
	Parallelism     int
	Preflight       bool

	// Output
	DataDir   string
	ReportDir string
	LogLevel  string
	LogFile   string
	EventLog  bool

	// Notifications
	NotifyURL    string
	NotifyAlways bool
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	width, height, err := parseViewport(getEnvOrDefault("DOCSMOKE_VIEWPORT", "1280x800"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:         strings.TrimRight(getEnvOrDefault("DOCSMOKE_BASE_URL", "http://localhost:8001"), "/"),
		SuiteFile:       getEnvOrDefault("DOCSMOKE_SUITE_FILE", ""),
		BrowserMode:     strings.ToLower(getEnvOrDefault("DOCSMOKE_BROWSER_MODE", "exec")),
		Headless:        getEnvBoolOrDefault("DOCSMOKE_HEADLESS", true),
		ViewportWidth:   width,
		ViewportHeight:  height,
		ChromePath:      getEnvOrDefault("DOCSMOKE_CHROME_PATH", ""),
		CDPAddress:      getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:         getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		StepTimeoutMS:   getEnvIntOrDefault("DOCSMOKE_STEP_TIMEOUT_MS", 5000),
		NavTimeoutMS:    getEnvIntOrDefault("DOCSMOKE_NAV_TIMEOUT_MS", 30000),
		StrictFragments: getEnvBoolOrDefault("DOCSMOKE_STRICT_FRAGMENTS", true),
		Parallelism:     getEnvIntOrDefault("DOCSMOKE_PARALLELISM", 1),
		Preflight:       getEnvBoolOrDefault("DOCSMOKE_PREFLIGHT", true),
		DataDir:         getEnvOrDefault("DOCSMOKE_DATA_DIR", XDGDataDir()),
		ReportDir:       getEnvOrDefault("DOCSMOKE_REPORT_DIR", "test-results"),
		LogLevel:        strings.ToLower(getEnvOrDefault("DOCSMOKE_LOG_LEVEL", "info")),
		LogFile:         getEnvOrDefault("DOCSMOKE_LOG_FILE", "logs/docsmoke.log"),
		EventLog:        getEnvBoolOrDefault("DOCSMOKE_EVENT_LOG", true),
		NotifyURL:       getEnvOrDefault("DOCSMOKE_NTFY_URL", ""),
		NotifyAlways:    getEnvBoolOrDefault("DOCSMOKE_NTFY_ALWAYS", false),
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.StepTimeoutMS < 500 {
		c.StepTimeoutMS = 500
	}
	if c.NavTimeoutMS < c.StepTimeoutMS {
		c.NavTimeoutMS = c.StepTimeoutMS
	}
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base url must start with http:// or https://: %q", c.BaseURL)
	}
	switch c.BrowserMode {
	case "exec", "launch", "remote":
	default:
		return fmt.Errorf("unknown browser mode %q", c.BrowserMode)
	}
	if c.BrowserMode != "exec" && (c.CDPPort <= 0 || c.CDPPort > 65535) {
		return fmt.Errorf("invalid CDP port %d", c.CDPPort)
	}
	return nil
}

// RunDBDir is where the run history database lives.
func (c *Config) RunDBDir() string {
	return filepath.Join(c.DataDir, "runs")
}

// ArtifactDir is where failure screenshots are stored.
func (c *Config) ArtifactDir() string {
	return filepath.Join(c.DataDir, "artifacts")
}

// EventLogDir is where run progress events are appended.
func (c *Config) EventLogDir() string {
	return filepath.Join(c.DataDir, "events")
}

// XDGDataDir returns the per-user data directory.
// On Linux: ~/.local/share/docsmoke
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func parseViewport(v string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(v)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("viewport must look like WIDTHxHEIGHT: %q", v)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport width in %q", v)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport height in %q", v)
	}
	return width, height, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
