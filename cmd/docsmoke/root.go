package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/docsmoke/internal/config"
)

// errChecksFailed makes the process exit 1 without printing anything more
// than the report already did.
var errChecksFailed = errors.New("one or more checks failed")

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docsmoke",
		Short: "Browser smoke tests for a served documentation site",
		Long: `docsmoke drives a real browser against a documentation site and checks
that the setup guide renders, that its table of contents links to a visible
section, and that homepage quick links land on the right anchor.

Configuration comes from DOCSMOKE_* environment variables (and an optional
.env file). Flags override the environment.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("base-url", "", "Site root to test (DOCSMOKE_BASE_URL)")
	cmd.PersistentFlags().String("suite", "", "YAML suite file (DOCSMOKE_SUITE_FILE)")
	cmd.PersistentFlags().String("browser-mode", "", "exec, launch or remote (DOCSMOKE_BROWSER_MODE)")
	cmd.PersistentFlags().Bool("headless", true, "Run the browser headless (DOCSMOKE_HEADLESS)")
	cmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (DOCSMOKE_LOG_LEVEL)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, errChecksFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// applyFlags overrides cfg with every persistent flag the user set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		v, _ := flags.GetString("base-url")
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if flags.Changed("suite") {
		cfg.SuiteFile, _ = flags.GetString("suite")
	}
	if flags.Changed("browser-mode") {
		cfg.BrowserMode, _ = flags.GetString("browser-mode")
	}
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	return cfg.Validate()
}

// loadSuite returns the configured suite, or the default one when no file
// is set.
func loadSuite(cfg *config.Config) (*config.Suite, error) {
	if cfg.SuiteFile == "" {
		return config.DefaultSuite(), nil
	}
	return config.LoadSuite(cfg.SuiteFile)
}
