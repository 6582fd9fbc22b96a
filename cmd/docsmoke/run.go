package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/docsmoke/internal/config"
	"github.com/dgnsrekt/docsmoke/internal/controller"
	"github.com/dgnsrekt/docsmoke/internal/report"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the smoke suite once",
		Long: `Run opens the configured pages in a browser, prints one line per check and
writes report files (JUnit XML by default) to the report directory.

The process exits 1 if any check fails.

Examples:
  # Check a site served on port 8001
  docsmoke run --base-url http://localhost:8001

  # Only the setup guide, allowing toc links with a path before the '#'
  docsmoke run --check setup-guide --strict-fragments=false

  # Write every report format
  docsmoke run --format junit,markdown,html`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().StringSlice("check", nil, "Check names to run (default: whole suite)")
	cmd.Flags().Bool("strict-fragments", true, "Require toc hrefs to be same-document fragments (DOCSMOKE_STRICT_FRAGMENTS)")
	cmd.Flags().IntP("parallel", "p", 0, "Checks run at once (DOCSMOKE_PARALLELISM)")
	cmd.Flags().String("report-dir", "", "Directory for report files (DOCSMOKE_REPORT_DIR)")
	cmd.Flags().StringSlice("format", []string{report.FormatJUnit}, "Report files to write: junit, markdown, html")
	cmd.Flags().Bool("no-preflight", false, "Skip the HTTP reachability check")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}

	suite, err := loadSuite(cfg)
	if err != nil {
		return err
	}
	checks, _ := cmd.Flags().GetStringSlice("check")
	formats, _ := cmd.Flags().GetStringSlice("format")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Preflight {
		if err := preflight(ctx, cfg, suite, checks); err != nil {
			return err
		}
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svc := a.service(cfg, suite, formats, nil)
	run, err := svc.RunSuite(ctx, controller.RunRequest{Checks: checks})
	if run != nil {
		w, _ := report.NewWriter(report.FormatList, cmd.OutOrStdout())
		if _, werr := w.Write(run); werr != nil {
			slog.Warn("write list report failed", "error", werr)
		}
	}
	if err != nil {
		return err
	}
	notifyRun(context.WithoutCancel(ctx), cfg, run)
	slog.Info("run finished", "run_id", run.ID, "passed", run.Passed, "failed", run.Failed, "report_dir", cfg.ReportDir)
	if !run.OK() {
		return errChecksFailed
	}
	return nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("strict-fragments") {
		cfg.StrictFragments, _ = flags.GetBool("strict-fragments")
	}
	if flags.Changed("parallel") {
		n, _ := flags.GetInt("parallel")
		if n < 1 {
			return fmt.Errorf("--parallel must be at least 1, got %d", n)
		}
		cfg.Parallelism = n
	}
	if flags.Changed("report-dir") {
		cfg.ReportDir, _ = flags.GetString("report-dir")
	}
	if flags.Changed("no-preflight") {
		skip, _ := flags.GetBool("no-preflight")
		cfg.Preflight = !skip
	}
	formats, _ := flags.GetStringSlice("format")
	for _, f := range formats {
		switch f {
		case report.FormatJUnit, report.FormatMarkdown, report.FormatHTML:
		default:
			return fmt.Errorf("unknown report format %q", f)
		}
	}
	return nil
}
