package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/docsmoke/internal/api"
	"github.com/dgnsrekt/docsmoke/internal/config"
	"github.com/dgnsrekt/docsmoke/internal/netutil"
	"github.com/dgnsrekt/docsmoke/internal/relay"
	"github.com/dgnsrekt/docsmoke/internal/report"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control API",
		Long: `Serve keeps a browser open and exposes an HTTP API to trigger runs, browse run
history, render reports and fetch failure screenshots. Progress events stream
over WebSocket and SSE. API docs are served at /docs.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	cmd.Flags().String("bind", "", "Listen address (DOCSMOKE_BIND_ADDR)")
	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadController()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg.Config); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cmd.Flags().Changed("bind") {
		cfg.BindAddr, _ = cmd.Flags().GetString("bind")
	}
	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}

	slog.Info("controller config loaded",
		"base_url", cfg.BaseURL,
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"strict_fragments", cfg.StrictFragments,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	suite, err := loadSuite(cfg.Config)
	if err != nil {
		return err
	}

	bindAddr, err := netutil.BindPlan{
		Preferred:  cfg.BindAddr,
		Candidates: cfg.PortCandidates,
		Fallback:   cfg.PortAutoFallback,
	}.Select()
	if err != nil {
		return fmt.Errorf("select bind address: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	broker := relay.NewBroker()
	svc := a.service(cfg.Config, suite, []string{report.FormatJUnit}, broker.Observer())
	srv := &http.Server{
		Addr:              bindAddr,
		Handler:           api.NewServer(svc, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("controller listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("controller server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("controller shutdown failed", "error", err)
	}
	slog.Info("controller stopped", "dropped_events", broker.Dropped())
	return nil
}
