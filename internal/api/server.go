package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/docsmoke/internal/artifact"
	"github.com/dgnsrekt/docsmoke/internal/cdpcontrol"
	"github.com/dgnsrekt/docsmoke/internal/controller"
	"github.com/dgnsrekt/docsmoke/internal/relay"
	"github.com/dgnsrekt/docsmoke/internal/runstore"
	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

type Service interface {
	RunSuite(ctx context.Context, req controller.RunRequest) (*smoke.Run, error)
	ListRuns(ctx context.Context, limit int) ([]runstore.Summary, error)
	GetRun(ctx context.Context, runID string) (*smoke.Run, error)
	RenderReport(ctx context.Context, runID, format string) ([]byte, string, error)
	ReadArtifact(artifactID string) ([]byte, artifact.Meta, error)
}

// NewServer builds the controller HTTP API. broker may be nil, in which case
// the event endpoints are not mounted.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Docs Smoke Controller API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})

	if broker != nil {
		router.Get("/api/v1/events", relay.WSHandler(broker))
		router.Get("/api/v1/events/sse", relay.SSEHandler(broker))
	}

	registerHealthHandlers(api, broker)
	registerRunHandlers(api, svc)
	registerArtifactHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, runstore.ErrNotFound), errors.Is(err, artifact.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, artifact.ErrInvalidID):
		return huma.Error400BadRequest(err.Error())
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case controller.CodeRunInProgress:
			return huma.Error409Conflict(coded.Message)
		case cdpcontrol.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeNavigationFailed, cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
