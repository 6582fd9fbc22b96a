package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/docsmoke/internal/artifact"
	"github.com/dgnsrekt/docsmoke/internal/controller"
	"github.com/dgnsrekt/docsmoke/internal/relay"
	"github.com/dgnsrekt/docsmoke/internal/runstore"
	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

func registerHealthHandlers(api huma.API, broker *relay.Broker) {
	type healthOutput struct {
		Body struct {
			Status       string `json:"status"`
			EventClients int    `json:"event_clients"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if broker != nil {
				out.Body.EventClients = broker.ClientCount()
			}
			return out, nil
		})
}

type runOutput struct {
	Body *smoke.Run
}

type runIDInput struct {
	RunID string `path:"run_id"`
}

func registerRunHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{
		OperationID: "start-run",
		Method:      http.MethodPost,
		Path:        "/api/v1/runs",
		Summary:     "Run smoke checks",
		Description: "Runs the configured suite (or the named checks) and returns the finished run. Check failures are reported in the body, not as HTTP errors.",
		Tags:        []string{"Runs"},
	},
		func(ctx context.Context, input *struct {
			Body struct {
				BaseURL         string   `json:"base_url,omitempty" doc:"Site root to test. Defaults to the controller's configured base URL." example:"http://localhost:8001"`
				Checks          []string `json:"checks,omitempty" doc:"Check names to run. Omit to run the whole suite." example:"setup-guide"`
				StrictFragments *bool    `json:"strict_fragments,omitempty" doc:"Require toc hrefs to be same-document fragments."`
			}
		}) (*runOutput, error) {
			run, err := svc.RunSuite(ctx, controller.RunRequest{
				BaseURL:         input.Body.BaseURL,
				Checks:          input.Body.Checks,
				StrictFragments: input.Body.StrictFragments,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			return &runOutput{Body: run}, nil
		})

	type listRunsOutput struct {
		Body struct {
			Runs []runstore.Summary `json:"runs"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-runs", Method: http.MethodGet, Path: "/api/v1/runs", Summary: "List runs", Tags: []string{"Runs"}},
		func(ctx context.Context, input *struct {
			Limit int `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Maximum runs to return, newest first"`
		}) (*listRunsOutput, error) {
			runs, err := svc.ListRuns(ctx, input.Limit)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listRunsOutput{}
			out.Body.Runs = runs
			if out.Body.Runs == nil {
				out.Body.Runs = []runstore.Summary{}
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-run", Method: http.MethodGet, Path: "/api/v1/runs/{run_id}", Summary: "Get run", Tags: []string{"Runs"}},
		func(ctx context.Context, input *runIDInput) (*runOutput, error) {
			run, err := svc.GetRun(ctx, input.RunID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &runOutput{Body: run}, nil
		})

	type reportOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-run-report",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{run_id}/report",
		Summary:     "Render run report",
		Tags:        []string{"Runs"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Rendered report",
				Content: map[string]*huma.MediaType{
					"text/markdown":   {Schema: &huma.Schema{Type: "string"}},
					"application/xml": {Schema: &huma.Schema{Type: "string"}},
					"text/html":       {Schema: &huma.Schema{Type: "string"}},
					"text/plain":      {Schema: &huma.Schema{Type: "string"}},
				},
			},
		},
	}, func(ctx context.Context, input *struct {
		RunID  string `path:"run_id"`
		Format string `query:"format" default:"markdown" enum:"markdown,junit,html,list" doc:"Report format"`
	}) (*reportOutput, error) {
		data, contentType, err := svc.RenderReport(ctx, input.RunID, input.Format)
		if err != nil {
			return nil, mapErr(err)
		}
		return &reportOutput{ContentType: contentType, Body: data}, nil
	})
}

func registerArtifactHandlers(api huma.API, svc Service) {
	type artifactOutput struct {
		ContentType string `header:"Content-Type"`
		CheckName   string `header:"X-Check-Name"`
		RunID       string `header:"X-Run-ID"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-artifact",
		Method:      http.MethodGet,
		Path:        "/api/v1/artifacts/{artifact_id}",
		Summary:     "Get failure screenshot",
		Tags:        []string{"Artifacts"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Screenshot image",
				Content: map[string]*huma.MediaType{
					"image/png": {
						Schema: &huma.Schema{Type: "string", Format: "binary"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *struct {
		ArtifactID string `path:"artifact_id"`
	}) (*artifactOutput, error) {
		data, meta, err := svc.ReadArtifact(input.ArtifactID)
		if err != nil {
			return nil, mapErr(err)
		}
		return &artifactOutput{ContentType: contentTypeFor(meta), CheckName: meta.Check, RunID: meta.RunID, Body: data}, nil
	})
}

func contentTypeFor(meta artifact.Meta) string {
	if meta.Format == "jpeg" {
		return "image/jpeg"
	}
	return "image/png"
}
