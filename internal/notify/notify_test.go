package notify

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("ok")),
		Header:     make(http.Header),
	}
}

func failedRun() *smoke.Run {
	return &smoke.Run{
		ID:      "r1",
		BaseURL: "http://localhost:8001",
		Passed:  1,
		Failed:  1,
		Results: []smoke.Result{
			{Check: "quick-link", Status: smoke.StatusPassed},
			{Check: "setup-guide", Status: smoke.StatusFailed, FailedStep: smoke.StepTargetVisible, ErrorCode: "ELEMENT_NOT_VISIBLE"},
		},
	}
}

func TestSendPostsMessage(t *testing.T) {
	ctx := context.Background()

	var received *http.Request
	var receivedBody string
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			received = r
			rawBody, err := io.ReadAll(r.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			receivedBody = string(rawBody)
			return okResponse(), nil
		}),
	}

	msg := RunMessage(failedRun())
	if err := Send(ctx, client, "http://example.com/docsmoke", msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got, want := received.Method, http.MethodPost; got != want {
		t.Fatalf("method = %q; want %q", got, want)
	}
	if got, want := received.URL.Path, "/docsmoke"; got != want {
		t.Fatalf("path = %q; want %q", got, want)
	}
	if got, want := received.Header.Get("Title"), "docsmoke failed"; got != want {
		t.Fatalf("title = %q; want %q", got, want)
	}
	if got, want := received.Header.Get("Priority"), "high"; got != want {
		t.Fatalf("priority = %q; want %q", got, want)
	}
	if got, want := received.Header.Get("Tags"), "rotating_light"; got != want {
		t.Fatalf("tags = %q; want %q", got, want)
	}
	if got, want := receivedBody, msg.Body; got != want {
		t.Fatalf("body = %q; want %q", got, want)
	}
}

func TestRunMessage(t *testing.T) {
	msg := RunMessage(failedRun())
	for _, want := range []string{"1 of 2 checks failed", "setup-guide: target-visible ELEMENT_NOT_VISIBLE", "run r1"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body = %q; want to contain %q", msg.Body, want)
		}
	}
	if strings.Contains(msg.Body, "quick-link") {
		t.Fatalf("body = %q; passing checks should not be listed", msg.Body)
	}

	ok := RunMessage(&smoke.Run{BaseURL: "http://docs.test", Passed: 2, Results: make([]smoke.Result, 2)})
	if ok.Title != "docsmoke passed" || !strings.Contains(ok.Body, "2 checks passed") {
		t.Fatalf("passing message = %+v", ok)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(context.Background(), client, "http://example.com/docsmoke", Message{Body: "x"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "ntfy notification failed") {
		t.Fatalf("error = %q; want to contain %q", err, "ntfy notification failed")
	}
}

func TestSendDisallowsMissingEndpoint(t *testing.T) {
	if err := Send(context.Background(), http.DefaultClient, "", Message{Body: "x"}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
