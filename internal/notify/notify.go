// Package notify posts run summaries to an ntfy topic.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dgnsrekt/docsmoke/internal/smoke"
)

// Message is one ntfy notification.
type Message struct {
	Title    string
	Body     string
	Priority string
	Tags     []string
}

// RunMessage summarises run for a notification. Failed runs list each
// failing check with its step and error code.
func RunMessage(run *smoke.Run) Message {
	if run.OK() {
		return Message{
			Title:    "docsmoke passed",
			Body:     fmt.Sprintf("%d checks passed against %s (%dms)", run.Passed, run.BaseURL, run.DurationMS),
			Priority: "default",
			Tags:     []string{"white_check_mark"},
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d checks failed against %s", run.Failed, run.Passed+run.Failed, run.BaseURL)
	for _, res := range run.Results {
		if res.Passed() {
			continue
		}
		fmt.Fprintf(&b, "\n- %s: %s %s", res.Check, res.FailedStep, res.ErrorCode)
	}
	fmt.Fprintf(&b, "\nrun %s", run.ID)
	return Message{
		Title:    "docsmoke failed",
		Body:     b.String(),
		Priority: "high",
		Tags:     []string{"rotating_light"},
	}
}

// Send posts msg to endpoint using ntfy's header form.
func Send(ctx context.Context, client *http.Client, endpoint string, msg Message) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("ntfy endpoint is required")
	}
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if msg.Priority != "" {
		req.Header.Set("Priority", msg.Priority)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
