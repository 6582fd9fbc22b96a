package relay

import (
	"fmt"
	"net/http"
	"strings"
)

// filter selects events by type and run id. Zero value accepts everything.
type filter struct {
	types map[string]bool
	runID string
}

// parseFilter reads ?types=step,check_done and ?run_id=.
func parseFilter(r *http.Request) filter {
	var f filter
	if q := r.URL.Query().Get("types"); q != "" {
		f.types = make(map[string]bool)
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.types[t] = true
			}
		}
	}
	f.runID = strings.TrimSpace(r.URL.Query().Get("run_id"))
	return f
}

func (f filter) accept(evt Event) bool {
	if f.types != nil && !f.types[evt.Type] {
		return false
	}
	return f.runID == "" || f.runID == evt.RunID
}

// SSEHandler returns an http.HandlerFunc that streams run events as SSE.
// Clients may filter via ?types=step,run_finished and ?run_id=<id>.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}
		f := parseFilter(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !f.accept(evt) {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, evt.Payload)
				flusher.Flush()
			}
		}
	}
}
