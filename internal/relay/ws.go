package relay

import (
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// WSHandler returns an http.HandlerFunc that upgrades to a WebSocket and
// writes each run event as one text frame holding the event JSON. It takes
// the same filters as SSEHandler. Client frames other than close are
// ignored.
func WSHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := parseFilter(r)
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			slog.Debug("relay: ws upgrade failed", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		// The reader goroutine notices client close or a broken connection.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := wsutil.ReadClientData(conn); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !f.accept(evt) {
					continue
				}
				if err := wsutil.WriteServerText(conn, []byte(evt.Payload)); err != nil {
					slog.Debug("relay: ws write failed", "error", err)
					return
				}
			}
		}
	}
}
