package eventbus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
)

// ServeSSE serves one subscriber's SSE stream: set streaming headers,
// register, loop on the subscriber channel and a heartbeat ticker, and
// clean up (evicting the subscriber, decrementing its viewer count) on
// context cancellation.
//
// initialScope, if non-empty, focuses the subscriber on that ticket scope
// before the first event is sent (the client's initial page load already
// knows which ticket it's viewing).
func ServeSSE(w http.ResponseWriter, r *http.Request, bus *Bus, userID uuid.UUID, initialScope string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := bus.Subscribe(userID)
	defer bus.Evict(sub)

	if initialScope != "" {
		bus.Focus(sub, initialScope)
	}

	fmt.Fprint(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", evt.Kind, evt.Seq, evt.Payload); err != nil {
				logx.WithContext(ctx).Errorf("eventbus: write to subscriber %s failed: %v", sub.ID, err)
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
