package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/KamdynS/claimreview/state"
)

// EventsSinceGetter fetches session events since a given sequence.
type EventsSinceGetter func(ctx context.Context, sessionID string, since int64) ([]*state.Event, error)

// DoneChecker reports whether a session will produce no further events.
type DoneChecker func(ctx context.Context, sessionID string) (bool, error)

// StreamEvents streams session frame events over SSE using the provided getter.
// - Respects Last-Event-ID for resume (pass empty string if none)
// - Sends heartbeat comments ": ping" at the provided heartbeat interval (default 15s)
// - Polls for new events at pollInterval (default 500ms)
// - Emits "event: done" and returns once isDone reports true and the backlog is flushed
func StreamEvents(
	ctx context.Context,
	w http.ResponseWriter,
	lastEventID string,
	getSince EventsSinceGetter,
	isDone DoneChecker,
	sessionID string,
	pollInterval time.Duration,
	heartbeatInterval time.Duration,
) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("stream unsupported")
	}
	sseHeaders(w)

	// Parse Last-Event-ID if provided
	var since int64
	if lastEventID != "" {
		if v, err := strconv.ParseInt(lastEventID, 10, 64); err == nil {
			since = v
		}
	}

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}
	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			// Checked before fetching: a closed session has appended its last event.
			done := false
			if isDone != nil {
				d, err := isDone(ctx, sessionID)
				if err != nil {
					return err
				}
				done = d
			}
			evs, err := getSince(ctx, sessionID, since)
			if err != nil {
				return err
			}
			for _, ev := range evs {
				if ev.SequenceNum > since {
					since = ev.SequenceNum
				}
				writeEvent(w, strconv.FormatInt(ev.SequenceNum, 10), string(ev.Type), ev)
			}
			if done {
				writeEvent(w, "", "done", struct{}{})
				flusher.Flush()
				return nil
			}
			flusher.Flush()
		case <-hb.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeEvent writes one SSE event; id is omitted when empty.
func writeEvent(w http.ResponseWriter, id, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		b = []byte(`{}`)
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", b)
}
