package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const heartbeatInterval = 15 * time.Second

// streamEvents exposes a property's change signals as server-sent events.
// Each event is a cue to refetch, never authoritative state. The subscription
// ends synchronously when the client disconnects.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	property := r.URL.Query().Get("property")
	if property == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "property parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternalError, "streaming unsupported")
		return
	}

	sub := h.bus.Subscribe(property)
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			// Comment line keeps proxies from timing out the stream.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case sig, ok := <-sub.Signals():
			if !ok {
				return
			}
			data, err := json.Marshal(sig)
			if err != nil {
				h.log.Error("marshal change signal", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
