package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	httpadapter "electra/contexts/election-core/vote-admission/adapters/http"
)

// handleTallyStream pushes tally snapshots over server-sent events. The
// subscription delivers the current snapshot first, then one event per
// confirmed vote, in order, until the client disconnects.
func (s *Server) handleTallyStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAdmissionError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming")
		return
	}

	subscription := s.admission.Broadcaster.Subscribe()
	defer subscription.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-subscription.Updates():
			if !open {
				return
			}
			payload, err := json.Marshal(httpadapter.TallyResponseFromSnapshot(snapshot))
			if err != nil {
				s.logger.Error("tally snapshot encode failed",
					"event", "http_tally_stream_encode_failed",
					"module", "internal/platform/httpserver",
					"layer", "platform",
					"error", err.Error(),
				)
				return
			}
			if _, err := fmt.Fprintf(w, "event: tally\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
