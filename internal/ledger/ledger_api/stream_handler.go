package ledger_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ticket-ledger/internal/ledger"
	"ticket-ledger/internal/sse"
)

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// StreamEntries pushes journal entries as server-sent events while the client
// stays connected. ?eventId=N narrows the stream to one event.
func (h *Handler) StreamEntries(w http.ResponseWriter, r *http.Request) {
	if h.Stream == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("Journal streaming is disabled", "Unavailable"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody("Streaming unsupported", "Internal"))
		return
	}

	eventID := sse.AllEvents
	if raw := r.URL.Query().Get("eventId"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, "StreamEntries", fmt.Errorf("invalid eventId %q: %w", raw, ledger.ErrInvalidInput))
			return
		}
		if _, err := h.Ledger.GetEvent(v); err != nil {
			h.writeError(w, "StreamEntries", err)
			return
		}
		eventID = v
	}

	// The server WriteTimeout would otherwise cut the stream off.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.Logger.Warn("SSE", fmt.Sprintf("Failed to clear write deadline: %v", err))
	}

	ctx := r.Context()
	entries := h.Stream.Subscribe(ctx, eventID)

	setupSSEHeaders(w)
	seq, _ := h.Ledger.Head()
	fmt.Fprintf(w, "event: connected\ndata: {\"eventId\":\"%d\",\"head\":\"%d\"}\n\n", eventID, seq)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to journal stream for event %d", eventID))

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			data, err := json.Marshal(entry)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize entry %d: %v", entry.Seq, err))
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", entry.Seq, entry.Kind, data)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from journal stream for event %d", eventID))
			return
		}
	}
}
