package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
	"ms-storefront/internal/utils"
)

type RoomSubscriber interface {
	Subscribe(ctx context.Context, roomID string) <-chan models.ChatMessage
}

// StreamHandler pushes new messages of one room over Server-Sent Events.
type StreamHandler struct {
	Service   ChatService
	Events    RoomSubscriber
	Logger    *logger.Logger
	Heartbeat time.Duration
}

func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", "Streaming unsupported")
		return
	}

	// the history doubles as the room existence check
	history, err := h.Service.ListMessages(ctx, roomID)
	if err != nil {
		writeServiceError(w, h.Logger, err, "Failed to open stream")
		return
	}

	events := h.Events.Subscribe(ctx, roomID)

	// streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	snapshot, _ := json.Marshal(map[string]interface{}{"room_id": roomID, "messages": history})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", snapshot)
	flusher.Flush()
	h.Logger.LogChat("STREAM_OPEN", roomID, "client connected")

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize chat message: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: message\nid: %s\ndata: %s\n\n", msg.ID, data)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.LogChat("STREAM_CLOSE", roomID, "client disconnected")
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
