package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/tether-go/internal/service"
	"github.com/openclaw/tether-go/internal/sse"
)

// EventsHandler streams notices as they happen and a "state" event on every
// refresh interval so the countdown can be rendered live.
type EventsHandler struct {
	broker   *sse.Broker
	manager  *service.PairingManager
	interval time.Duration
}

func NewEventsHandler(broker *sse.Broker, manager *service.PairingManager, interval time.Duration) *EventsHandler {
	if interval <= 0 {
		interval = service.DefaultTickInterval
	}
	return &EventsHandler{
		broker:   broker,
		manager:  manager,
		interval: interval,
	}
}

// GET /api/tether/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe()
	defer h.broker.Unsubscribe(client)

	userID := h.manager.CurrentUser().ID
	log.Info().Str("userId", userID).Msg("sse connection established")

	if err := h.sendState(w, flusher); err != nil {
		return
	}

	refresh := time.NewTicker(h.interval)
	defer refresh.Stop()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("userId", userID).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("userId", userID).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			// follow every notice with the state it produced
			if err := h.sendState(w, flusher); err != nil {
				return
			}

		case <-refresh.C:
			if err := h.sendState(w, flusher); err != nil {
				log.Debug().Err(err).Msg("state refresh failed, closing connection")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("userId", userID).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendState(w http.ResponseWriter, flusher http.Flusher) error {
	data, err := json.Marshal(formatState(h.manager.CurrentUser(), h.manager.State()))
	if err != nil {
		return err
	}
	return sendRawEvent(w, flusher, sse.Event{Type: "state", Data: data})
}

func sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
