package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sugarloaf/chat-server-go/internal/model"
	redisclient "github.com/sugarloaf/chat-server-go/internal/redis"
	"github.com/sugarloaf/chat-server-go/internal/sse"
)

// EventsHandler streams chat events over SSE. It is the push alternative to
// the widget's and dashboard's fixed-interval polling: clients that hold a
// stream open see new messages and status flips without waiting out a poll
// interval. Fanout goes through Redis so it works across instances.
type EventsHandler struct {
	broker *sse.Broker
}

func NewEventsHandler(broker *sse.Broker) *EventsHandler {
	return &EventsHandler{broker: broker}
}

// ServeSession streams events for one chat session to its customer widget.
func (h *EventsHandler) ServeSession(w http.ResponseWriter, r *http.Request, session *model.ChatSession) {
	h.serve(w, r, redisclient.SessionChannel(session.ID), map[string]any{
		"sessionId": session.ID,
		"status":    session.Status,
	})
}

// ServeAdmin streams dashboard-wide events (all sessions) to the back office.
func (h *EventsHandler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, redisclient.AdminChannel, map[string]any{
		"channel": "admin",
	})
}

func (h *EventsHandler) serve(w http.ResponseWriter, r *http.Request, topic string, connectedData map[string]any) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(topic)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("topic", topic).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, "connected", connectedData); err != nil {
		log.Error().Err(err).Msg("failed to send connected event")
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("topic", topic).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("topic", topic).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("topic", topic).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
