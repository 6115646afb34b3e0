package messaging

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tbonnaves/chat-relay/internal/model/chat"
	"github.com/tbonnaves/chat-relay/internal/service/relay"
	"github.com/tbonnaves/chat-relay/pkg/utils"
)

// Handler adapts the relay service to the /messaging HTTP surface.
type Handler struct {
	relay *relay.Service
}

// New creates the messaging handler.
func New(relaySvc *relay.Service) *Handler {
	return &Handler{relay: relaySvc}
}

// RegisterRoutes mounts the messaging endpoints. OPTIONS preflights are
// answered by the CORS middleware before routing.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/messaging", h.handleList)
	r.Post("/messaging/{sessionID}", h.handleSend)
	r.Get("/messaging/{sessionID}", h.handleHistory)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Prompt string  `json:"prompt"`
		Key    string  `json:"key"`
		Name   *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Prompt == "" {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	reply, err := h.relay.Send(r.Context(), relay.SendRequest{
		SessionID: sessionID,
		Prompt:    payload.Prompt,
		Key:       payload.Key,
		Name:      payload.Name,
	})
	if err != nil {
		respondRelayError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	record, err := h.relay.History(r.Context(), sessionID, r.URL.Query().Get("key"))
	if err != nil {
		respondRelayError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"name":    record.Name,
		"history": record.Messages,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.relay.Sessions(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		respondRelayError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"chats": sessions})
}

// respondRelayError maps relay errors onto the external status codes. A
// corrupted transcript surfaces its session id in the message; other
// internal failures stay opaque.
func respondRelayError(w http.ResponseWriter, err error) {
	var corrupted *chat.CorruptionError
	switch {
	case errors.Is(err, relay.ErrInvalidKey):
		utils.RespondError(w, http.StatusForbidden, "forbidden: invalid key")
	case errors.As(err, &corrupted):
		utils.RespondError(w, http.StatusInternalServerError, corrupted.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
