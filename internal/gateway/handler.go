package gateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/castlelight/gambit/internal/events"
	"github.com/castlelight/gambit/internal/game"
)

// LocalSink wires a session's events straight into the room broadcast for
// single-process deployments that run without a message bus.
type LocalSink struct {
	manager *ConnectionManager
}

// NewLocalSink returns a Sink over manager.
func NewLocalSink(manager *ConnectionManager) *LocalSink {
	return &LocalSink{manager: manager}
}

// Publish implements events.Sink.
func (s *LocalSink) Publish(event *events.GameEvent) {
	s.manager.Broadcast(event)
}

// Handler serves the websocket subscribe endpoint.
type Handler struct {
	manager  *ConnectionManager
	registry *game.Registry
}

// NewHandler creates the websocket handler.
func NewHandler(manager *ConnectionManager, registry *game.Registry) *Handler {
	return &Handler{manager: manager, registry: registry}
}

// RegisterRoutes mounts the websocket endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/games/{id}", h.handleSubscribe)
}

// handleSubscribe upgrades the request and joins the caller to the game's
// room. Only the two players of the game may subscribe.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	session, err := h.registry.Get(gameID)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if !session.HasPlayer(userID) {
		http.Error(w, "not a player of this game", http.StatusForbidden)
		return
	}

	if err := h.manager.Upgrade(w, r, userID.String(), gameID); err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("websocket upgrade failed")
	}
}
