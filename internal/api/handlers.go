// Package api is the JSON surface through which connections drive the
// core: matchmaking, the lobby create/join flow, and per-game operations.
// It only translates requests; all behavior lives in the core packages.
// Identity is taken from the request because credential handling is a
// separate service's concern.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/castlelight/gambit/internal/game"
	"github.com/castlelight/gambit/internal/matchmaking"
	"github.com/castlelight/gambit/internal/models"
	"github.com/castlelight/gambit/internal/rules"
)

// API serves the HTTP endpoints.
type API struct {
	queue    *matchmaking.Queue
	mailbox  *matchmaking.Mailbox
	registry *game.Registry
}

// New wires the handlers.
func New(queue *matchmaking.Queue, mailbox *matchmaking.Mailbox, registry *game.Registry) *API {
	return &API{queue: queue, mailbox: mailbox, registry: registry}
}

// RegisterRoutes mounts every endpoint on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games/matchmaking", a.handleEnqueue)
	mux.HandleFunc("GET /api/games/matchmaking/status", a.handleQueueStatus)
	mux.HandleFunc("POST /api/games/matchmaking/cancel", a.handleCancel)
	mux.HandleFunc("GET /api/games/matchmaking/check", a.handleCheck)
	mux.HandleFunc("POST /api/games/create", a.handleCreate)
	mux.HandleFunc("GET /api/games/waiting", a.handleWaiting)
	mux.HandleFunc("POST /api/games/join/{id}", a.handleJoin)
	mux.HandleFunc("GET /api/games/{id}", a.handleSnapshot)
	mux.HandleFunc("GET /api/games/{id}/moves", a.handleLegalMoves)
	mux.HandleFunc("POST /api/games/{id}/move", a.handleMove)
	mux.HandleFunc("POST /api/games/{id}/resign", a.handleResign)
	mux.HandleFunc("POST /api/games/{id}/disconnect", a.handleDisconnect)
	mux.HandleFunc("POST /api/games/{id}/draw/offer", a.handleOfferDraw)
	mux.HandleFunc("POST /api/games/{id}/draw/accept", a.handleAcceptDraw)
	mux.HandleFunc("POST /api/games/{id}/draw/decline", a.handleDeclineDraw)
}

type enqueueRequest struct {
	UserID      uuid.UUID       `json:"user_id"`
	Username    string          `json:"username"`
	Rating      int             `json:"rating"`
	GameType    models.GameType `json:"game_type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
}

func (a *API) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !readJSON(w, r, &req) {
		return
	}
	gameType := req.GameType
	if gameType == "" {
		gameType = models.GameTypeCasual
	}

	result, err := a.queue.Enqueue(gameType, models.QueueEntry{
		UserID:   req.UserID,
		Username: req.Username,
		Rating:   req.Rating,
		Meta:     models.GameMeta{Name: req.Name, Description: req.Description},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if result != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"match_found": true,
			"game_uuid":   result.GameID,
			"opponent":    result.Opponent,
			"color":       result.Side,
			"name":        result.Meta.Name,
			"description": result.Meta.Description,
		})
		return
	}

	status := a.queue.Status(gameType, req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"match_found":    false,
		"queue_position": status.Position,
	})
}

func (a *API) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.queue.Status(queryGameType(r), userID))
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	a.queue.Cancel(queryGameType(r), userID)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}
	n, ok := a.mailbox.Consume(userID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"match_found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match_found": true,
		"game_uuid":   n.GameID,
		"opponent":    n.Opponent,
		"color":       n.Side,
		"name":        n.Meta.Name,
		"description": n.Meta.Description,
	})
}

type createRequest struct {
	UserID      uuid.UUID       `json:"user_id"`
	Username    string          `json:"username"`
	GameType    models.GameType `json:"game_type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !readJSON(w, r, &req) {
		return
	}
	if existing, ok := a.registry.ActiveFor(req.UserID); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     game.ErrHasActiveGame.Error(),
			"game_uuid": existing.ID,
		})
		return
	}
	gameType := req.GameType
	if gameType == "" {
		gameType = models.GameTypeCasual
	}

	session := a.registry.Create(game.CreateGameRequest{
		White:     req.UserID,
		WhiteName: req.Username,
		GameType:  gameType,
		Meta:      models.GameMeta{Name: req.Name, Description: req.Description},
	})

	a.mailbox.Deposit(req.UserID, models.MatchNotification{
		GameID: session.ID,
		Side:   models.SideWhite,
		Meta:   session.Meta,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"game_uuid":   session.ID,
		"name":        session.Meta.Name,
		"description": session.Meta.Description,
	})
}

func (a *API) handleWaiting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.registry.WaitingGames())
}

type joinRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !readJSON(w, r, &req) {
		return
	}

	if err := session.Join(r.Context(), req.UserID, req.Username); err != nil {
		writeError(w, err)
		return
	}

	snap := session.Snapshot()
	a.mailbox.Deposit(snap.WhiteID, models.MatchNotification{
		GameID:   session.ID,
		Opponent: snap.BlackName,
		Side:     models.SideWhite,
		Meta:     session.Meta,
	})
	a.mailbox.Deposit(req.UserID, models.MatchNotification{
		GameID:   session.ID,
		Opponent: snap.WhiteName,
		Side:     models.SideBlack,
		Meta:     session.Meta,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"game_uuid": session.ID,
		"opponent":  snap.WhiteName,
		"color":     models.SideBlack,
	})
}

func (a *API) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (a *API) handleLegalMoves(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	moves, err := session.LegalMoves()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moves": moves})
}

type moveRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Move   string    `json:"move"`
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := session.ApplyMove(r.Context(), req.UserID, rules.Move(req.Move)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (a *API) handleResign(w http.ResponseWriter, r *http.Request) {
	a.handleConcede(w, r, false)
}

func (a *API) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	a.handleConcede(w, r, true)
}

func (a *API) handleConcede(w http.ResponseWriter, r *http.Request, disconnect bool) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !readJSON(w, r, &req) {
		return
	}

	var result *models.GameResult
	var err error
	if disconnect {
		result, err = session.HandleDisconnect(r.Context(), req.UserID)
	} else {
		result, err = session.Resign(r.Context(), req.UserID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleOfferDraw(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := session.OfferDraw(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offered": true})
}

func (a *API) handleAcceptDraw(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !readJSON(w, r, &req) {
		return
	}
	result, err := session.AcceptDraw(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDeclineDraw(w http.ResponseWriter, r *http.Request) {
	session, ok := a.pathSession(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := session.DeclineDraw(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"declined": true})
}

func (a *API) pathSession(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid game id"})
		return nil, false
	}
	session, err := a.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return session, true
}

func queryUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid user id"})
		return uuid.Nil, false
	}
	return userID, true
}

func queryGameType(r *http.Request) models.GameType {
	if gt := r.URL.Query().Get("game_type"); gt != "" {
		return models.GameType(gt)
	}
	return models.GameTypeCasual
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

// writeError maps core errors onto HTTP statuses. Every rejection carries
// its reason; nothing is dropped silently.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, game.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, game.ErrNotInGame), errors.Is(err, game.ErrOwnGame):
		status = http.StatusForbidden
	case errors.Is(err, matchmaking.ErrAlreadyQueued),
		errors.Is(err, game.ErrAlreadyFull),
		errors.Is(err, game.ErrHasActiveGame):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
