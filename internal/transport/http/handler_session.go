package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	appsession "lobbysync/internal/app/session"
	"lobbysync/internal/coordinator"
	"lobbysync/internal/game"
	"lobbysync/internal/lobby"
	"lobbysync/internal/store"

	"github.com/go-chi/chi/v5"
)

type SessionHandlers struct {
	svc *appsession.Service
}

func NewSessionHandlers(svc *appsession.Service) *SessionHandlers {
	return &SessionHandlers{svc: svc}
}

func (h *SessionHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSessionCreateTotal.Add(1)
		var req appsession.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricSessionCreateErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.Create(r.Context(), req)
		if err != nil {
			metricSessionCreateErrors.Add(1)
			MapSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *SessionHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSessionJoinTotal.Add(1)
		var req appsession.JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricSessionJoinErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.Join(r.Context(), req)
		if err != nil {
			metricSessionJoinErrors.Add(1)
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *SessionHandlers) Match() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSessionJoinTotal.Add(1)
		var req appsession.MatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricSessionJoinErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.Match(r.Context(), req)
		if err != nil {
			metricSessionJoinErrors.Add(1)
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *SessionHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.svc.Session(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"session_id": sess.ID, "session": sess})
	}
}

func (h *SessionHandlers) View() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.svc.View(r.Context(), chi.URLParam(r, "session_id"), r.URL.Query().Get("participant_id"))
		if err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(view)
	}
}

func (h *SessionHandlers) AddBot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appsession.BotRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		id, err := h.svc.AddBot(r.Context(), chi.URLParam(r, "session_id"), req.Name)
		if err != nil {
			MapSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(appsession.BotResponse{ParticipantID: id})
	}
}

func (h *SessionHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.svc.Leave(r.Context(), chi.URLParam(r, "session_id"), chi.URLParam(r, "participant_id")); err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *SessionHandlers) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appsession.ReadyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.svc.SetReady(r.Context(), chi.URLParam(r, "session_id"), req); err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *SessionHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appsession.StartRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		if err := h.svc.Start(r.Context(), chi.URLParam(r, "session_id"), req); err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *SessionHandlers) TurnEnd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricTurnEndTotal.Add(1)
		var req appsession.TurnEndRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			metricTurnEndErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		resp, err := h.svc.TurnEnd(r.Context(), chi.URLParam(r, "session_id"), req)
		if err != nil {
			var rejected appsession.RejectedError
			if errors.As(err, &rejected) {
				metricTurnEndRejected.Add(1)
			} else {
				metricTurnEndErrors.Add(1)
			}
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *SessionHandlers) Move() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appsession.MoveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.svc.Move(r.Context(), chi.URLParam(r, "session_id"), req); err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *SessionHandlers) SwitchGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appsession.SwitchGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := h.svc.SwitchGame(r.Context(), chi.URLParam(r, "session_id"), req.GameType); err != nil {
			MapSessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

var sessionErrorStatus = []struct {
	err    error
	status int
}{
	{appsession.ErrInvalidRequest, http.StatusBadRequest},
	{lobby.ErrInvalidIdentifier, http.StatusBadRequest},
	{store.ErrInvalidPath, http.StatusBadRequest},
	{coordinator.ErrUnknownGameType, http.StatusBadRequest},
	{lobby.ErrKeyNotFound, http.StatusNotFound},
	{lobby.ErrSessionNotFound, http.StatusNotFound},
	{appsession.ErrNotParticipant, http.StatusForbidden},
	{appsession.ErrNotReady, http.StatusConflict},
	{appsession.ErrGameInProgress, http.StatusConflict},
	{coordinator.ErrNoGameState, http.StatusConflict},
	{game.ErrEmptyTurnOrder, http.StatusConflict},
	{store.ErrUnavailable, http.StatusServiceUnavailable},
	{appsession.ErrClosed, http.StatusServiceUnavailable},
}

// MapSessionError writes the error response for a session service error.
// Game rejections use the rejection as the code.
func MapSessionError(w http.ResponseWriter, err error) {
	var rejected appsession.RejectedError
	if errors.As(err, &rejected) {
		WriteHTTPError(w, http.StatusConflict, string(rejected.Rejection))
		return
	}
	for _, m := range sessionErrorStatus {
		if errors.Is(err, m.err) {
			WriteHTTPError(w, m.status, m.err.Error())
			return
		}
	}
	WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
}
