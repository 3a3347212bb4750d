package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	apppublic "lobbysync/internal/app/public"

	"github.com/go-chi/chi/v5"
)

type PublicHandlers struct {
	publicSvc *apppublic.Service
}

func NewPublicHandlers(publicSvc *apppublic.Service) *PublicHandlers {
	return &PublicHandlers{publicSvc: publicSvc}
}

func (h *PublicHandlers) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.publicSvc.Sessions(r.Context(), r.URL.Query().Get("game_type"), limit, offset)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (h *PublicHandlers) Leaderboard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sortBy := r.URL.Query().Get("sort")
		if sortBy != "" && !isAllowedLeaderboardSort(sortBy) {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_sort")
			return
		}
		resp, err := h.publicSvc.Leaderboard(r.Context(), chi.URLParam(r, "session_id"), sortBy)
		if err != nil {
			switch {
			case errors.Is(err, apppublic.ErrInvalidRequest):
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			case errors.Is(err, apppublic.ErrSessionNotFound):
				WriteHTTPError(w, http.StatusNotFound, "session_not_found")
			default:
				writeStoreError(w, err)
			}
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func isAllowedLeaderboardSort(v string) bool {
	switch v {
	case "wins", "score", "chips":
		return true
	default:
		return false
	}
}
