package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"lobbysync/internal/ledger"
	"lobbysync/internal/store"
)

// Pinger is implemented by stores that can check their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	store  store.Store
	ledger *ledger.Ledger
}

func NewAdminHandlers(st store.Store) *AdminHandlers {
	return &AdminHandlers{store: st, ledger: ledger.New(st)}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := h.store.(Pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "store": "down"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "store": "up"})
	}
}

// Topup adjusts a participant's chips by amount, which may be negative.
func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SessionID     string `json:"session_id"`
			ParticipantID string `json:"participant_id"`
			Amount        int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if store.ValidSegment(body.SessionID) != nil || store.ValidSegment(body.ParticipantID) != nil || body.Amount == 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		bal, err := h.ledger.AdjustChips(r.Context(), body.SessionID, body.ParticipantID, body.Amount)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "chips": bal})
	}
}
