package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"lobbysync/internal/store"
	"lobbysync/internal/ws"

	"github.com/go-chi/chi/v5"
)

const maxStoreBody = 1 << 20

// StoreHandlers expose a store.Store over HTTP. Subscriptions are streamed
// by the ws package.
type StoreHandlers struct {
	store store.Store
	subs  *ws.Server
}

func NewStoreHandlers(st store.Store) *StoreHandlers {
	return &StoreHandlers{store: st, subs: ws.NewServer(st)}
}

// Routes mounts the store endpoints under /store.
func (h *StoreHandlers) Routes(r chi.Router) {
	r.Get("/store/value", h.Read())
	r.Put("/store/value", h.Write())
	r.Patch("/store/value", h.Update())
	r.Delete("/store/value", h.Remove())
	r.Post("/store/push", h.Push())
	r.Get("/store/query", h.Query())
	r.Get("/store/subscribe", h.subs.HandleSubscribe)
}

// Subscribers is the websocket side, exposed so the server can close open
// streams on shutdown.
func (h *StoreHandlers) Subscribers() *ws.Server { return h.subs }

func (h *StoreHandlers) Read() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok, err := h.store.Read(r.Context(), r.URL.Query().Get("path"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"exists": ok, "value": v})
	}
}

func (h *StoreHandlers) Write() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var value any
		if !decodeBody(w, r, &value) {
			return
		}
		if err := h.store.Write(r.Context(), r.URL.Query().Get("path"), value); err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *StoreHandlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		if !decodeBody(w, r, &patch) {
			return
		}
		if err := h.store.Update(r.Context(), r.URL.Query().Get("path"), patch); err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *StoreHandlers) Remove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Remove(r.Context(), r.URL.Query().Get("path")); err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

func (h *StoreHandlers) Push() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := h.store.Push(r.Context(), r.URL.Query().Get("path"))
		if err != nil {
			writeStoreError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"key": key})
	}
}

func (h *StoreHandlers) Query() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		q := store.Query{OrderByChild: params.Get("order_by")}
		if v := params.Get("equal_to"); v != "" {
			if err := json.Unmarshal([]byte(v), &q.EqualTo); err != nil {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
				return
			}
		}
		if v := params.Get("limit_to_last"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			q.LimitToLast = n
		}
		items, err := h.store.Query(r.Context(), params.Get("path"), q)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		if items == nil {
			items = []store.Child{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStoreBody)).Decode(out); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidPath):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_path")
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
