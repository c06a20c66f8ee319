package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"wiki-companion/favorites"
)

type favoriteRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

func (h *handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	by := favorites.Sort(r.URL.Query().Get("sort"))
	switch by {
	case "", favorites.SortRecent, favorites.SortTitle:
	default:
		http.Error(w, "unknown sort order", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.favorites.List(by, r.URL.Query().Get("category")))
}

func (h *handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "favorite id is required", http.StatusBadRequest)
		return
	}

	added := h.favorites.Add(r.Context(), favorites.Record{
		ID:       req.ID,
		Title:    req.Title,
		URL:      req.URL,
		Category: req.Category,
	})

	// A duplicate add is not an error: report the record that is stored.
	rec, _ := h.favorites.Get(req.ID)
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, rec)
}

func (h *handler) getFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp := struct {
		ID       string            `json:"id"`
		Favorite bool              `json:"favorite"`
		Record   *favorites.Record `json:"record,omitempty"`
	}{ID: id}
	if rec, ok := h.favorites.Get(id); ok {
		resp.Favorite = true
		resp.Record = &rec
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	// Removing an absent id is a no-op, not a 404.
	h.favorites.Remove(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}
