package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"wiki-companion/theme"
)

// hintHeader is the client hint carrying the platform colour scheme.
const hintHeader = "Sec-CH-Prefers-Color-Scheme"

type themeResponse struct {
	Theme  theme.Preference `json:"theme"`
	Source theme.Source     `json:"source"`
}

func (h *handler) getTheme(w http.ResponseWriter, r *http.Request) {
	// Ask supporting browsers to send the hint on subsequent requests.
	w.Header().Set("Accept-CH", hintHeader)
	w.Header().Add("Vary", hintHeader)

	p := h.theme.Init(r.Context(), r.Header.Get(hintHeader))
	writeJSON(w, http.StatusOK, themeResponse{Theme: p, Source: h.theme.Source()})
}

func (h *handler) putTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p, err := theme.Parse(req.Theme)
	if err != nil {
		http.Error(w, "theme must be light or dark", http.StatusBadRequest)
		return
	}
	if err := h.theme.Set(r.Context(), p); err != nil {
		if errors.Is(err, theme.ErrInvalid) {
			http.Error(w, "theme must be light or dark", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to set theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: p, Source: h.theme.Source()})
}

func (h *handler) toggleTheme(w http.ResponseWriter, r *http.Request) {
	p := h.theme.Toggle(r.Context())
	writeJSON(w, http.StatusOK, themeResponse{Theme: p, Source: h.theme.Source()})
}
