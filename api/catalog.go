package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wiki-companion/catalog"
)

func (h *handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}

	var (
		out any
		err error
	)
	switch chi.URLParam(r, "kind") {
	case "characters":
		out, err = h.catalog.Characters(q)
	case "weapons":
		out, err = h.catalog.Weapons(q)
	case "materials":
		out, err = h.catalog.Materials(q)
	default:
		http.Error(w, "unknown catalog", http.StatusNotFound)
		return
	}
	if err != nil {
		h.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getCatalogEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		out any
		err error
	)
	switch chi.URLParam(r, "kind") {
	case "characters":
		out, err = h.catalog.Character(id)
	case "weapons":
		out, err = h.catalog.Weapon(id)
	case "materials":
		out, err = h.catalog.Material(id)
	default:
		http.Error(w, "unknown catalog", http.StatusNotFound)
		return
	}
	if err != nil {
		h.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Tiers())
}

func (h *handler) catalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, catalog.ErrBadQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.Error("catalog query failed", zap.Error(err))
		http.Error(w, "catalog query failed", http.StatusInternalServerError)
	}
}

func parseQuery(w http.ResponseWriter, r *http.Request) (catalog.Query, bool) {
	v := r.URL.Query()
	q := catalog.Query{
		Search:  v.Get("q"),
		Element: v.Get("element"),
		Weapon:  v.Get("weapon"),
		Kind:    v.Get("kind"),
		Where:   v.Get("where"),
		Sort:    v.Get("sort"),
	}
	if s := v.Get("rarity"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			http.Error(w, "rarity must be a number", http.StatusBadRequest)
			return q, false
		}
		q.Rarity = n
	}
	return q, true
}
