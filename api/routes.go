package api

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"wiki-companion/catalog"
	"wiki-companion/favorites"
	"wiki-companion/notify"
	"wiki-companion/session"
	"wiki-companion/theme"
)

// SessionHeader carries the id of the tab that issued a request, so the
// resulting change is not echoed back to it.
const SessionHeader = "X-Session-ID"

// Deps are the components served by the router.
type Deps struct {
	Sessions  *session.Manager
	Favorites *favorites.Manager
	Theme     *theme.Manager
	Catalog   *catalog.Catalog
	Log       *zap.Logger
}

func RegisterRoutes(deps Deps, staticFS fs.FS) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(withOrigin)

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{
		sessions:  deps.Sessions,
		favorites: deps.Favorites,
		theme:     deps.Theme,
		catalog:   deps.Catalog,
		log:       log,
	}

	// Tab sessions
	r.Get("/api/sessions", h.listSessions)
	r.Post("/api/sessions", h.createSession)
	r.Delete("/api/sessions/{id}", h.killSession)

	// WebSocket
	r.Get("/api/sessions/{id}/ws", h.handleWS)

	// Favorites API
	r.Get("/api/favorites", h.listFavorites)
	r.Post("/api/favorites", h.addFavorite)
	r.Get("/api/favorites/{id}", h.getFavorite)
	r.Delete("/api/favorites/{id}", h.removeFavorite)

	// Theme API
	r.Get("/api/theme", h.getTheme)
	r.Put("/api/theme", h.putTheme)
	r.Post("/api/theme/toggle", h.toggleTheme)

	// Catalog API
	r.Get("/api/catalog/tiers", h.listTiers)
	r.Get("/api/catalog/{kind}", h.listCatalog)
	r.Get("/api/catalog/{kind}/{id}", h.getCatalogEntry)

	// Static sub-FS: strip the "static/" prefix present in the embed.FS.
	// In dev mode staticFS is already rooted at the asset directory, so Sub
	// returns a wrapper unconditionally (no error) but the sub-FS would look
	// for static/* which doesn't exist. Probe index.html to detect this.
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		staticSub = staticFS
	} else if _, statErr := fs.Stat(staticSub, "index.html"); statErr != nil {
		staticSub = staticFS
	}

	// Serve HTML pages by reading from the FS directly.
	// Using http.FileServer with r.URL.Path ending in "index.html" triggers
	// Go's built-in redirect to "./"; read the file manually instead.
	r.Get("/", serveFile(staticSub, "index.html"))
	r.Get("/favorites", serveFile(staticSub, "index.html"))
	r.Get("/characters/{id}", serveFile(staticSub, "index.html"))

	// Static assets
	fileServer := http.FileServer(http.FS(staticSub))
	r.Get("/css/*", fileServer.ServeHTTP)
	r.Get("/js/*", fileServer.ServeHTTP)

	return r
}

// serveFile returns a handler that reads a single file from fsys and sends it.
func serveFile(fsys fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}

// withOrigin tags the request context with the calling tab's session id.
func withOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(SessionHeader); id != "" {
			r = r.WithContext(notify.WithOrigin(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type handler struct {
	sessions  *session.Manager
	favorites *favorites.Manager
	theme     *theme.Manager
	catalog   *catalog.Catalog
	log       *zap.Logger
}
