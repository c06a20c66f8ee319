package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"wiki-companion/api"
	"wiki-companion/catalog"
	"wiki-companion/favorites"
	"wiki-companion/kv"
	"wiki-companion/session"
	"wiki-companion/theme"
)

type testEnv struct {
	srv       *httptest.Server
	sessions  *session.Manager
	favorites *favorites.Manager
	theme     *theme.Manager
}

func newTestEnv(t *testing.T, opts ...theme.Option) *testEnv {
	t.Helper()
	store := kv.New(kv.NewMemory(), nil)
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default: %v", err)
	}
	env := &testEnv{
		sessions:  session.NewManager(16, nil),
		favorites: favorites.NewManager(store),
		theme:     theme.NewManager(store, opts...),
	}
	api.Bridge(env.sessions, env.favorites, env.theme, nil)

	staticFS := fstest.MapFS{
		"index.html":   {Data: []byte("<html></html>")},
		"css/site.css": {Data: []byte("body{}")},
	}
	env.srv = httptest.NewServer(api.RegisterRoutes(api.Deps{
		Sessions:  env.sessions,
		Favorites: env.favorites,
		Theme:     env.theme,
		Catalog:   cat,
	}, staticFS))
	t.Cleanup(func() {
		env.srv.Close()
		env.favorites.Close()
		env.theme.Close()
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, e.srv.URL+path, nil)
	} else {
		req, err = http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestListSessionsEmpty(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/sessions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected json content-type, got %q", ct)
	}
	var sessions []any
	decode(t, resp, &sessions)
	if len(sessions) != 0 {
		t.Fatalf("expected 0 sessions, got %d", len(sessions))
	}
}

func TestCreateSession201(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/sessions", `{"name":"my-tab"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var s map[string]any
	decode(t, resp, &s)
	if s["name"] != "my-tab" {
		t.Fatalf("expected name 'my-tab', got %v", s["name"])
	}
	if id, _ := s["id"].(string); id == "" {
		t.Fatal("expected non-empty id")
	}
}

func TestCreateSessionWithoutBody(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func TestCreateSessionBadJSON(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/sessions", "not-json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateSessionConflict(t *testing.T) {
	env := newTestEnv(t)

	if resp := env.do(t, http.MethodPost, "/api/sessions", `{"name":"dupe"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/api/sessions", `{"name":"dupe"}`); resp.StatusCode != http.StatusConflict {
		t.Fatalf("second create: expected 409, got %d", resp.StatusCode)
	}
}

func TestKillSession204(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.sessions.Create("to-kill")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := env.do(t, http.MethodDelete, "/api/sessions/"+s.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if _, ok := env.sessions.Get(s.ID); ok {
		t.Fatal("session still registered after delete")
	}
}

func TestKillSessionNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodDelete, "/api/sessions/nonexistent", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStaticPages(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/favorites", "/characters/hutao"} {
		resp := env.do(t, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Fatalf("GET %s: expected html, got %q", path, ct)
		}
	}

	if resp := env.do(t, http.MethodGet, "/css/site.css", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /css/site.css: expected 200, got %d", resp.StatusCode)
	}
}
