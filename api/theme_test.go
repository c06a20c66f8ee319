package api_test

import (
	"net/http"
	"testing"

	"wiki-companion/theme"
)

type themeBody struct {
	Theme  theme.Preference `json:"theme"`
	Source theme.Source     `json:"source"`
}

func TestGetThemeUsesClientHint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/theme", "", "Sec-CH-Prefers-Color-Scheme", `"dark"`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Accept-CH"); got != "Sec-CH-Prefers-Color-Scheme" {
		t.Fatalf("expected Accept-CH header, got %q", got)
	}
	var body themeBody
	decode(t, resp, &body)
	if body.Theme != theme.Dark || body.Source != theme.SourceHint {
		t.Fatalf("unexpected theme %+v", body)
	}

	// Resolution happens once; a later hint does not override it.
	decode(t, env.do(t, http.MethodGet, "/api/theme", "", "Sec-CH-Prefers-Color-Scheme", "light"), &body)
	if body.Theme != theme.Dark {
		t.Fatalf("expected dark to stick, got %q", body.Theme)
	}
}

func TestGetThemeDefaultsToLight(t *testing.T) {
	env := newTestEnv(t)

	var body themeBody
	decode(t, env.do(t, http.MethodGet, "/api/theme", ""), &body)
	if body.Theme != theme.Light || body.Source != theme.SourceDefault {
		t.Fatalf("unexpected theme %+v", body)
	}
}

func TestPutAndToggleTheme(t *testing.T) {
	env := newTestEnv(t)

	var body themeBody
	resp := env.do(t, http.MethodPut, "/api/theme", `{"theme":"dark"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put: expected 200, got %d", resp.StatusCode)
	}
	decode(t, resp, &body)
	if body.Theme != theme.Dark || body.Source != theme.SourceUser {
		t.Fatalf("unexpected theme %+v", body)
	}

	decode(t, env.do(t, http.MethodPost, "/api/theme/toggle", ""), &body)
	if body.Theme != theme.Light {
		t.Fatalf("toggle: expected light, got %q", body.Theme)
	}
	if env.theme.Current() != theme.Light {
		t.Fatalf("manager disagrees: %q", env.theme.Current())
	}
}

func TestPutThemeRejectsUnknownValue(t *testing.T) {
	env := newTestEnv(t)

	if resp := env.do(t, http.MethodPut, "/api/theme", `{"theme":"sepia"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPut, "/api/theme", `nope`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
