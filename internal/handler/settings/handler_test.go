package settings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	settingsmodel "github.com/wanderinn/roleplay-backend/internal/model/settings"
	"github.com/wanderinn/roleplay-backend/internal/service/profile"
	"github.com/wanderinn/roleplay-backend/internal/store"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("store.Open err: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	profiles, err := profile.NewService(st, zerolog.Nop())
	if err != nil {
		t.Fatalf("profile.NewService err: %v", err)
	}

	r := chi.NewRouter()
	New(profiles).RegisterRoutes(r)
	return r
}

func TestGetSettingsReturnsDefaults(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got settingsmodel.AppSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if got != settingsmodel.Default() {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestUpdateSettingsSanitizesUnknownKeys(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/settings",
		strings.NewReader(`{"accentColor":"neon","fontSize":"lg","chatBackground":"inkwell"}`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got settingsmodel.AppSettings
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if got.AccentColor != settingsmodel.AccentIndigo {
		t.Fatalf("unknown accent not sanitized: %q", got.AccentColor)
	}
	if got.FontSize != settingsmodel.FontLarge || got.ChatBackground != settingsmodel.BackgroundInkwell {
		t.Fatalf("valid keys altered: %+v", got)
	}
}

func TestUpdateSettingsRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{`))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
