package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

var testLabels = []string{"stop", "goLeft", "goRight", "modeDiaPo", "modeNormal"}

type fakeCatalog map[string][]string

func (c fakeCatalog) Resolve(name, action string) (*plugin.Plugin, error) {
	actions, ok := c[name]
	if !ok {
		return nil, plugin.ErrPluginNotFound
	}
	p := &plugin.Plugin{Manifest: plugin.Manifest{Name: name, Actions: actions}}
	if !p.Manifest.Supports(action) {
		return nil, plugin.ErrActionNotSupported
	}
	return p, nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/bindings", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBindingHandler_Create(t *testing.T) {
	catalog := fakeCatalog{"keyboard": {"next-slide", "previous-slide"}}

	tests := []struct {
		name    string
		body    string
		want    int
		wantErr string
	}{
		{"valid", `{"action_name":"goRight","plugin_name":"keyboard","plugin_action":"next-slide"}`, http.StatusCreated, ""},
		{"invalid json", `{`, http.StatusBadRequest, "Invalid JSON"},
		{"missing action", `{"plugin_name":"keyboard","plugin_action":"next-slide"}`, http.StatusBadRequest, "action_name is required"},
		{"missing plugin", `{"action_name":"goRight","plugin_action":"next-slide"}`, http.StatusBadRequest, "plugin_name is required"},
		{"missing plugin action", `{"action_name":"goRight","plugin_name":"keyboard"}`, http.StatusBadRequest, "plugin_action is required"},
		{"stop cannot be bound", `{"action_name":"stop","plugin_name":"keyboard","plugin_action":"next-slide"}`, http.StatusBadRequest, "Unknown action: stop"},
		{"unknown label", `{"action_name":"wave","plugin_name":"keyboard","plugin_action":"next-slide"}`, http.StatusBadRequest, "Unknown action: wave"},
		{"unknown plugin", `{"action_name":"goRight","plugin_name":"mouse","plugin_action":"click"}`, http.StatusBadRequest, "Plugin not found: mouse"},
		{"unsupported action", `{"action_name":"goRight","plugin_name":"keyboard","plugin_action":"volume-up"}`, http.StatusBadRequest, "Plugin keyboard does not support volume-up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBindingHandler(setupTestStore(t), testLabels, catalog)
			rec := post(t, h, tt.body)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantErr != "" {
				var resp errorResponse
				json.NewDecoder(rec.Body).Decode(&resp)
				if resp.Error != tt.wantErr {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantErr)
				}
			}
		})
	}
}

func TestBindingHandler_CreateDefaultsConfig(t *testing.T) {
	h := NewBindingHandler(setupTestStore(t), testLabels, nil)
	rec := post(t, h, `{"action_name":"goLeft","plugin_name":"anything","plugin_action":"x"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp bindingResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if string(resp.Config) != "{}" {
		t.Errorf("config = %s, want {}", resp.Config)
	}
}

func TestBindingHandler_Update(t *testing.T) {
	s := setupTestStore(t)
	h := NewBindingHandler(s, testLabels, nil)

	for _, b := range []*store.Binding{
		{ID: "a", ActionName: "goLeft", PluginName: "keyboard", PluginAction: "previous-slide", Enabled: true},
		{ID: "b", ActionName: "goRight", PluginName: "keyboard", PluginAction: "next-slide", Enabled: true},
	} {
		if err := s.Bindings().Create(b); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	put := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/bindings/"+id, bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := put("a", `{"plugin_action":"start-slideshow","config":{"repeat":2}}`); rec.Code != http.StatusOK {
		t.Errorf("update status = %d", rec.Code)
	}
	got, _ := s.Bindings().GetByID("a")
	if got.PluginAction != "start-slideshow" || string(got.Config) != `{"repeat":2}` || got.ActionName != "goLeft" {
		t.Errorf("after update = %+v", got)
	}

	if rec := put("a", `{"action_name":"goRight"}`); rec.Code != http.StatusConflict {
		t.Errorf("rebinding to a taken action: status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if rec := put("a", `{"action_name":"jump"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := put("missing", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("missing binding: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestBindingHandler_ListEmpty(t *testing.T) {
	h := NewBindingHandler(setupTestStore(t), testLabels, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/bindings", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"bindings\":[]}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestBindingHandler_MethodNotAllowed(t *testing.T) {
	h := NewBindingHandler(setupTestStore(t), testLabels, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodDelete, "/api/bindings"},
		{http.MethodPost, "/api/bindings/abc"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d", tc.method, tc.path, rec.Code)
		}
	}
}
