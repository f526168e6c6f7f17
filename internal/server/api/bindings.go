// Package api provides HTTP API handlers for the Mudra gesture control system.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// PluginCatalog checks that a plugin exists and declares an action.
type PluginCatalog interface {
	Resolve(name, action string) (*plugin.Plugin, error)
}

// BindingHandler handles HTTP requests for binding resources.
type BindingHandler struct {
	store   *store.Store
	labels  []string
	plugins PluginCatalog
}

// NewBindingHandler creates a BindingHandler. Only labels in labels other
// than the stop label (index 0) may be bound. A nil catalog skips plugin
// validation.
func NewBindingHandler(s *store.Store, labels []string, plugins PluginCatalog) *BindingHandler {
	return &BindingHandler{store: s, labels: labels, plugins: plugins}
}

// ServeHTTP routes /api/bindings and /api/bindings/{id}.
func (h *BindingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/bindings")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createBindingRequest struct {
	ActionName   string          `json:"action_name"`
	PluginName   string          `json:"plugin_name"`
	PluginAction string          `json:"plugin_action"`
	Config       json.RawMessage `json:"config"`
}

type updateBindingRequest struct {
	ActionName   string          `json:"action_name"`
	PluginName   string          `json:"plugin_name"`
	PluginAction string          `json:"plugin_action"`
	Config       json.RawMessage `json:"config"`
	Enabled      *bool           `json:"enabled"`
}

type bindingResponse struct {
	ID           string          `json:"id"`
	ActionName   string          `json:"action_name"`
	PluginName   string          `json:"plugin_name"`
	PluginAction string          `json:"plugin_action"`
	Config       json.RawMessage `json:"config"`
	Enabled      bool            `json:"enabled"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

type listBindingsResponse struct {
	Bindings []bindingResponse `json:"bindings"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toBindingResponse(b *store.Binding) bindingResponse {
	config := b.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return bindingResponse{
		ID:           b.ID,
		ActionName:   b.ActionName,
		PluginName:   b.PluginName,
		PluginAction: b.PluginAction,
		Config:       config,
		Enabled:      b.Enabled,
		CreatedAt:    b.CreatedAt.Format(timeLayout),
		UpdatedAt:    b.UpdatedAt.Format(timeLayout),
	}
}

// validate checks the label and plugin of a binding and returns a client
// facing message, or "" when the binding is acceptable.
func (h *BindingHandler) validate(b *store.Binding) string {
	if i := slices.Index(h.labels, b.ActionName); i <= 0 {
		return "Unknown action: " + b.ActionName
	}
	if h.plugins == nil {
		return ""
	}
	if _, err := h.plugins.Resolve(b.PluginName, b.PluginAction); err != nil {
		switch {
		case errors.Is(err, plugin.ErrPluginNotFound):
			return "Plugin not found: " + b.PluginName
		case errors.Is(err, plugin.ErrActionNotSupported):
			return "Plugin " + b.PluginName + " does not support " + b.PluginAction
		}
		return "Invalid plugin"
	}
	return ""
}

// list handles GET /api/bindings.
func (h *BindingHandler) list(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.Bindings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bindings")
		return
	}

	response := listBindingsResponse{
		Bindings: make([]bindingResponse, 0, len(bindings)),
	}
	for _, b := range bindings {
		response.Bindings = append(response.Bindings, toBindingResponse(b))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/bindings/{id}.
func (h *BindingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// create handles POST /api/bindings.
func (h *BindingHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.PluginAction == "" {
		writeError(w, http.StatusBadRequest, "plugin_action is required")
		return
	}

	b := &store.Binding{
		ID:           uuid.New().String(),
		ActionName:   req.ActionName,
		PluginName:   req.PluginName,
		PluginAction: req.PluginAction,
		Config:       req.Config,
		Enabled:      true,
	}
	if msg := h.validate(b); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Bindings().Create(b); err != nil {
		if errors.Is(err, store.ErrDuplicateAction) {
			writeError(w, http.StatusConflict, "Action already bound")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create binding")
		return
	}

	writeJSON(w, http.StatusCreated, toBindingResponse(b))
}

// update handles PUT /api/bindings/{id}. Omitted fields keep their value.
func (h *BindingHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	b, err := h.store.Bindings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get binding")
		return
	}

	var req updateBindingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.ActionName != "" {
		b.ActionName = req.ActionName
	}
	if req.PluginName != "" {
		b.PluginName = req.PluginName
	}
	if req.PluginAction != "" {
		b.PluginAction = req.PluginAction
	}
	if req.Config != nil {
		b.Config = req.Config
	}
	if req.Enabled != nil {
		b.Enabled = *req.Enabled
	}
	if msg := h.validate(b); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Bindings().Update(b); err != nil {
		if errors.Is(err, store.ErrDuplicateAction) {
			writeError(w, http.StatusConflict, "Action already bound")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update binding")
		return
	}

	writeJSON(w, http.StatusOK, toBindingResponse(b))
}

// delete handles DELETE /api/bindings/{id}.
func (h *BindingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Bindings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Binding not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete binding")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
