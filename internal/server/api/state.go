package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// StateSource exposes the running session.
type StateSource interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	Publisher() *app.Publisher
}

// StateHandler serves /api/state: GET returns the detection flag and the
// latest frame result, PUT toggles detection.
type StateHandler struct {
	source StateSource
}

// NewStateHandler creates a StateHandler for source.
func NewStateHandler(source StateSource) *StateHandler {
	return &StateHandler{source: source}
}

type stateResponse struct {
	Enabled bool             `json:"enabled"`
	Latest  *app.FrameResult `json:"latest"`
}

type updateStateRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req updateStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		h.source.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := stateResponse{Enabled: h.source.IsEnabled()}
	if latest, ok := h.source.Publisher().Latest(); ok {
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

// LabelsHandler serves the action label table and the pose vocabulary.
type LabelsHandler struct {
	vocab gesture.Vocabulary
}

// NewLabelsHandler creates a LabelsHandler for vocab.
func NewLabelsHandler(vocab gesture.Vocabulary) *LabelsHandler {
	return &LabelsHandler{vocab: vocab}
}

type poseResponse struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Allowed []string `json:"allowed"`
}

type labelsResponse struct {
	Labels []string       `json:"labels"`
	Poses  []poseResponse `json:"poses"`
}

func (h *LabelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := labelsResponse{Labels: h.vocab.Labels, Poses: []poseResponse{}}
	for _, p := range h.vocab.Poses {
		pr := poseResponse{ID: p.ID, Name: p.Name, Allowed: make([]string, 0, len(p.Actions))}
		for _, a := range p.Actions {
			pr.Allowed = append(pr.Allowed, h.vocab.Label(a))
		}
		resp.Poses = append(resp.Poses, pr)
	}
	writeJSON(w, http.StatusOK, resp)
}
