// Package plugin discovers and runs action plugins. A plugin is an
// executable that reads one JSON Request on stdin and writes one JSON
// Response on stdout.
package plugin

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the plugin declares action.
func (m Manifest) Supports(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Validate checks the fields a binding relies on. The executable must
// stay inside the plugin directory.
func (m Manifest) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if m.Executable == "" {
		errs = append(errs, errors.New("executable is required"))
	} else if !filepath.IsLocal(m.Executable) {
		errs = append(errs, errors.New("executable must be inside the plugin directory"))
	}
	if len(m.Actions) == 0 {
		errs = append(errs, errors.New("at least one action is required"))
	}
	if slices.Contains(m.Actions, "") {
		errs = append(errs, errors.New("action names must not be empty"))
	}
	return errors.Join(errs...)
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action  string          `json:"action"`
	Trigger string          `json:"trigger"` // resolved gesture label, e.g. "goLeft"
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
