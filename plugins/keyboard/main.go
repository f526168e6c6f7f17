// Package main provides a keyboard plugin for presentation control.
// It sends key presses via AppleScript on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Trigger string          `json:"trigger"`
	Config  json.RawMessage `json:"config"`
	Params  json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeystrokeParams defines parameters for keystroke actions.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// presentationKeys maps slide actions to the key sent for them. The
// slideshow shortcuts follow PowerPoint and LibreOffice Impress.
var presentationKeys = map[string]KeystrokeParams{
	"next-slide":      {Key: "right"},
	"previous-slide":  {Key: "left"},
	"start-slideshow": {Key: "f5"},
	"stop-slideshow":  {Key: "escape"},
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// appleKeyCodes holds virtual key codes for keys that have no character.
var appleKeyCodes = map[string]int{
	"left":   123,
	"right":  124,
	"down":   125,
	"up":     126,
	"escape": 53,
	"return": 36,
	"space":  49,
	"f5":     96,
}

// xdotoolKeys maps key names to X keysyms.
var xdotoolKeys = map[string]string{
	"left":   "Left",
	"right":  "Right",
	"down":   "Down",
	"up":     "Up",
	"escape": "Escape",
	"return": "Return",
	"space":  "space",
	"f5":     "F5",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	params, err := resolveParams(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if err := sendKey(params); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// resolveParams picks the key for an action. Params may override the
// default key of a slide action.
func resolveParams(req Request) (KeystrokeParams, error) {
	var p KeystrokeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return p, fmt.Errorf("failed to parse params: %w", err)
		}
	}

	switch req.Action {
	case "keystroke", "shortcut":
		if p.Key == "" {
			return p, fmt.Errorf("key is required")
		}
		return p, nil
	default:
		def, ok := presentationKeys[req.Action]
		if !ok {
			return p, fmt.Errorf("unknown action: %s", req.Action)
		}
		if p.Key == "" {
			p = def
		}
		return p, nil
	}
}

func sendKey(p KeystrokeParams) error {
	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", buildKeystrokeScript(p.Key, p.Modifiers))
	case "linux":
		return run("xdotool", "key", buildXdotoolKey(p.Key, p.Modifiers))
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	press := fmt.Sprintf(`keystroke "%s"`, key)
	if code, ok := appleKeyCodes[strings.ToLower(key)]; ok {
		press = fmt.Sprintf("key code %d", code)
	}

	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to %s`, press)
	}
	return fmt.Sprintf(`tell application "System Events" to %s using {%s}`, press, strings.Join(appleModifiers, ", "))
}

// buildXdotoolKey generates an xdotool key chord such as "ctrl+shift+F5".
func buildXdotoolKey(key string, modifiers []string) string {
	if sym, ok := xdotoolKeys[strings.ToLower(key)]; ok {
		key = sym
	}

	parts := make([]string, 0, len(modifiers)+1)
	for _, mod := range modifiers {
		switch strings.ToLower(mod) {
		case "command", "cmd":
			parts = append(parts, "super")
		case "option", "alt":
			parts = append(parts, "alt")
		case "control", "ctrl":
			parts = append(parts, "ctrl")
		case "shift":
			parts = append(parts, "shift")
		}
	}
	return strings.Join(append(parts, key), "+")
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
