package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a plugin run when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a plugin does not answer in time.
var ErrTimeout = errors.New("plugin execution timeout")

var emptyObject = json.RawMessage(`{}`)

// ExitError reports a plugin process that failed without answering.
type ExitError struct {
	Plugin string
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("plugin %s failed: %v", e.Plugin, e.Err)
	}
	return fmt.Sprintf("plugin %s failed: %v: %s", e.Plugin, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Executor runs one plugin process per triggered action.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor that kills plugins after timeoutMs.
// A non-positive value selects DefaultTimeout.
func NewExecutor(timeoutMs int) *Executor {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Timeout returns how long a plugin may run.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute writes req to the plugin's stdin and decodes its answer.
// Actions the manifest does not declare are rejected without starting
// the process. A response with Success false is returned with a nil
// error so the caller can report the plugin's own message.
func (e *Executor) Execute(ctx context.Context, p *Plugin, req *Request) (*Response, error) {
	name := p.Manifest.Name
	if !p.Manifest.Supports(req.Action) {
		return nil, fmt.Errorf("%w: %s/%s", ErrActionNotSupported, name, req.Action)
	}
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request for %s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.WaitDelay = time.Second
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s after %v", ErrTimeout, name, e.timeout)
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case runErr != nil:
		return nil, &ExitError{Plugin: name, Stderr: strings.TrimSpace(stderr.String()), Err: runErr}
	}
	return decodeResponse(name, stdout.Bytes())
}

// encodeRequest sends {} for missing config and params.
func encodeRequest(req *Request) ([]byte, error) {
	r := *req
	if len(r.Config) == 0 {
		r.Config = emptyObject
	}
	if len(r.Params) == 0 {
		r.Params = emptyObject
	}
	return json.Marshal(r)
}

func decodeResponse(name string, out []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("plugin %s: malformed response %q: %w", name, bytes.TrimSpace(out), err)
	}
	if !resp.Success && resp.Error == "" {
		resp.Error = "plugin reported failure without a message"
	}
	return &resp, nil
}
