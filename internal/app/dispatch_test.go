package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

type fakeResolver struct {
	err error
}

func (f *fakeResolver) Resolve(name, action string) (*plugin.Plugin, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &plugin.Plugin{Manifest: plugin.Manifest{Name: name, Actions: []string{action}}}, nil
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []plugin.Request
	resp     *plugin.Response
	err      error
	done     chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{resp: &plugin.Response{Success: true}, done: make(chan struct{}, 16)}
}

func (f *fakeRunner) Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, *req)
	f.mu.Unlock()
	f.done <- struct{}{}
	return f.resp, f.err
}

func (f *fakeRunner) Requests() []plugin.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]plugin.Request(nil), f.requests...)
}

func (f *fakeRunner) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for dispatch %d of %d", i+1, n)
		}
	}
}

func newBindingStore(t *testing.T, bindings ...*store.Binding) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	for _, b := range bindings {
		if err := s.Bindings().Create(b); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	return s
}

func result(action int, label string) FrameResult {
	return FrameResult{Action: action, Label: label}
}

func TestDispatcher_ObserveIsEdgeTriggered(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	sequence := []struct {
		res  FrameResult
		want bool
	}{
		{result(0, "stop"), false},
		{result(1, "goLeft"), true},
		{result(1, "goLeft"), false},
		{result(1, "goLeft"), false},
		{result(2, "goRight"), true},
		{result(0, "stop"), false},
		{result(2, "goRight"), true},
		{result(0, "stop"), false},
		{result(0, "stop"), false},
	}

	for i, step := range sequence {
		if got := d.Observe(step.res); got != step.want {
			t.Errorf("step %d (%s): Observe() = %v, want %v", i, step.res.Label, got, step.want)
		}
	}
}

func TestDispatcher_QueueFull(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)

	queued := 0
	for i := 0; i < 2*DefaultDispatchQueue; i++ {
		// Alternate so every step is an edge.
		if d.Observe(result(1+i%2, "x")) {
			queued++
		}
	}
	if queued != DefaultDispatchQueue {
		t.Errorf("queued %d, want %d", queued, DefaultDispatchQueue)
	}
}

func TestDispatcher_RunsBoundPlugin(t *testing.T) {
	s := newBindingStore(t, &store.Binding{
		ID:           "b1",
		ActionName:   "goRight",
		PluginName:   "keyboard",
		PluginAction: "next-slide",
		Config:       json.RawMessage(`{"key":"pagedown"}`),
		Enabled:      true,
	})
	runner := newFakeRunner()
	d := NewDispatcher(s.Bindings(), &fakeResolver{}, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// Unbound action first, then the bound one.
	d.Observe(result(1, "goLeft"))
	d.Observe(result(2, "goRight"))
	runner.wait(t, 1)

	reqs := runner.Requests()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	if reqs[0].Action != "next-slide" || reqs[0].Trigger != "goRight" {
		t.Errorf("request = %+v", reqs[0])
	}
	if string(reqs[0].Params) != `{"key":"pagedown"}` {
		t.Errorf("Params = %s", reqs[0].Params)
	}
}

func TestDispatcher_Failures(t *testing.T) {
	binding := &store.Binding{ID: "b1", ActionName: "goLeft", PluginName: "keyboard", PluginAction: "previous-slide", Enabled: true}

	t.Run("plugin missing", func(t *testing.T) {
		s := newBindingStore(t, binding)
		runner := newFakeRunner()
		d := NewDispatcher(s.Bindings(), &fakeResolver{err: plugin.ErrPluginNotFound}, runner, nil)

		err := d.dispatch(context.Background(), dispatchJob{action: 1, label: "goLeft"})
		if !errors.Is(err, plugin.ErrPluginNotFound) {
			t.Errorf("dispatch() error = %v, want ErrPluginNotFound", err)
		}
		if len(runner.Requests()) != 0 {
			t.Error("runner should not be called")
		}
	})

	t.Run("plugin reports failure", func(t *testing.T) {
		s := newBindingStore(t, binding)
		runner := newFakeRunner()
		runner.resp = &plugin.Response{Success: false, Error: "no window"}
		d := NewDispatcher(s.Bindings(), &fakeResolver{}, runner, nil)

		err := d.dispatch(context.Background(), dispatchJob{action: 1, label: "goLeft"})
		if err == nil || err.Error() != "plugin keyboard: no window" {
			t.Errorf("dispatch() error = %v", err)
		}
	})

	t.Run("runner error", func(t *testing.T) {
		s := newBindingStore(t, binding)
		runner := newFakeRunner()
		runner.err = plugin.ErrTimeout
		d := NewDispatcher(s.Bindings(), &fakeResolver{}, runner, nil)

		if err := d.dispatch(context.Background(), dispatchJob{action: 1, label: "goLeft"}); !errors.Is(err, plugin.ErrTimeout) {
			t.Errorf("dispatch() error = %v, want ErrTimeout", err)
		}
	})

	t.Run("unbound action is not an error", func(t *testing.T) {
		s := newBindingStore(t)
		d := NewDispatcher(s.Bindings(), &fakeResolver{}, newFakeRunner(), nil)

		if err := d.dispatch(context.Background(), dispatchJob{action: 3, label: "modeDiaPo"}); err != nil {
			t.Errorf("dispatch() error = %v", err)
		}
	})
}
