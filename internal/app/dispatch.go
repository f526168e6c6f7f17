package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultDispatchQueue is how many triggered actions may wait for a
// plugin before new ones are dropped.
const DefaultDispatchQueue = 8

// BindingLookup finds the binding for a resolved action label.
type BindingLookup interface {
	GetByAction(actionName string) (*store.Binding, error)
}

// PluginResolver finds a plugin that supports an action.
type PluginResolver interface {
	Resolve(name, action string) (*plugin.Plugin, error)
}

// PluginRunner executes a plugin request.
type PluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

type dispatchJob struct {
	frame  int64
	action int
	label  string
}

// Dispatcher runs the plugin bound to an action when the resolved action
// changes to a non-stop value. Holding a gesture fires it once; it fires
// again only after the action changed in between.
//
// Observe is called from the pipeline goroutine. Plugins run on the
// goroutine started by Run so a slow plugin never delays a frame.
type Dispatcher struct {
	bindings BindingLookup
	plugins  PluginResolver
	runner   PluginRunner
	queue    chan dispatchJob
	last     int
	log      logrus.FieldLogger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(bindings BindingLookup, plugins PluginResolver, runner PluginRunner, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		bindings: bindings,
		plugins:  plugins,
		runner:   runner,
		queue:    make(chan dispatchJob, DefaultDispatchQueue),
		last:     gesture.ActionStop,
		log:      logging.OrDiscard(log).WithField("component", "dispatcher"),
	}
}

// Observe inspects a frame result and queues a dispatch on a rising edge.
// It reports whether a dispatch was queued.
func (d *Dispatcher) Observe(res FrameResult) bool {
	prev := d.last
	d.last = res.Action
	if res.Action == gesture.ActionStop || res.Action == prev {
		return false
	}

	job := dispatchJob{frame: res.Frame, action: res.Action, label: res.Label}
	select {
	case d.queue <- job:
		return true
	default:
		d.log.WithField("action", res.Label).Warn("dispatch queue full, dropping action")
		return false
	}
}

// Run executes queued dispatches until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			log := d.log.WithFields(logrus.Fields{"action": job.label, "frame": job.frame})
			if err := d.dispatch(ctx, job); err != nil {
				log.WithError(err).Warn("action dispatch failed")
			}
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, job dispatchJob) error {
	binding, err := d.bindings.GetByAction(job.label)
	if err != nil {
		return fmt.Errorf("lookup binding: %w", err)
	}
	if binding == nil {
		d.log.WithField("action", job.label).Debug("no binding")
		return nil
	}

	p, err := d.plugins.Resolve(binding.PluginName, binding.PluginAction)
	if err != nil {
		return err
	}

	resp, err := d.runner.Execute(ctx, p, &plugin.Request{
		Action:  binding.PluginAction,
		Trigger: job.label,
		Params:  binding.Config,
	})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("plugin %s: %s", binding.PluginName, resp.Error)
	}

	d.log.WithFields(logrus.Fields{
		"action": job.label,
		"plugin": binding.PluginName,
		"run":    binding.PluginAction,
	}).Info("action dispatched")
	return nil
}
