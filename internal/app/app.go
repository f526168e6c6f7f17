// Package app runs the gesture control session: it reads frames, detects
// hands, resolves one action per frame and hands results to observers.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/store"
)

// ErrCaptureFailed ends a session when the camera cannot deliver a frame.
var ErrCaptureFailed = errors.New("frame capture failed")

// Previewer shows a frame with a caption and reports whether the user
// asked to quit.
type Previewer interface {
	Show(frame *gocv.Mat, caption string) bool
	Close() error
}

// Options wires the collaborators of an App. Camera, Detector and
// Pipeline are required.
type Options struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Pipeline   *Pipeline
	Dispatcher *Dispatcher
	Preview    Previewer
	Publisher  *Publisher
	Settings   *store.SettingsRepository
	Log        logrus.FieldLogger
}

// App is the main application that drives the frame loop.
type App struct {
	camera     capture.Camera
	detector   detector.Detector
	pipeline   *Pipeline
	dispatcher *Dispatcher
	preview    Previewer
	publisher  *Publisher
	settings   *store.SettingsRepository
	log        logrus.FieldLogger

	enabled  bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new App. Detection starts enabled unless the settings
// store says otherwise.
func New(opts Options) *App {
	a := &App{
		camera:     opts.Camera,
		detector:   opts.Detector,
		pipeline:   opts.Pipeline,
		dispatcher: opts.Dispatcher,
		preview:    opts.Preview,
		publisher:  opts.Publisher,
		settings:   opts.Settings,
		log:        logging.OrDiscard(opts.Log).WithField("component", "app"),
		enabled:    true,
		stopCh:     make(chan struct{}),
	}
	if a.publisher == nil {
		a.publisher = NewPublisher()
	}
	if a.settings != nil {
		a.enabled = a.settings.GetBool(store.SettingEnabled, true)
	}
	return a
}

// SetEnabled enables or disables gesture detection. While disabled frames
// are still read and shown but not processed.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()

	a.log.WithField("enabled", enabled).Info("detection toggled")
	if a.settings != nil {
		if err := a.settings.SetBool(store.SettingEnabled, enabled); err != nil {
			a.log.WithError(err).Warn("failed to persist detection setting")
		}
	}
}

// IsEnabled returns whether gesture detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Publisher returns the result publisher.
func (a *App) Publisher() *Publisher {
	return a.publisher
}

// Pipeline returns the frame pipeline.
func (a *App) Pipeline() *Pipeline {
	return a.pipeline
}

// Stop asks Run to return after the current frame.
func (a *App) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}

// Run opens the camera and processes frames until ctx is done, Stop is
// called or the preview window reports Escape. Those end the session
// with a nil error. A camera failure ends it with ErrCaptureFailed.
func (a *App) Run(ctx context.Context) error {
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	defer func() {
		if err := a.camera.Close(); err != nil {
			a.log.WithError(err).Warn("error closing camera")
		}
	}()

	if a.dispatcher != nil {
		dctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go a.dispatcher.Run(dctx)
	}

	a.log.Info("session started")
	defer a.log.Info("session ended")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.stopCh:
			return nil
		default:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		}

		quit := a.step(frame)
		frame.Close()
		if quit {
			a.log.Info("escape pressed")
			return nil
		}
	}
}

// step processes one frame and reports whether the user asked to quit.
func (a *App) step(frame *gocv.Mat) bool {
	caption := "paused"

	if a.IsEnabled() {
		hands, err := a.detector.Detect(frame)
		if err != nil {
			a.log.WithError(err).Warn("hand detection failed")
			hands = nil
		}

		res := a.pipeline.ProcessFrame(hands, frame.Cols(), frame.Rows())
		a.publisher.Publish(res)
		if a.dispatcher != nil {
			a.dispatcher.Observe(res)
		}
		caption = res.Label
	}

	return a.preview != nil && a.preview.Show(frame, caption)
}

// Close releases the detector and the preview window.
func (a *App) Close() error {
	var errs []error
	if a.detector != nil {
		errs = append(errs, a.detector.Close())
	}
	if a.preview != nil {
		errs = append(errs, a.preview.Close())
	}
	return errors.Join(errs...)
}
