package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

// The preview window and the tray both need the main OS thread.
func init() {
	runtime.LockOSThread()
}

type flags struct {
	configPath string
	camera     int
	addr       string
	logLevel   string
	noPreview  bool
	noServer   bool
	noTray     bool
	dumpConfig bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", filepath.Join(config.DataDir(), "config.yaml"), "path to the YAML config file")
	flag.IntVar(&f.camera, "camera", -1, "camera device id (overrides config)")
	flag.StringVar(&f.addr, "addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&f.logLevel, "log-level", "", "log level (overrides config)")
	flag.BoolVar(&f.noPreview, "no-preview", false, "disable the preview window")
	flag.BoolVar(&f.noServer, "no-server", false, "disable the HTTP API")
	flag.BoolVar(&f.noTray, "no-tray", false, "disable the system tray")
	flag.BoolVar(&f.dumpConfig, "dump-config", false, "print the effective config and exit")
	flag.Parse()
	return f
}

func (f flags) apply(cfg *config.Config) {
	if f.camera >= 0 {
		cfg.Camera.DeviceID = f.camera
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.noPreview {
		cfg.Preview.Enabled = false
	}
	if f.noServer {
		cfg.Server.Enabled = false
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	if f.dumpConfig {
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			return 1
		}
		os.Stdout.Write(data)
		return 0
	}

	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	log.Info("Mudra - Hand Gesture Control")

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Error("failed to open store")
		return 1
	}
	defer st.Close()

	pose, gest, closeModels, err := loadClassifiers(cfg, log)
	if err != nil {
		var loadErr *classifier.ModelLoadError
		if errors.As(err, &loadErr) {
			log.WithField("path", loadErr.Path).WithError(loadErr.Err).Error("failed to load model")
		} else {
			log.WithError(err).Error("failed to load models")
		}
		return 1
	}
	defer closeModels()

	detCfg := cfg.Detector
	detCfg.Hand = cfg.Pipeline.Hand
	det, err := detector.NewMediaPipeDetector(detCfg, log)
	if err != nil {
		log.WithError(err).Error("failed to create hand detector")
		return 1
	}

	plugins := plugin.NewManager(cfg.Plugins.Dir)
	if err := plugins.Discover(); err != nil {
		log.WithError(err).WithField("dir", cfg.Plugins.Dir).Warn("plugin discovery failed")
	}
	for _, p := range plugins.List() {
		log.WithFields(logrus.Fields{"plugin": p.Manifest.Name, "actions": p.Manifest.Actions}).Info("plugin loaded")
	}

	var preview app.Previewer
	if cfg.Preview.Enabled {
		preview = capture.NewPreview(cfg.Preview.Title, cfg.Preview.WaitMs)
	}

	session := app.New(app.Options{
		Camera:   capture.NewCamera(cfg.Camera),
		Detector: det,
		Pipeline: app.NewPipeline(app.PipelineConfig{
			Vocabulary:    cfg.Vocabulary,
			Hand:          cfg.Pipeline.Hand,
			HistoryLength: cfg.Pipeline.HistoryLength,
		}, pose, gest, log),
		Dispatcher: app.NewDispatcher(st.Bindings(), plugins, plugin.NewExecutor(cfg.Plugins.TimeoutMs), log),
		Preview:    preview,
		Settings:   st.Settings(),
		Log:        log,
	})
	defer session.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Server.Enabled {
		srv := server.New(server.Config{
			Store:      st,
			Plugins:    plugins,
			Session:    session,
			Vocabulary: cfg.Vocabulary,
			Log:        log,
		})
		go func() {
			if err := srv.Serve(ctx, cfg.Server.Addr); err != nil {
				log.WithError(err).Error("http server failed")
			}
		}()
	}

	// The tray owns the main thread only when there is no preview window.
	if !f.noTray && !cfg.Preview.Enabled {
		return runWithTray(ctx, cancel, session, cfg, log)
	}
	return exitCode(session.Run(ctx), log)
}

func runWithTray(ctx context.Context, cancel context.CancelFunc, session *app.App, cfg *config.Config, log *logrus.Logger) int {
	tr := tray.New(session.IsEnabled())
	tr.OnToggle(session.SetEnabled)
	tr.OnQuit(cancel)
	if cfg.Server.Enabled {
		url := "http://" + cfg.Server.Addr + "/api/bindings"
		tr.OnSettings(func() {
			if err := openBrowser(url); err != nil {
				log.WithError(err).Warn("failed to open browser")
			}
		})
	}

	results, unsubscribe := session.Publisher().Subscribe(16)
	defer unsubscribe()
	go tr.Follow(ctx, results)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
		tr.Quit()
	}()

	tr.Run()
	cancel()
	return exitCode(<-done, log)
}

func exitCode(err error, log logrus.FieldLogger) int {
	if err == nil {
		return 0
	}
	log.WithError(err).Error("session ended")
	return 1
}

// loadClassifiers loads both models and returns a func closing them.
func loadClassifiers(cfg *config.Config, log logrus.FieldLogger) (classifier.Classifier, classifier.Classifier, func(), error) {
	poseModel, err := classifier.LoadModel(classifier.ModelConfig{
		Path:    cfg.Models.PosePath,
		Inputs:  gesture.LandmarkFeatures,
		Outputs: cfg.Models.PoseClasses,
		Threads: cfg.Models.Threads,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	gestureModel, err := classifier.LoadModel(classifier.ModelConfig{
		Path:    cfg.Models.GesturePath,
		Inputs:  2 * cfg.Pipeline.HistoryLength,
		Outputs: cfg.Models.GestureClasses,
		Threads: cfg.Models.Threads,
	})
	if err != nil {
		poseModel.Close()
		return nil, nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"pose":    poseModel.Path(),
		"gesture": gestureModel.Path(),
		"threads": cfg.Models.Threads,
	}).Info("models loaded")

	closeAll := func() {
		poseModel.Close()
		gestureModel.Close()
	}
	return classifier.NewPose(poseModel),
		classifier.NewGesture(gestureModel, cfg.Models.Threshold, cfg.Models.InvalidValue),
		closeAll, nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
