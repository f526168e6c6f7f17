// Package config loads the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

// DataDirName is the per-user directory holding the database and logs.
const DataDirName = ".mudra"

// Config is the complete application configuration.
type Config struct {
	Camera     capture.Config     `yaml:"camera"`
	Detector   detector.Config    `yaml:"detector"`
	Models     ModelsConfig       `yaml:"models"`
	Pipeline   PipelineConfig     `yaml:"pipeline"`
	Vocabulary gesture.Vocabulary `yaml:"vocabulary"`
	Server     ServerConfig       `yaml:"server"`
	Store      StoreConfig        `yaml:"store"`
	Plugins    PluginsConfig      `yaml:"plugins"`
	Preview    PreviewConfig      `yaml:"preview"`
	Log        logging.Config     `yaml:"log"`
}

// ModelsConfig locates the two classifiers and sets their parameters.
type ModelsConfig struct {
	PosePath       string  `yaml:"pose_path"`
	GesturePath    string  `yaml:"gesture_path"`
	PoseClasses    int     `yaml:"pose_classes"`
	GestureClasses int     `yaml:"gesture_classes"`
	Threads        int     `yaml:"threads"`
	Threshold      float64 `yaml:"threshold"`
	InvalidValue   int     `yaml:"invalid_value"`
}

// PipelineConfig holds the temporal smoothing parameters.
type PipelineConfig struct {
	HistoryLength int    `yaml:"history_length"`
	Hand          string `yaml:"hand"` // handedness label that is tracked
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StoreConfig locates the bindings database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// PluginsConfig locates plugin executables.
type PluginsConfig struct {
	Dir       string `yaml:"dir"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// PreviewConfig controls the on-screen preview window.
type PreviewConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	WaitMs  int    `yaml:"wait_ms"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	dataDir := DataDir()
	return Config{
		Camera:   capture.DefaultConfig(),
		Detector: detector.DefaultConfig(),
		Models: ModelsConfig{
			PosePath:       "model/pose_classifier.onnx",
			GesturePath:    "model/gesture_classifier.onnx",
			PoseClasses:    3,
			GestureClasses: 5,
			Threads:        1,
			Threshold:      0.8,
			InvalidValue:   0,
		},
		Pipeline: PipelineConfig{
			HistoryLength: gesture.DefaultHistoryLength,
			Hand:          detector.HandRight,
		},
		Vocabulary: gesture.DefaultVocabulary(),
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		Store:   StoreConfig{Path: filepath.Join(dataDir, "mudra.db")},
		Plugins: PluginsConfig{Dir: filepath.Join(dataDir, "plugins"), TimeoutMs: 5000},
		Preview: PreviewConfig{Enabled: true, Title: "Hand Gesture Recognition", WaitMs: 10},
		Log:     logging.DefaultConfig(),
	}
}

// DataDir returns ~/.mudra, or .mudra when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// Load reads path over the defaults and validates the result. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		add("camera: invalid resolution %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Detector.MaxHands < 1 {
		add("detector: max_hands must be at least 1")
	}
	if c.Models.PoseClasses < 1 || c.Models.GestureClasses < 1 {
		add("models: class counts must be positive")
	}
	if c.Models.Threads < 1 {
		add("models: threads must be at least 1")
	}
	if c.Models.Threshold < 0 || c.Models.Threshold > 1 {
		add("models: threshold %v outside [0, 1]", c.Models.Threshold)
	}
	if c.Models.InvalidValue < 0 || c.Models.InvalidValue >= len(c.Vocabulary.Labels) {
		add("models: invalid_value %d is not an action id", c.Models.InvalidValue)
	}
	if c.Models.GestureClasses > len(c.Vocabulary.Labels) {
		add("models: %d gesture classes but only %d labels", c.Models.GestureClasses, len(c.Vocabulary.Labels))
	}
	if c.Pipeline.HistoryLength < 2 {
		add("pipeline: history_length must be at least 2")
	}
	if c.Pipeline.Hand != detector.HandRight && c.Pipeline.Hand != detector.HandLeft {
		add("pipeline: hand must be %q or %q", detector.HandRight, detector.HandLeft)
	}
	if err := c.Vocabulary.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		add("server: addr is required when enabled")
	}
	if c.Plugins.TimeoutMs <= 0 {
		add("plugins: timeout_ms must be positive")
	}

	return errors.Join(errs...)
}
