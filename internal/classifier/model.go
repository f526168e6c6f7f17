package classifier

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// ModelConfig describes one ONNX artifact and the tensor sizes the
// pipeline expects from it. Threads sets the OpenCV worker pool used for
// inference; 0 keeps the current setting.
type ModelConfig struct {
	Path    string
	Inputs  int
	Outputs int
	Threads int
}

// Model is an ONNX model run through the OpenCV DNN module.
type Model struct {
	mu      sync.Mutex
	net     gocv.Net
	path    string
	inputs  int
	outputs int
}

// LoadModel reads the artifact and checks its shape with a zero-input
// forward pass. The thread count is applied before the artifact is read.
// Any failure is a *ModelLoadError.
func LoadModel(cfg ModelConfig) (*Model, error) {
	if cfg.Inputs <= 0 || cfg.Outputs <= 0 {
		return nil, &ModelLoadError{Path: cfg.Path, Err: fmt.Errorf("invalid shape %dx%d", cfg.Inputs, cfg.Outputs)}
	}
	if cfg.Threads < 0 {
		return nil, &ModelLoadError{Path: cfg.Path, Err: fmt.Errorf("invalid thread count %d", cfg.Threads)}
	}
	if cfg.Threads > 0 {
		gocv.SetNumThreads(cfg.Threads)
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, &ModelLoadError{Path: cfg.Path, Err: err}
	}

	net := gocv.ReadNetFromONNX(cfg.Path)
	if net.Empty() {
		return nil, &ModelLoadError{Path: cfg.Path, Err: fmt.Errorf("empty network")}
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	m := &Model{
		net:     net,
		path:    cfg.Path,
		inputs:  cfg.Inputs,
		outputs: cfg.Outputs,
	}

	scores, err := m.Scores(make([]float64, cfg.Inputs))
	if err != nil {
		net.Close()
		return nil, &ModelLoadError{Path: cfg.Path, Err: err}
	}
	if len(scores) != cfg.Outputs {
		net.Close()
		return nil, &ModelLoadError{
			Path: cfg.Path,
			Err:  fmt.Errorf("output size %d, expected %d", len(scores), cfg.Outputs),
		}
	}

	return m, nil
}

// Path returns the artifact the model was loaded from.
func (m *Model) Path() string {
	return m.path
}

// Scores runs one forward pass and returns the output vector.
func (m *Model) Scores(features []float64) ([]float64, error) {
	if len(features) != m.inputs {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInputSize, len(features), m.inputs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	blob := gocv.NewMatWithSize(1, m.inputs, gocv.MatTypeCV32F)
	defer blob.Close()
	for i, f := range features {
		blob.SetFloatAt(0, i, float32(f))
	}

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scores := make([]float64, len(data))
	for i, v := range data {
		scores[i] = float64(v)
	}
	return scores, nil
}

// Close releases the network.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
