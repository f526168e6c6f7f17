package detector

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/logging"
)

// Hand tracking runs in a Python MediaPipe service. Every request is one
// header line followed by the JPEG-encoded frame:
//
//	{"width":960,"height":540,"hand":"Right","size":48213}\n<48213 bytes>
//
// and the service answers with one line:
//
//	{"hands":[{"handedness":"Right","score":0.98,"points":[{"x":0.41,"y":0.62,"z":-0.01}, ...]}]}
//
// Points are normalized to the frame. ToPixels maps them back with the
// width and height the header carried. Hands whose label differs from
// the header's hand are dropped on both sides of the pipe.

const (
	serviceScript = "mediapipe_service.py"
	idleShutdown  = 30 * time.Second
)

var (
	// ErrScriptNotFound is returned when the service script cannot be located.
	ErrScriptNotFound = errors.New("mediapipe service script not found")
	// ErrServiceReported wraps an error message sent by the service.
	ErrServiceReported = errors.New("mediapipe service error")
	// ErrMalformedReply is returned for replies that do not describe whole hands.
	ErrMalformedReply = errors.New("malformed mediapipe reply")
	// ErrEmptyFrame is returned when Detect is given no image.
	ErrEmptyFrame = errors.New("empty frame")
)

type frameHeader struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Hand   string `json:"hand,omitempty"`
	Size   int    `json:"size"`
}

type serviceReply struct {
	Hands []serviceHand `json:"hands"`
	Error string        `json:"error,omitempty"`
}

type serviceHand struct {
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
	Points     []Point3D `json:"points"`
}

// writeFrame sends one request. h.Size is set from jpeg.
func writeFrame(w io.Writer, h frameHeader, jpeg []byte) error {
	h.Size = len(jpeg)
	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readReply decodes one answer, keeping only hands labeled hand. An
// empty hand keeps every hand.
func readReply(r *bufio.Reader, hand string) ([]HandLandmarks, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	var reply serviceReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServiceReported, reply.Error)
	}

	hands := make([]HandLandmarks, 0, len(reply.Hands))
	for _, h := range reply.Hands {
		if hand != "" && h.Handedness != hand {
			continue
		}
		if len(h.Points) != NumLandmarks {
			return nil, fmt.Errorf("%w: %s hand has %d landmarks", ErrMalformedReply, h.Handedness, len(h.Points))
		}
		lm := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
		copy(lm.Points[:], h.Points)
		hands = append(hands, lm)
	}
	return hands, nil
}

// serviceProcess is one running instance of the Python service.
type serviceProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startService(python, script string, cfg Config) (*serviceProcess, error) {
	cmd := exec.Command(python, script,
		"--max-hands", strconv.Itoa(cfg.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConf, 'f', -1, 64),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}
	return &serviceProcess{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

func (p *serviceProcess) roundTrip(h frameHeader, jpeg []byte) ([]HandLandmarks, error) {
	if err := writeFrame(p.stdin, h, jpeg); err != nil {
		return nil, err
	}
	return readReply(p.stdout, h.Hand)
}

// stop closes stdin, which ends the service loop, and waits for exit.
func (p *serviceProcess) stop() error {
	p.stdin.Close()
	return p.cmd.Wait()
}

// MediaPipeDetector implements Detector on top of the Python service.
// The service starts on the first frame and stops after idleShutdown
// without frames.
type MediaPipeDetector struct {
	config Config
	python string
	script string
	log    logrus.FieldLogger

	mu   sync.Mutex
	proc *serviceProcess
	idle *time.Timer
}

// NewMediaPipeDetector locates the interpreter and script. Nothing is
// started until the first call to Detect.
func NewMediaPipeDetector(config Config, log logrus.FieldLogger) (*MediaPipeDetector, error) {
	script := config.ScriptPath
	if script == "" {
		script = locate(searchPaths(filepath.Join("scripts", serviceScript)))
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("mediapipe script: %w", err)
	}

	python := config.PythonPath
	if python == "" {
		python = locate(searchPaths(filepath.Join("venv", "bin", "python")))
	}
	if python == "" {
		python = "python3"
	}

	return &MediaPipeDetector{
		config: config,
		python: python,
		script: script,
		log:    logging.OrDiscard(log).WithField("component", "mediapipe"),
	}, nil
}

// Detect sends frame to the service and returns the tracked hands.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, ErrEmptyFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.proc == nil {
		proc, err := startService(d.python, d.script, d.config)
		if err != nil {
			return nil, err
		}
		d.proc = proc
		d.log.WithFields(logrus.Fields{"python": d.python, "hand": d.config.Hand}).Info("mediapipe service started")
	}

	hands, err := d.proc.roundTrip(frameHeader{
		Width:  frame.Cols(),
		Height: frame.Rows(),
		Hand:   d.config.Hand,
	}, buf.GetBytes())
	if err != nil && !errors.Is(err, ErrServiceReported) {
		// The stream is out of step; the next frame starts a fresh service.
		if stopErr := d.stopLocked(); stopErr != nil {
			d.log.WithError(stopErr).Debug("mediapipe service exited")
		}
		return nil, err
	}
	d.armIdle()
	return hands, err
}

// Close stops the service if it is running.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

// Running reports whether the service process is up.
func (d *MediaPipeDetector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.proc != nil
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.proc == nil {
		return nil
	}
	err := d.proc.stop()
	d.proc = nil
	return err
}

func (d *MediaPipeDetector) armIdle() {
	if d.idle != nil {
		d.idle.Reset(idleShutdown)
		return
	}
	d.idle = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.proc == nil {
			return
		}
		d.log.Info("mediapipe service idle, stopping")
		if err := d.stopLocked(); err != nil {
			d.log.WithError(err).Warn("idle shutdown")
		}
	})
}

// searchPaths lists where rel may live: the working directory and its
// parents, next to the binary, then the per-user data directory.
func searchPaths(rel string) []string {
	paths := []string{rel, filepath.Join("..", rel), filepath.Join("..", "..", rel)}
	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(exe), rel))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".mudra", rel))
	}
	return paths
}

// locate returns the absolute form of the first existing path.
func locate(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}
