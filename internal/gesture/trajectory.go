package gesture

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// DefaultHistoryLength is the capacity of the trajectory and vote windows.
const DefaultHistoryLength = 16

// ErrWindowNotFull is returned when a trajectory is normalized before the
// window holds its full capacity of points.
var ErrWindowNotFull = errors.New("gesture: trajectory window not full")

// Sentinel is pushed into the trajectory when a frame has no trustworthy
// tracked point.
var Sentinel = detector.Keypoint{}

// TrajectoryWindow keeps the tracked reference point of the most recent
// frames. It is never cleared: old points only age out, so stale points
// keep influencing the features for up to Cap frames after the hand is lost.
type TrajectoryWindow struct {
	points *Ring[detector.Keypoint]
}

// NewTrajectoryWindow creates an empty window of the given capacity.
func NewTrajectoryWindow(capacity int) *TrajectoryWindow {
	return &TrajectoryWindow{points: NewRing[detector.Keypoint](capacity)}
}

// Push records the tracked point for one frame.
func (w *TrajectoryWindow) Push(p detector.Keypoint) {
	w.points.Push(p)
}

// Len returns the number of recorded frames, at most Cap.
func (w *TrajectoryWindow) Len() int { return w.points.Len() }

// Cap returns the window capacity.
func (w *TrajectoryWindow) Cap() int { return w.points.Cap() }

// Full reports whether the window can be normalized.
func (w *TrajectoryWindow) Full() bool { return w.points.Full() }

// Points returns a copy of the recorded points, oldest first.
func (w *TrajectoryWindow) Points() []detector.Keypoint {
	return w.points.Values()
}

// Features normalizes the window for a width x height frame.
// It fails with ErrWindowNotFull until the window holds Cap points.
func (w *TrajectoryWindow) Features(width, height int) ([]float64, error) {
	if !w.Full() {
		return nil, fmt.Errorf("%w: %d of %d points", ErrWindowNotFull, w.Len(), w.Cap())
	}
	return NormalizeTrajectory(w.points.Values(), width, height)
}

// NormalizeTrajectory makes every point relative to the first (oldest)
// one and divides x by the frame width and y by the frame height.
// The result is flattened as (x0, y0, x1, y1, ...). Values are not
// clamped and may leave [-1, 1] when the tracked point leaves the frame.
// An empty trajectory yields ErrWindowNotFull.
func NormalizeTrajectory(points []detector.Keypoint, width, height int) ([]float64, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gesture: invalid frame size %dx%d", width, height)
	}
	if len(points) == 0 {
		return nil, ErrWindowNotFull
	}

	origin := points[0]
	w, h := float64(width), float64(height)

	features := make([]float64, 0, 2*len(points))
	for _, p := range points {
		features = append(features,
			float64(p.X-origin.X)/w,
			float64(p.Y-origin.Y)/h,
		)
	}

	return features, nil
}
