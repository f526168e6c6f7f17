// Package detector provides hand detection interfaces and types for gesture recognition.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the detector.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// Point3D is a landmark in the detector's normalized image coordinates.
// X and Y are in [0, 1] relative to the frame; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Keypoint is an integer pixel position inside a frame.
type Keypoint struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// IsZero reports whether k is the (0,0) sentinel.
func (k Keypoint) IsZero() bool {
	return k.X == 0 && k.Y == 0
}

// LandmarkSet holds one hand's keypoints in pixel space.
// Index 0 is the wrist; the order follows the landmark indices above.
type LandmarkSet [NumLandmarks]Keypoint

// ToPixels maps the normalized landmarks to pixel coordinates of a
// width x height frame. Each coordinate is truncated and clamped to
// [0, dimension-1].
func (h *HandLandmarks) ToPixels(width, height int) LandmarkSet {
	var set LandmarkSet
	if h == nil {
		return set
	}

	for i, p := range h.Points {
		set[i] = Keypoint{
			X: clamp(int(p.X*float64(width)), width-1),
			Y: clamp(int(p.Y*float64(height)), height-1),
		}
	}

	return set
}

func clamp(v, hi int) int {
	if v > hi {
		v = hi
	}
	if v < 0 {
		v = 0
	}
	return v
}

// FirstWithHandedness returns the first hand labeled with the given
// handedness, or nil when none matches.
func FirstWithHandedness(hands []HandLandmarks, handedness string) *HandLandmarks {
	for i := range hands {
		if hands[i].Handedness == handedness {
			return &hands[i]
		}
	}
	return nil
}
