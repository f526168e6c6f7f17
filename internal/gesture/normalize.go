// Package gesture turns per-frame hand keypoints into feature vectors and
// debounces per-frame classifier output into a stable action.
package gesture

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/ayusman/mudra/internal/detector"
)

// LandmarkFeatures is the length of a landmark feature vector.
const LandmarkFeatures = 2 * detector.NumLandmarks

// ErrDegenerateInput is returned when every keypoint coincides with the
// anchor, so there is no scale to normalize by.
var ErrDegenerateInput = errors.New("gesture: all keypoints coincide with the anchor")

// NormalizeLandmarks converts a pixel-space landmark set into a
// translation and scale invariant feature vector.
//
// Every keypoint is made relative to the wrist, flattened as
// (x0, y0, x1, y1, ...) and divided by the largest absolute component,
// so the result lies in [-1, 1] with at least one component at exactly ±1.
func NormalizeLandmarks(set detector.LandmarkSet) ([]float64, error) {
	anchor := set[detector.Wrist]

	features := make([]float64, 0, LandmarkFeatures)
	for _, p := range set {
		features = append(features, float64(p.X-anchor.X), float64(p.Y-anchor.Y))
	}

	maxAbs := floats.Norm(features, math.Inf(1))
	if maxAbs == 0 {
		return nil, ErrDegenerateInput
	}

	// Divide rather than scale by the reciprocal so the largest
	// component lands on exactly ±1.
	for i := range features {
		features[i] /= maxAbs
	}

	return features, nil
}
