// Package classifier wraps the two inference models used by the pipeline:
// a static pose model fed with normalized hand landmarks and a dynamic
// gesture model fed with a normalized fingertip trajectory.
package classifier

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrInputSize is returned when a feature vector does not match the
	// model's input width.
	ErrInputSize = errors.New("feature vector size mismatch")
	// ErrNoScores is returned when a model produced an empty score vector.
	ErrNoScores = errors.New("model returned no scores")
)

// Result is the outcome of one inference: the argmax class and its score.
type Result struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
}

// Classifier maps a feature vector to a class.
type Classifier interface {
	Infer(features []float64) (Result, error)
}

// Scorer runs a model and returns its raw score vector, one entry per class.
type Scorer interface {
	Scores(features []float64) ([]float64, error)
}

// ModelLoadError reports a model artifact that could not be loaded or whose
// shape does not match what the pipeline feeds it.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// Argmax returns the index and value of the highest score. Ties go to the
// lowest index.
func Argmax(scores []float64) (Result, error) {
	if len(scores) == 0 {
		return Result{}, ErrNoScores
	}
	idx := floats.MaxIdx(scores)
	return Result{ClassID: idx, Confidence: scores[idx]}, nil
}

// Pose classifies static hand poses. The argmax is reported as is.
type Pose struct {
	scorer Scorer
}

// NewPose creates a static pose classifier over scorer.
func NewPose(scorer Scorer) *Pose {
	return &Pose{scorer: scorer}
}

// Infer implements Classifier.
func (p *Pose) Infer(features []float64) (Result, error) {
	scores, err := p.scorer.Scores(features)
	if err != nil {
		return Result{}, fmt.Errorf("pose inference: %w", err)
	}
	return Argmax(scores)
}

// Gesture classifies dynamic gestures. Results whose confidence falls
// below the threshold are replaced by the invalid class id.
type Gesture struct {
	scorer    Scorer
	threshold float64
	invalid   int
}

// NewGesture creates a dynamic gesture classifier over scorer.
func NewGesture(scorer Scorer, threshold float64, invalid int) *Gesture {
	return &Gesture{scorer: scorer, threshold: threshold, invalid: invalid}
}

// Threshold returns the minimum confidence for a class to be reported.
func (g *Gesture) Threshold() float64 {
	return g.threshold
}

// Infer implements Classifier.
func (g *Gesture) Infer(features []float64) (Result, error) {
	scores, err := g.scorer.Scores(features)
	if err != nil {
		return Result{}, fmt.Errorf("gesture inference: %w", err)
	}

	res, err := Argmax(scores)
	if err != nil {
		return Result{}, err
	}
	if res.Confidence < g.threshold {
		res.ClassID = g.invalid
	}
	return res, nil
}
