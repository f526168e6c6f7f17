package app

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

// FrameResult is the outcome of processing one frame. Values are copies
// and safe to hand to other goroutines.
type FrameResult struct {
	Frame          int64             `json:"frame"`
	Time           time.Time         `json:"time"`
	HandFound      bool              `json:"hand_found"`
	Pose           int               `json:"pose"`
	PoseName       string            `json:"pose_name"`
	PoseConfidence float64           `json:"pose_confidence"`
	Point          detector.Keypoint `json:"point"`
	WindowFull     bool              `json:"window_full"`
	Raw            int               `json:"raw"`
	RawConfidence  float64           `json:"raw_confidence"`
	Majority       int               `json:"majority"`
	Action         int               `json:"action"`
	Label          string            `json:"label"`
}

// PipelineConfig holds the per-frame processing settings.
type PipelineConfig struct {
	Vocabulary    gesture.Vocabulary
	Hand          string // handedness that is tracked
	HistoryLength int
}

// DefaultPipelineConfig tracks the right hand over 16 frames with the
// default vocabulary.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Vocabulary:    gesture.DefaultVocabulary(),
		Hand:          detector.HandRight,
		HistoryLength: gesture.DefaultHistoryLength,
	}
}

// Pipeline turns the hands detected in a frame into one resolved action.
// It owns the trajectory and vote windows and must be driven from a
// single goroutine.
type Pipeline struct {
	config     PipelineConfig
	pose       classifier.Classifier
	gesture    classifier.Classifier
	trajectory *gesture.TrajectoryWindow
	resolver   *gesture.ActionResolver
	log        logrus.FieldLogger
	frame      int64
	lastAction int
	now        func() time.Time
}

// NewPipeline creates a pipeline. pose classifies normalized landmarks and
// gesture classifies normalized trajectories.
func NewPipeline(config PipelineConfig, pose, gest classifier.Classifier, log logrus.FieldLogger) *Pipeline {
	if config.HistoryLength <= 0 {
		config.HistoryLength = gesture.DefaultHistoryLength
	}
	if config.Hand == "" {
		config.Hand = detector.HandRight
	}

	return &Pipeline{
		config:     config,
		pose:       pose,
		gesture:    gest,
		trajectory: gesture.NewTrajectoryWindow(config.HistoryLength),
		resolver:   gesture.NewActionResolver(config.HistoryLength),
		log:        logging.OrDiscard(log).WithField("component", "pipeline"),
		lastAction: gesture.ActionStop,
		now:        time.Now,
	}
}

// ProcessFrame runs one step: select the tracked hand, classify its pose,
// push one trajectory point, classify the trajectory once the window is
// full and resolve the action. width and height are the frame size in
// pixels.
//
// Without a tracked hand a sentinel is pushed, the trajectory is not
// classified and a stop vote is cast, so the action is stop and stale
// votes age out within one window.
func (p *Pipeline) ProcessFrame(hands []detector.HandLandmarks, width, height int) FrameResult {
	p.frame++
	log := p.log.WithField("frame", p.frame)

	res := FrameResult{
		Frame:    p.frame,
		Time:     p.now(),
		Pose:     gesture.NoPose,
		PoseName: p.config.Vocabulary.PoseName(gesture.NoPose),
		Action:   gesture.ActionStop,
	}

	var allowed []int
	point := gesture.Sentinel
	if hand := detector.FirstWithHandedness(hands, p.config.Hand); hand != nil {
		res.HandFound = true

		set := hand.ToPixels(width, height)
		res.Pose, res.PoseConfidence = p.classifyPose(set, log)
		res.PoseName = p.config.Vocabulary.PoseName(res.Pose)
		point = p.config.Vocabulary.Track(&set, res.Pose)
		allowed = p.config.Vocabulary.Allowed(res.Pose)
	}

	res.Point = point
	p.trajectory.Push(point)
	res.WindowFull = p.trajectory.Full()

	if res.HandFound {
		res.Raw, res.RawConfidence = p.classifyTrajectory(width, height, log)
	}

	resolution := p.resolver.Resolve(res.Raw, allowed)
	res.Majority = resolution.Majority
	res.Action = resolution.Action

	return p.finish(res, log)
}

func (p *Pipeline) classifyPose(set detector.LandmarkSet, log logrus.FieldLogger) (int, float64) {
	features, err := gesture.NormalizeLandmarks(set)
	if err != nil {
		log.WithError(err).Debug("skipping pose classification")
		return gesture.NoPose, 0
	}

	result, err := p.pose.Infer(features)
	if err != nil {
		log.WithError(err).Warn("pose inference failed")
		return gesture.NoPose, 0
	}
	return result.ClassID, result.Confidence
}

func (p *Pipeline) classifyTrajectory(width, height int, log logrus.FieldLogger) (int, float64) {
	features, err := p.trajectory.Features(width, height)
	if errors.Is(err, gesture.ErrWindowNotFull) {
		return gesture.ActionStop, 0
	}
	if err != nil {
		log.WithError(err).Warn("trajectory normalization failed")
		return gesture.ActionStop, 0
	}

	result, err := p.gesture.Infer(features)
	if err != nil {
		log.WithError(err).Warn("gesture inference failed")
		return gesture.ActionStop, 0
	}
	return result.ClassID, result.Confidence
}

func (p *Pipeline) finish(res FrameResult, log logrus.FieldLogger) FrameResult {
	res.Label = p.config.Vocabulary.Label(res.Action)

	log.WithFields(logrus.Fields{
		"pose":   res.PoseName,
		"raw":    res.Raw,
		"action": res.Label,
	}).Debug("frame processed")

	if res.Action != p.lastAction {
		log.WithFields(logrus.Fields{
			"from": p.config.Vocabulary.Label(p.lastAction),
			"to":   res.Label,
		}).Info("action changed")
		p.lastAction = res.Action
	}
	return res
}

// Trajectory returns the tracked points, oldest first.
func (p *Pipeline) Trajectory() []detector.Keypoint {
	return p.trajectory.Points()
}

// Votes returns the dynamic classification votes, oldest first.
func (p *Pipeline) Votes() []int {
	return p.resolver.Votes()
}

// Vocabulary returns the vocabulary the pipeline resolves against.
func (p *Pipeline) Vocabulary() gesture.Vocabulary {
	return p.config.Vocabulary
}
