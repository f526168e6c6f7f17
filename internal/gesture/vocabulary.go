package gesture

import (
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// NoPose marks a frame whose hand could not be classified.
const NoPose = -1

// ActionStop is the neutral action id. It is always the first label.
const ActionStop = 0

// Pose describes one recognized static pose: which landmark is tracked
// while the pose is held and which dynamic actions it unlocks.
type Pose struct {
	ID       int    `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Landmark int    `yaml:"landmark" json:"landmark"`
	Actions  []int  `yaml:"actions" json:"actions"`
}

// Vocabulary is the gesture vocabulary: the tracked poses and the ordered
// action label table.
type Vocabulary struct {
	Poses  []Pose   `yaml:"poses" json:"poses"`
	Labels []string `yaml:"labels" json:"labels"`
}

// DefaultVocabulary returns the presentation-control vocabulary.
// Pose 0 tracks the index fingertip and unlocks goLeft/goRight;
// pose 1 tracks the middle fingertip and unlocks the mode switches.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Poses: []Pose{
			{ID: 0, Name: "left-right", Landmark: detector.IndexTip, Actions: []int{1, 2}},
			{ID: 1, Name: "up-down", Landmark: detector.MiddleTip, Actions: []int{3, 4}},
		},
		Labels: []string{"stop", "goLeft", "goRight", "modeDiaPo", "modeNormal"},
	}
}

// Validate checks that pose ids are unique, landmarks exist and every
// unlocked action has a label.
func (v *Vocabulary) Validate() error {
	if len(v.Labels) == 0 {
		return fmt.Errorf("vocabulary: no action labels")
	}

	seen := make(map[int]bool, len(v.Poses))
	for _, p := range v.Poses {
		if p.ID < 0 {
			return fmt.Errorf("vocabulary: pose %q has negative id %d", p.Name, p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("vocabulary: duplicate pose id %d", p.ID)
		}
		seen[p.ID] = true

		if p.Landmark < 0 || p.Landmark >= detector.NumLandmarks {
			return fmt.Errorf("vocabulary: pose %q tracks unknown landmark %d", p.Name, p.Landmark)
		}
		for _, a := range p.Actions {
			if a <= ActionStop || a >= len(v.Labels) {
				return fmt.Errorf("vocabulary: pose %q unlocks unknown action %d", p.Name, a)
			}
		}
	}

	return nil
}

// Pose looks up a pose by id.
func (v *Vocabulary) Pose(id int) (Pose, bool) {
	for _, p := range v.Poses {
		if p.ID == id {
			return p, true
		}
	}
	return Pose{}, false
}

// Allowed returns the action ids unlocked by pose, or nil when the pose
// is not part of the vocabulary.
func (v *Vocabulary) Allowed(pose int) []int {
	p, ok := v.Pose(pose)
	if !ok {
		return nil
	}
	return p.Actions
}

// Track selects the trajectory point for one frame. A nil hand means no
// hand was seen. The pose's landmark is returned only for recognized
// poses; every other case yields the Sentinel.
func (v *Vocabulary) Track(hand *detector.LandmarkSet, pose int) detector.Keypoint {
	if hand == nil {
		return Sentinel
	}
	p, ok := v.Pose(pose)
	if !ok {
		return Sentinel
	}
	return hand[p.Landmark]
}

// Label returns the name of an action id.
func (v *Vocabulary) Label(action int) string {
	if action < 0 || action >= len(v.Labels) {
		return fmt.Sprintf("action-%d", action)
	}
	return v.Labels[action]
}

// PoseName returns the name of a pose id, or "none".
func (v *Vocabulary) PoseName(pose int) string {
	if p, ok := v.Pose(pose); ok {
		return p.Name
	}
	return "none"
}
