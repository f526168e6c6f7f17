package gesture

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ayusman/mudra/internal/detector"
)

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()

	if err := v.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	wantLabels := []string{"stop", "goLeft", "goRight", "modeDiaPo", "modeNormal"}
	if diff := cmp.Diff(wantLabels, v.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int{1, 2}, v.Allowed(0)); diff != "" {
		t.Errorf("Allowed(0) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 4}, v.Allowed(1)); diff != "" {
		t.Errorf("Allowed(1) mismatch (-want +got):\n%s", diff)
	}
	if got := v.Allowed(2); got != nil {
		t.Errorf("Allowed(2) = %v, want nil", got)
	}
	if got := v.Allowed(NoPose); got != nil {
		t.Errorf("Allowed(NoPose) = %v, want nil", got)
	}
}

func TestVocabulary_Track(t *testing.T) {
	v := DefaultVocabulary()

	var hand detector.LandmarkSet
	hand[detector.IndexTip] = pt(100, 50)
	hand[detector.MiddleTip] = pt(120, 40)

	tests := []struct {
		name string
		hand *detector.LandmarkSet
		pose int
		want detector.Keypoint
	}{
		{name: "pose 0 tracks index tip", hand: &hand, pose: 0, want: pt(100, 50)},
		{name: "pose 1 tracks middle tip", hand: &hand, pose: 1, want: pt(120, 40)},
		{name: "other pose pushes sentinel", hand: &hand, pose: 2, want: Sentinel},
		{name: "unclassified hand pushes sentinel", hand: &hand, pose: NoPose, want: Sentinel},
		{name: "no hand pushes sentinel", hand: nil, pose: 0, want: Sentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Track(tt.hand, tt.pose); got != tt.want {
				t.Errorf("Track() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVocabulary_Labels(t *testing.T) {
	v := DefaultVocabulary()

	if got := v.Label(1); got != "goLeft" {
		t.Errorf("Label(1) = %q, want goLeft", got)
	}
	if got := v.Label(ActionStop); got != "stop" {
		t.Errorf("Label(0) = %q, want stop", got)
	}
	if got := v.Label(9); got != "action-9" {
		t.Errorf("Label(9) = %q, want action-9", got)
	}
	if got := v.PoseName(1); got != "up-down" {
		t.Errorf("PoseName(1) = %q, want up-down", got)
	}
	if got := v.PoseName(NoPose); got != "none" {
		t.Errorf("PoseName(NoPose) = %q, want none", got)
	}
}

func TestVocabulary_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *Vocabulary)
		wantErr string
	}{
		{
			name:    "no labels",
			mutate:  func(v *Vocabulary) { v.Labels = nil },
			wantErr: "no action labels",
		},
		{
			name:    "duplicate pose",
			mutate:  func(v *Vocabulary) { v.Poses[1].ID = 0 },
			wantErr: "duplicate pose id",
		},
		{
			name:    "negative pose id",
			mutate:  func(v *Vocabulary) { v.Poses[0].ID = -3 },
			wantErr: "negative id",
		},
		{
			name:    "landmark out of range",
			mutate:  func(v *Vocabulary) { v.Poses[0].Landmark = detector.NumLandmarks },
			wantErr: "unknown landmark",
		},
		{
			name:    "action without label",
			mutate:  func(v *Vocabulary) { v.Poses[1].Actions = []int{3, 5} },
			wantErr: "unknown action 5",
		},
		{
			name:    "neutral action cannot be unlocked",
			mutate:  func(v *Vocabulary) { v.Poses[0].Actions = []int{0, 1} },
			wantErr: "unknown action 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := DefaultVocabulary()
			tt.mutate(&v)

			err := v.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
