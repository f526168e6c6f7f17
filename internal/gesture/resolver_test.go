package gesture

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMajority(t *testing.T) {
	tests := []struct {
		name      string
		votes     []int
		wantID    int
		wantCount int
	}{
		{name: "clear majority", votes: []int{1, 1, 2, 3}, wantID: 1, wantCount: 2},
		{name: "all distinct picks oldest", votes: []int{1, 2, 3}, wantID: 1, wantCount: 1},
		{name: "tie goes to first seen not smallest", votes: []int{3, 1, 1, 3}, wantID: 3, wantCount: 2},
		{name: "tie with later block", votes: []int{2, 0, 0, 2, 4, 4}, wantID: 2, wantCount: 2},
		{name: "later id wins on count", votes: []int{0, 0, 2, 2, 2}, wantID: 2, wantCount: 3},
		{name: "single vote", votes: []int{4}, wantID: 4, wantCount: 1},
		{name: "empty", votes: nil, wantID: ActionStop, wantCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, count := Majority(tt.votes)
			if id != tt.wantID || count != tt.wantCount {
				t.Errorf("Majority(%v) = (%d, %d), want (%d, %d)", tt.votes, id, count, tt.wantID, tt.wantCount)
			}
		})
	}
}

func TestGateAction(t *testing.T) {
	tests := []struct {
		name     string
		majority int
		allowed  []int
		want     int
	}{
		{name: "not allowed", majority: 3, allowed: []int{1, 2}, want: 0},
		{name: "allowed", majority: 1, allowed: []int{1, 2}, want: 1},
		{name: "second allowed", majority: 4, allowed: []int{3, 4}, want: 4},
		{name: "empty set suppresses everything", majority: 2, allowed: nil, want: 0},
		{name: "neutral stays neutral", majority: 0, allowed: []int{1, 2}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GateAction(tt.majority, tt.allowed); got != tt.want {
				t.Errorf("GateAction(%d, %v) = %d, want %d", tt.majority, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestActionResolver_Resolve(t *testing.T) {
	t.Run("votes are a sliding window", func(t *testing.T) {
		r := NewActionResolver(4)
		for _, v := range []int{5, 1, 1, 2, 3} {
			r.Resolve(v, nil)
		}

		if diff := cmp.Diff([]int{1, 1, 2, 3}, r.Votes()); diff != "" {
			t.Errorf("Votes() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("majority gated by allowed set", func(t *testing.T) {
		r := NewActionResolver(4)
		r.Resolve(1, []int{1, 2})
		r.Resolve(1, []int{1, 2})
		got := r.Resolve(2, []int{1, 2})

		want := Resolution{Raw: 2, Majority: 1, Count: 2, Action: 1}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}

		// Same window, different pose: the majority is no longer allowed.
		got = r.Resolve(1, []int{3, 4})
		want = Resolution{Raw: 1, Majority: 1, Count: 3, Action: ActionStop}
		if got != want {
			t.Errorf("Resolve() = %+v, want %+v", got, want)
		}
	})

	t.Run("needs a majority before switching", func(t *testing.T) {
		const c = DefaultHistoryLength
		r := NewActionResolver(c)

		// A window full of neutral votes.
		for i := 0; i < c; i++ {
			r.Resolve(0, []int{1, 2})
		}

		var firstSwitch int
		for frame := 1; frame <= c; frame++ {
			res := r.Resolve(1, []int{1, 2})
			if res.Action == 1 && firstSwitch == 0 {
				firstSwitch = frame
			}
			if firstSwitch != 0 && res.Action != 1 {
				t.Fatalf("frame %d: action fell back to %d after switching", frame, res.Action)
			}
		}

		// 8 vs 8 is a tie that the older neutral vote wins.
		if firstSwitch != c/2+1 {
			t.Errorf("action switched at frame %d, want %d", firstSwitch, c/2+1)
		}
	})
}

func TestActionResolver_StopVotesAgeOut(t *testing.T) {
	const c = 4
	r := NewActionResolver(c)
	allowed := []int{1, 2}

	for i := 0; i < c; i++ {
		r.Resolve(1, allowed)
	}

	// Stop votes with nothing allowed: the old majority survives for
	// fewer than C frames and never passes the gate.
	for i := 1; i <= c; i++ {
		res := r.Resolve(ActionStop, nil)
		if res.Action != ActionStop {
			t.Errorf("step %d: action = %d, want stop", i, res.Action)
		}
		wantMajority := 1
		if i > c/2 {
			wantMajority = ActionStop
		}
		if res.Majority != wantMajority {
			t.Errorf("step %d: majority = %d, want %d", i, res.Majority, wantMajority)
		}
	}

	if diff := cmp.Diff([]int{0, 0, 0, 0}, r.Votes()); diff != "" {
		t.Errorf("votes mismatch (-want +got):\n%s", diff)
	}
}
