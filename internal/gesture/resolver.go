package gesture

import "slices"

// Resolution is the outcome of one resolver step.
type Resolution struct {
	Raw      int // dynamic class id pushed this frame
	Majority int // most frequent id in the vote window
	Count    int // occurrences of Majority
	Action   int // Majority if allowed, else ActionStop
}

// ActionResolver debounces per-frame dynamic classifications with a
// majority vote over the most recent frames and gates the winner against
// the actions unlocked by the current pose.
//
// Like the trajectory window, the vote window is never cleared. Right
// after a hand appears the window still holds votes from before, so the
// first Cap-1 resolutions are unreliable.
type ActionResolver struct {
	votes *Ring[int]
}

// NewActionResolver creates a resolver voting over capacity frames.
func NewActionResolver(capacity int) *ActionResolver {
	return &ActionResolver{votes: NewRing[int](capacity)}
}

// Resolve records raw as this frame's vote and returns the gated majority.
func (r *ActionResolver) Resolve(raw int, allowed []int) Resolution {
	r.votes.Push(raw)

	majority, count := Majority(r.votes.Values())
	return Resolution{
		Raw:      raw,
		Majority: majority,
		Count:    count,
		Action:   GateAction(majority, allowed),
	}
}

// Votes returns a copy of the vote window, oldest first.
func (r *ActionResolver) Votes() []int {
	return r.votes.Values()
}

// Majority returns the most frequent id in votes and its count. Ties go
// to the id whose first occurrence comes earliest in votes. An empty
// slice yields (ActionStop, 0).
func Majority(votes []int) (id, count int) {
	counts := make(map[int]int, len(votes))
	order := make([]int, 0, len(votes))
	for _, v := range votes {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	id = ActionStop
	for _, v := range order {
		if counts[v] > count {
			id, count = v, counts[v]
		}
	}
	return id, count
}

// GateAction returns majority when it is one of the allowed ids and
// ActionStop otherwise.
func GateAction(majority int, allowed []int) int {
	if slices.Contains(allowed, majority) {
		return majority
	}
	return ActionStop
}
