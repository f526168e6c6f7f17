package classifier

import "sync"

// Mock is a Scorer for tests. It returns Output (or Err) and records every
// input it was given. When Sequence is set, successive calls walk through
// it and then fall back to Output.
type Mock struct {
	mu       sync.Mutex
	Output   []float64
	Sequence [][]float64
	Err      error
	inputs   [][]float64
}

// NewMock creates a mock that always returns scores.
func NewMock(scores ...float64) *Mock {
	return &Mock{Output: scores}
}

// OneHot returns a score vector of length n with value at index id and
// the remainder spread evenly over the other classes.
func OneHot(n, id int, value float64) []float64 {
	scores := make([]float64, n)
	if n > 1 {
		rest := (1 - value) / float64(n-1)
		for i := range scores {
			scores[i] = rest
		}
	}
	scores[id] = value
	return scores
}

// Scores implements Scorer.
func (m *Mock) Scores(features []float64) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in := make([]float64, len(features))
	copy(in, features)
	m.inputs = append(m.inputs, in)

	if m.Err != nil {
		return nil, m.Err
	}

	scores := m.Output
	if n := len(m.inputs) - 1; n < len(m.Sequence) {
		scores = m.Sequence[n]
	}

	out := make([]float64, len(scores))
	copy(out, scores)
	return out, nil
}

// Calls returns how many times Scores was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// Inputs returns copies of every feature vector received, in call order.
func (m *Mock) Inputs() [][]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]float64, len(m.inputs))
	copy(out, m.inputs)
	return out
}
