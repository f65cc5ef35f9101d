package reward

import "fmt"

const (
	source = 1
	sink   = -1
)

// Matcher finds a maximum bipartite matching between two sets with a
// flow-style augmenting path search. Left vertices are numbered from 2 up,
// right vertices from -2 down.
type Matcher struct {
	left  map[any]int
	right map[any]int
	edges map[int][]int
}

// NewMatcher returns an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		left:  make(map[any]int),
		right: make(map[any]int),
		edges: make(map[int][]int),
	}
}

// AddEdge connects a left object to a right object. Objects must be comparable.
func (m *Matcher) AddEdge(from, to any) {
	f, ok := m.left[from]
	if !ok {
		f = 2 + len(m.left)
		m.left[from] = f
		m.edges[source] = append(m.edges[source], f)
	}
	t, ok := m.right[to]
	if !ok {
		t = -2 - len(m.right)
		m.right[to] = t
		m.edges[t] = append(m.edges[t], sink)
	}
	m.edges[f] = append(m.edges[f], t)
}

// MaximumMatch returns the size of the maximum matching. The matcher is
// consumed: edges are reversed along each augmenting path.
func (m *Matcher) MaximumMatch() int {
	count := 0
	for {
		path := m.findPath(source, []int{}, map[int]bool{})
		if path == nil {
			return count
		}
		count++
		for i := 0; i+1 < len(path); i++ {
			from, to := path[i], path[i+1]
			m.edges[from] = remove(m.edges[from], to)
			m.edges[to] = append(m.edges[to], from)
		}
	}
}

func (m *Matcher) findPath(node int, path []int, seen map[int]bool) []int {
	seen[node] = true
	path = append(path, node)
	if node == sink {
		return path
	}
	for _, dest := range m.edges[node] {
		if seen[dest] {
			continue
		}
		if found := m.findPath(dest, path, seen); found != nil {
			return found
		}
	}
	return nil
}

func remove(xs []int, x int) []int {
	for i, y := range xs {
		if y == x {
			return append(xs[:i:i], xs[i+1:]...)
		}
	}
	return xs
}

// CountMatches returns the maximum number of targets that can be paired
// one-to-one with predicted entities they match.
func CountMatches(targets []Target, predicted []string) int {
	m := NewMatcher()
	for i, t := range targets {
		for j, p := range predicted {
			if t.Match(p) {
				m.AddEdge(i, j)
			}
		}
	}
	return m.MaximumMatch()
}

// IRScore holds precision, recall, and F1 of a prediction.
type IRScore struct {
	NumCorrect, NumPredicted, NumGold int
	Precision, Recall, F1             float64
}

// NewIRScore computes the scores from raw counts.
func NewIRScore(correct, predicted, gold int) IRScore {
	s := IRScore{NumCorrect: correct, NumPredicted: predicted, NumGold: gold}
	if predicted > 0 {
		s.Precision = float64(correct) / float64(predicted)
	}
	if gold > 0 {
		s.Recall = float64(correct) / float64(gold)
	}
	if correct > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// ScoreAgainst matches predicted against targets and scores the result.
func ScoreAgainst(targets []Target, predicted []string) IRScore {
	return NewIRScore(CountMatches(targets, predicted), len(predicted), len(targets))
}

func (s IRScore) String() string {
	return fmt.Sprintf("[ Precision = %.2f (%d/%d) | Recall = %.2f (%d/%d) | F1 = %.2f ]",
		s.Precision*100, s.NumCorrect, s.NumPredicted,
		s.Recall*100, s.NumCorrect, s.NumGold, s.F1*100)
}
