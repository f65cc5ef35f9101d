package reward

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownCriterion is returned for an unrecognized IR criterion name.
var ErrUnknownCriterion = errors.New("reward: unknown IR criterion")

// Options configures how rewards are computed.
type Options struct {
	// Rewards below this value are clipped to 0.
	IRThreshold float64
	// One of precision (p), recall (r), f1, raw.
	IRCriterion string
	// Give partial reward to lists that miss some criteria.
	Generous bool
	// Partial reward used when Generous is set. Nil means DefaultGenerousPolicy.
	GenerousPolicy GenerousPolicy
}

// DefaultOptions returns the default reward options.
func DefaultOptions() Options {
	return Options{IRThreshold: 0.8, IRCriterion: "recall"}
}

// Validate checks the criterion name.
func (o Options) Validate() error {
	switch o.IRCriterion {
	case "precision", "p", "recall", "r", "f1", "raw":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCriterion, o.IRCriterion)
}

// GenerousPolicy turns an IR score into a partial reward.
type GenerousPolicy func(score IRScore, opts Options) float64

// DefaultGenerousPolicy rewards F1 when it exceeds the IR threshold.
func DefaultGenerousPolicy(score IRScore, opts Options) float64 {
	if score.F1 > opts.IRThreshold {
		return score.F1
	}
	return 0
}

// ExpectedAnswer is an answer key that can judge predicted entity lists.
type ExpectedAnswer interface {
	Targets() []Target
	IRScore(predicted []string) IRScore
	// Reward is in [0, 1].
	Reward(predicted []string) float64
	CountCorrect(predicted []string) int
	// IsLikelyCorrect guesses whether the list is the intended answer; the key may be incomplete.
	IsLikelyCorrect(predicted []string) bool
	// Correctness orders likely correct lists; higher is better.
	Correctness(predicted []string) float64
}

// InjectiveMatch pairs every target with at most one predicted entity.
type InjectiveMatch struct {
	targets []Target
	opts    Options
}

// NewInjectiveMatch validates opts and returns the answer.
func NewInjectiveMatch(targets []Target, opts Options) (*InjectiveMatch, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &InjectiveMatch{targets: targets, opts: opts}, nil
}

func (a *InjectiveMatch) Targets() []Target { return a.targets }

func (a *InjectiveMatch) CountCorrect(predicted []string) int {
	return CountMatches(a.targets, predicted)
}

func (a *InjectiveMatch) IRScore(predicted []string) IRScore {
	return NewIRScore(a.CountCorrect(predicted), len(predicted), len(a.targets))
}

func (a *InjectiveMatch) Reward(predicted []string) float64 {
	s := a.IRScore(predicted)
	var v float64
	switch a.opts.IRCriterion {
	case "precision", "p":
		v = s.Precision
	case "recall", "r":
		v = s.Recall
	case "f1":
		v = s.F1
	case "raw":
		if float64(s.NumCorrect) >= float64(s.NumGold)-a.opts.IRThreshold {
			return 1
		}
		return 0
	}
	if v < a.opts.IRThreshold {
		return 0
	}
	return v
}

func (a *InjectiveMatch) IsLikelyCorrect(predicted []string) bool {
	return a.Reward(predicted) > 0
}

func (a *InjectiveMatch) Correctness(predicted []string) float64 {
	return a.Reward(predicted)
}

// Criteria is a set of conditions a predicted list should satisfy.
type Criteria interface {
	Targets() []Target
	NumCriteria() int
	CountMatched(predicted []string) int
	IRScore(predicted []string) IRScore
	Correctness(predicted []string) float64
}

// CriteriaMatch gives reward 1 when every criterion is met.
type CriteriaMatch struct {
	Criteria Criteria
	opts     Options
}

// NewCriteriaMatch wraps criteria.
func NewCriteriaMatch(c Criteria, opts Options) *CriteriaMatch {
	return &CriteriaMatch{Criteria: c, opts: opts}
}

func (a *CriteriaMatch) Targets() []Target { return a.Criteria.Targets() }

func (a *CriteriaMatch) CountCorrect(predicted []string) int {
	return a.Criteria.CountMatched(predicted)
}

func (a *CriteriaMatch) IRScore(predicted []string) IRScore {
	return a.Criteria.IRScore(predicted)
}

func (a *CriteriaMatch) Reward(predicted []string) float64 {
	if a.opts.Generous {
		policy := a.opts.GenerousPolicy
		if policy == nil {
			policy = DefaultGenerousPolicy
		}
		return policy(a.Criteria.IRScore(predicted), a.opts)
	}
	if a.CountCorrect(predicted) == a.Criteria.NumCriteria() {
		return 1
	}
	return 0
}

func (a *CriteriaMatch) IsLikelyCorrect(predicted []string) bool {
	return a.CountCorrect(predicted) == a.Criteria.NumCriteria()
}

func (a *CriteriaMatch) Correctness(predicted []string) float64 {
	return a.Criteria.Correctness(predicted)
}

// ExactMatch is a single criterion: the lists have the same length and pair up completely.
type ExactMatch struct {
	targets []Target
}

// NewExactMatch returns the criterion for targets.
func NewExactMatch(targets []Target) *ExactMatch {
	return &ExactMatch{targets: targets}
}

func (c *ExactMatch) Targets() []Target { return c.targets }
func (c *ExactMatch) NumCriteria() int  { return 1 }

func (c *ExactMatch) CountMatched(predicted []string) int {
	if len(predicted) == len(c.targets) && CountMatches(c.targets, predicted) == len(c.targets) {
		return 1
	}
	return 0
}

func (c *ExactMatch) IRScore(predicted []string) IRScore {
	return ScoreAgainst(c.targets, predicted)
}

func (c *ExactMatch) Correctness(predicted []string) float64 {
	return c.IRScore(predicted).F1
}

// GeneralWeb checks the first, second, and last entities of a list.
type GeneralWeb struct {
	First, Second, Last Target
}

// NewGeneralWeb builds near-match criteria from the three expected strings.
func NewGeneralWeb(first, second, last string) *GeneralWeb {
	return &GeneralWeb{First: NewNearMatch(first), Second: NewNearMatch(second), Last: NewNearMatch(last)}
}

func (c *GeneralWeb) Targets() []Target { return []Target{c.First, c.Second, c.Last} }
func (c *GeneralWeb) NumCriteria() int  { return 3 }

func (c *GeneralWeb) CountMatched(predicted []string) int {
	var first, second, last string
	if n := len(predicted); n > 0 {
		first, last = predicted[0], predicted[n-1]
		if n > 1 {
			second = predicted[1]
		}
	}
	count := 0
	for _, m := range []bool{c.First.Match(first), c.Second.Match(second), c.Last.Match(last)} {
		if m {
			count++
		}
	}
	return count
}

func (c *GeneralWeb) IRScore(predicted []string) IRScore {
	return NewIRScore(c.CountMatched(predicted), 3, 3)
}

// Correctness prefers longer lists among those meeting all criteria.
func (c *GeneralWeb) Correctness(predicted []string) float64 {
	if c.CountMatched(predicted) != 3 {
		return 0
	}
	return float64(len(predicted))
}

// FindBest returns the index of the list with the strictly highest
// correctness, or -1 if none is positive. The first one wins ties.
func FindBest(a ExpectedAnswer, lists [][]string) int {
	best, bestScore := -1, 0.0
	for i, l := range lists {
		if s := a.Correctness(l); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// FindFirstTrue returns the index of the first likely correct list, or -1.
func FindFirstTrue(a ExpectedAnswer, lists [][]string) int {
	for i, l := range lists {
		if a.IsLikelyCorrect(l) {
			return i
		}
	}
	return -1
}

// Cache memoizes an answer's rewards and correct counts per distinct
// predicted list. It is safe for concurrent use.
type Cache struct {
	ExpectedAnswer

	mu      sync.Mutex
	rewards map[string]float64
	counts  map[string]int
}

// NewCache wraps a.
func NewCache(a ExpectedAnswer) *Cache {
	return &Cache{ExpectedAnswer: a, rewards: make(map[string]float64), counts: make(map[string]int)}
}

// ListKey identifies an entity list. Each element is prefixed with its byte
// length, so distinct lists never share a key.
func ListKey(entities []string) string {
	var sb strings.Builder
	for _, e := range entities {
		sb.WriteString(strconv.Itoa(len(e)))
		sb.WriteByte(':')
		sb.WriteString(e)
	}
	return sb.String()
}

func (c *Cache) Reward(predicted []string) float64 {
	key := ListKey(predicted)
	c.mu.Lock()
	r, ok := c.rewards[key]
	c.mu.Unlock()
	if ok {
		return r
	}
	r = c.ExpectedAnswer.Reward(predicted)
	c.mu.Lock()
	c.rewards[key] = r
	c.mu.Unlock()
	return r
}

func (c *Cache) CountCorrect(predicted []string) int {
	key := ListKey(predicted)
	c.mu.Lock()
	n, ok := c.counts[key]
	c.mu.Unlock()
	if ok {
		return n
	}
	n = c.ExpectedAnswer.CountCorrect(predicted)
	c.mu.Lock()
	c.counts[key] = n
	c.mu.Unlock()
	return n
}

func (c *Cache) IsLikelyCorrect(predicted []string) bool {
	switch a := c.ExpectedAnswer.(type) {
	case *InjectiveMatch:
		return c.Reward(predicted) > 0
	case *CriteriaMatch:
		return c.CountCorrect(predicted) == a.Criteria.NumCriteria()
	}
	return c.ExpectedAnswer.IsLikelyCorrect(predicted)
}

// Len returns the number of cached rewards.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rewards)
}
