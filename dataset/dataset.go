// Package dataset holds examples (a query, its page and its answer key) and
// the train/test datasets built from them.
package dataset

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
)

// ShuffleSeed seeds every dataset shuffle.
const ShuffleSeed = 42

// Example is one query over one page.
type Example struct {
	ID     string
	Phrase string
	Page   storage.PageRef
	// Answer is nil for unlabeled examples.
	Answer reward.ExpectedAnswer

	Trees []*tree.Tree
	Set   *candidate.Set

	mu            sync.Mutex
	rewardsCached bool

	wordVecOnce sync.Once
	wordVec     []float64
}

// NewExample creates an unextracted example.
func NewExample(phrase string, page storage.PageRef, answer reward.ExpectedAnswer) *Example {
	return &Example{Phrase: phrase, Page: page, Answer: answer}
}

func (ex *Example) String() string {
	s := "[" + ex.Phrase + "]"
	if ex.Page.Hashcode != "" {
		s += "[" + ex.Page.Hashcode + "]"
	}
	if ex.Page.URL != "" {
		s += "[" + ex.Page.URL + "]"
	}
	return s
}

// Extracted reports whether candidates have been generated.
func (ex *Example) Extracted() bool { return ex.Set != nil }

// Candidates returns the generated candidates, nil before extraction.
func (ex *Example) Candidates() []*candidate.Candidate {
	if ex.Set == nil {
		return nil
	}
	return ex.Set.Candidates
}

// Groups returns the generated groups, nil before extraction.
func (ex *Example) Groups() []*candidate.Group {
	if ex.Set == nil {
		return nil
	}
	return ex.Set.Groups
}

// PhraseVector computes the word vector of the query once with compute.
func (ex *Example) PhraseVector(compute func(phrases []string) []float64) []float64 {
	ex.wordVecOnce.Do(func() { ex.wordVec = compute([]string{ex.Phrase}) })
	return ex.wordVec
}

// CacheRewards wraps the answer in a reward cache shared by every group of
// the example and computes the reward of every candidate. Calls after the
// first one on an extracted example do nothing.
func (ex *Example) CacheRewards() {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.rewardsCached || ex.Answer == nil || ex.Set == nil {
		return
	}
	c, ok := ex.Answer.(*reward.Cache)
	if !ok {
		c = reward.NewCache(ex.Answer)
		ex.Answer = c
	}
	for _, g := range ex.Set.Groups {
		g.Answer = c
	}
	for _, cand := range ex.Set.Candidates {
		cand.Reward()
	}
	ex.rewardsCached = true
}

// Dataset divides examples into training and test lists. The lists may share
// examples.
type Dataset struct {
	Train []*Example
	Test  []*Example
}

// New creates a dataset from copies of the given lists.
func New(train, test []*Example) *Dataset {
	return &Dataset{
		Train: append([]*Example(nil), train...),
		Test:  append([]*Example(nil), test...),
	}
}

// All returns the distinct examples of both lists, training first.
func (d *Dataset) All() []*Example {
	seen := make(map[*Example]bool, len(d.Train)+len(d.Test))
	var out []*Example
	for _, list := range [][]*Example{d.Train, d.Test} {
		for _, ex := range list {
			if !seen[ex] {
				seen[ex] = true
				out = append(out, ex)
			}
		}
	}
	return out
}

// Add appends the lists of that.
func (d *Dataset) Add(that *Dataset) *Dataset {
	d.Train = append(d.Train, that.Train...)
	d.Test = append(d.Test, that.Test...)
	return d
}

// AddAsTrain appends both lists of that to the training list.
func (d *Dataset) AddAsTrain(that *Dataset) *Dataset {
	d.Train = append(d.Train, that.Train...)
	d.Train = append(d.Train, that.Test...)
	return d
}

// AddAsTest appends both lists of that to the test list.
func (d *Dataset) AddAsTest(that *Dataset) *Dataset {
	d.Test = append(d.Test, that.Train...)
	d.Test = append(d.Test, that.Test...)
	return d
}

func (d *Dataset) shuffledConcat() []*Example {
	all := append(append([]*Example(nil), d.Train...), d.Test...)
	r := rand.New(rand.NewSource(ShuffleSeed))
	r.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all
}

// Shuffled returns a new dataset with the examples shuffled and the list
// sizes kept. d is not modified.
func (d *Dataset) Shuffled() *Dataset {
	all := d.shuffledConcat()
	n := len(d.Train)
	return New(all[:n], all[n:])
}

// Split returns a new shuffled dataset with trainRatio of the examples in
// the training list.
func (d *Dataset) Split(trainRatio float64) *Dataset {
	all := d.shuffledConcat()
	n := int(float64(len(all)) * trainRatio)
	return New(all[:n], all[n:])
}

// DomainFold returns fold k of a numFolds split where all examples of a web
// domain land in the same fold. Fold k is the test list.
func (d *Dataset) DomainFold(k, numFolds int) (*Dataset, error) {
	all := d.All()
	folds := groupKFold(domainGroups(all), numFolds)
	if k < 0 || k >= len(folds) {
		return nil, fmt.Errorf("dataset: fold %d out of %d domain folds", k, len(folds))
	}
	inTest := make([]bool, len(all))
	for _, i := range folds[k] {
		inTest[i] = true
	}
	out := &Dataset{}
	for i, ex := range all {
		if inTest[i] {
			out.Test = append(out.Test, ex)
		} else {
			out.Train = append(out.Train, ex)
		}
	}
	return out, nil
}

// CacheRewards caches the rewards of every extracted example.
func (d *Dataset) CacheRewards() {
	for _, ex := range d.All() {
		ex.CacheRewards()
	}
}

// Keep drops the examples for which keep returns false from both lists.
func (d *Dataset) Keep(keep func(*Example) bool) {
	filter := func(list []*Example) []*Example {
		out := list[:0]
		for _, ex := range list {
			if keep(ex) {
				out = append(out, ex)
			}
		}
		return out
	}
	d.Train = filter(d.Train)
	d.Test = filter(d.Test)
}

// groupKFold assigns groups to folds round-robin in sorted order and
// returns the member indices of each fold.
func groupKFold(groups []int, nFolds int) [][]int {
	uniqueGroups := make(map[int]bool)
	for _, g := range groups {
		uniqueGroups[g] = true
	}
	sortedGroups := make([]int, 0, len(uniqueGroups))
	for g := range uniqueGroups {
		sortedGroups = append(sortedGroups, g)
	}
	sort.Ints(sortedGroups)

	if nFolds > len(sortedGroups) {
		slog.Warn("Fewer domains than folds", "domains", len(sortedGroups), "folds", nFolds)
		nFolds = len(sortedGroups)
	}

	groupToFold := make(map[int]int)
	for i, g := range sortedGroups {
		groupToFold[g] = i % nFolds
	}

	folds := make([][]int, nFolds)
	for i, g := range groups {
		fold := groupToFold[g]
		folds[fold] = append(folds[fold], i)
	}
	return folds
}

func domainGroups(examples []*Example) []int {
	groups := make([]int, len(examples))
	domainMap := make(map[string]int)
	for i, ex := range examples {
		domain := storage.GetDomain(ex.Page.URL)
		if _, ok := domainMap[domain]; !ok {
			domainMap[domain] = len(domainMap)
		}
		groups[i] = domainMap[domain]
	}
	return groups
}
