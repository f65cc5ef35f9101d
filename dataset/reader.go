package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
)

// ErrBadName is returned for a dataset name not of the form family.name.
var ErrBadName = errors.New("dataset: name must be family.name")

// ReaderOptions controls how dataset files become examples.
type ReaderOptions struct {
	// Leading fraction of each file used for training.
	TrainFrac float64
	// Trailing fraction of each file used for testing. The two parts may
	// overlap or leave examples out.
	TestFrac float64
	// Match entities by edit distance instead of substring.
	FuzzyMatching bool
	// Reward 1 only when every criterion matches; otherwise use IR scores.
	ZeroOneLoss bool
	Shuffle     bool
	ShuffleSeed int64
	Reward      reward.Options
}

// DefaultReaderOptions returns the default reader options.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		TrainFrac:     0.8,
		TestFrac:      0.2,
		FuzzyMatching: true,
		ZeroOneLoss:   true,
		ShuffleSeed:   ShuffleSeed,
		Reward:        reward.DefaultOptions(),
	}
}

// Reader loads datasets from a storage folder.
type Reader struct {
	Store *storage.Storage
	Opts  ReaderOptions
}

// NewReader creates a Reader.
func NewReader(store *storage.Storage, opts ReaderOptions) *Reader {
	return &Reader{Store: store, Opts: opts}
}

// Read loads family.name. The name part may be "a@b" (train on all of a,
// test on all of b) or "a+b" (concatenate a and b).
func (r *Reader) Read(fullname string) (*Dataset, error) {
	family, name, ok := strings.Cut(fullname, ".")
	if !ok || family == "" || name == "" || strings.Contains(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrBadName, fullname)
	}
	if err := r.Opts.Reward.Validate(); err != nil {
		return nil, err
	}
	return r.read(family, name)
}

func (r *Reader) read(family, name string) (*Dataset, error) {
	if train, test, ok := strings.Cut(name, "@"); ok {
		if strings.Contains(test, "@") {
			return nil, fmt.Errorf("%w: train@test needs 2 datasets, got %q", ErrBadName, name)
		}
		trainSet, err := r.read(family, train)
		if err != nil {
			return nil, err
		}
		testSet, err := r.read(family, test)
		if err != nil {
			return nil, err
		}
		return (&Dataset{}).AddAsTrain(trainSet).AddAsTest(testSet), nil
	}
	if strings.Contains(name, "+") {
		d := &Dataset{}
		for _, part := range strings.Split(name, "+") {
			sub, err := r.read(family, part)
			if err != nil {
				return nil, err
			}
			d.Add(sub)
		}
		return d, nil
	}
	return r.readFile(family, name)
}

func (r *Reader) readFile(family, name string) (*Dataset, error) {
	f, err := r.Store.ReadDataset(family, name)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	examples := make([]*Example, 0, len(f.Data))
	for i, d := range f.Data {
		answer, err := r.answer(d, f.Options)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s.%s datum %d: %w", family, name, i, err)
		}
		page := storage.PageRef{URL: d.URL}
		if f.Options.UseHashcode {
			page.Hashcode = d.Hashcode
			page.CacheDirectory = f.Options.CacheDirectory
		}
		ex := NewExample(d.Query, page, answer)
		ex.ID = fmt.Sprintf("%s.%s#%d", family, name, i)
		examples = append(examples, ex)
	}
	slog.Info("Read dataset", "dataset", family+"."+name, "examples", len(examples),
		"zero_one_loss", r.Opts.ZeroOneLoss, "detailed", f.Options.Detailed)

	n := len(examples)
	trainEnd := int(float64(n) * r.Opts.TrainFrac)
	testStart := int(float64(n) * (1 - r.Opts.TestFrac))
	if r.Opts.Shuffle {
		rnd := rand.New(rand.NewSource(r.Opts.ShuffleSeed))
		rnd.Shuffle(n, func(i, j int) { examples[i], examples[j] = examples[j], examples[i] })
	}
	d := &Dataset{}
	for i, ex := range examples {
		if i < trainEnd {
			d.Train = append(d.Train, ex)
		}
		if i >= testStart {
			d.Test = append(d.Test, ex)
		}
	}
	return d, nil
}

func (r *Reader) targets(entities []string) []reward.Target {
	if r.Opts.FuzzyMatching {
		return reward.NearMatches(entities...)
	}
	return reward.Substrings(entities...)
}

func (r *Reader) answer(d storage.Datum, opts storage.FileOptions) (reward.ExpectedAnswer, error) {
	if !r.Opts.ZeroOneLoss {
		return reward.NewInjectiveMatch(r.targets(d.Entities), r.Opts.Reward)
	}
	if opts.Detailed {
		c := d.Criteria
		return reward.NewCriteriaMatch(reward.NewGeneralWeb(c.First, c.Second, c.Last), r.Opts.Reward), nil
	}
	return reward.NewCriteriaMatch(reward.NewExactMatch(r.targets(d.Entities)), r.Opts.Reward), nil
}
