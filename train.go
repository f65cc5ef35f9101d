package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/eval"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/learner"
)

var (
	// ErrFoldsWithModel is returned when several folds would save or load
	// the same model.
	ErrFoldsWithModel = errors.New("extractor: cannot save or load a model with more than one fold")
	// ErrNoDataset is returned when no dataset is named.
	ErrNoDataset = errors.New("extractor: no dataset given")
)

// TrainConfig holds configuration for training and evaluation.
type TrainConfig struct {
	Model ModelConfig

	// Storage folder holding datasets/ and the frozen page cache.
	DataDir string
	// Datasets as family.name; several are concatenated.
	Datasets []string
	Reader   dataset.ReaderOptions
	// Source of pages. Nil reads the frozen cache of DataDir only.
	Source dataset.PageSource
	// Extraction workers. Zero means GOMAXPROCS.
	Threads int

	Folds int
	// Split folds by web domain instead of reshuffling.
	DomainFolds bool
	UseSeed     bool
	// Report F1 against the answer key instead of the best candidate.
	F1AgainstAnswer bool

	// Model directories. Only valid with a single fold.
	SavePath string
	LoadPath string
}

// DefaultTrainConfig returns one fold of maxent on the storage folder dir.
func DefaultTrainConfig(dir string) TrainConfig {
	return TrainConfig{
		Model:   DefaultModelConfig(),
		DataDir: dir,
		Reader:  dataset.DefaultReaderOptions(),
		Folds:   1,
	}
}

// FoldResult holds the final scores of one fold.
type FoldResult struct {
	Fold   int
	Train  eval.Statistics
	Test   eval.Statistics
	Tester *eval.IterativeTester
}

// Report aggregates the folds of a run.
type Report struct {
	RunID string
	Folds []FoldResult
	Train eval.Summary
	Test  eval.Summary
	// Model of the first fold.
	Model *Model
}

// Train trains a single model and evaluates it on the test list.
func Train(ctx context.Context, cfg TrainConfig) (*Model, *Report, error) {
	cfg.Folds = 1
	cfg.DomainFolds = false
	report, err := Evaluate(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return report.Model, report, nil
}

// Evaluate loads the datasets, extracts their candidates once, then trains
// and tests one learner per fold in parallel. Fold 0 is the dataset as
// read; fold i reshuffles fold i-1, or takes the i-th domain split.
func Evaluate(ctx context.Context, cfg TrainConfig) (*Report, error) {
	if cfg.Folds < 1 {
		cfg.Folds = 1
	}
	if cfg.Folds > 1 && (cfg.SavePath != "" || cfg.LoadPath != "") {
		return nil, ErrFoldsWithModel
	}
	if len(cfg.Datasets) == 0 {
		return nil, ErrNoDataset
	}
	if cfg.LoadPath != "" {
		mc, err := ReadModelConfig(cfg.LoadPath)
		if err != nil {
			return nil, err
		}
		cfg.Model = mc
	}
	if cfg.Model.RunID == "" {
		cfg.Model.RunID = uuid.NewString()
	}
	res, err := cfg.Model.resources()
	if err != nil {
		return nil, err
	}

	store := storage.NewStorage(cfg.DataDir)
	reader := dataset.NewReader(store, cfg.Reader)
	d := &dataset.Dataset{}
	for _, name := range cfg.Datasets {
		sub, err := reader.Read(name)
		if err != nil {
			return nil, fmt.Errorf("extractor: %w", err)
		}
		d.Add(sub)
	}
	src := cfg.Source
	if src == nil {
		src = dataset.FrozenSource{Store: store}
	}
	x := res.extractor(src, cfg.Threads)
	if err := x.ExtractDataset(ctx, d); err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	d.CacheRewards()
	slog.Info("Dataset ready", "run_id", cfg.Model.RunID, "train", len(d.Train), "test", len(d.Test))

	folds := make([]*dataset.Dataset, cfg.Folds)
	for i := range folds {
		switch {
		case cfg.DomainFolds && cfg.Folds > 1:
			if folds[i], err = d.DomainFold(i, cfg.Folds); err != nil {
				return nil, fmt.Errorf("extractor: %w", err)
			}
		case i == 0:
			folds[i] = d
		default:
			folds[i] = folds[i-1].Shuffled()
		}
	}

	results := make([]FoldResult, cfg.Folds)
	learners := make([]learner.Learner, cfg.Folds)
	var g errgroup.Group
	g.SetLimit(min(runtime.GOMAXPROCS(0), cfg.Folds))
	for i, fd := range folds {
		g.Go(func() error {
			l, r, err := runFold(cfg, res, i, fd)
			if err != nil {
				return fmt.Errorf("extractor: fold %d: %w", i, err)
			}
			learners[i], results[i] = l, r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{RunID: cfg.Model.RunID, Folds: results}
	train := make([]eval.Statistics, len(results))
	test := make([]eval.Statistics, len(results))
	for i, r := range results {
		train[i], test[i] = r.Train, r.Test
	}
	report.Train = eval.Summarize("train", train)
	report.Test = eval.Summarize("test", test)
	report.Train.Log()
	report.Test.Log()

	model := cfg.Model
	if model.Created.IsZero() {
		model.Created = time.Now().UTC()
	}
	report.Model = &Model{Config: model, learner: learners[0], extractor: res.extractor(nil, 1)}
	if cfg.SavePath != "" {
		if err := report.Model.Save(cfg.SavePath); err != nil {
			slog.Warn("Failed to save model", "path", cfg.SavePath, "error", err)
		} else {
			slog.Info("Saved model", "path", cfg.SavePath)
		}
	}
	return report, nil
}

func runFold(cfg TrainConfig, res *resources, fold int, d *dataset.Dataset) (learner.Learner, FoldResult, error) {
	quiet := fold > 0
	l, err := res.learner(quiet)
	if err != nil {
		return nil, FoldResult{}, err
	}
	opts := eval.Options{UseSeed: cfg.UseSeed}
	tester := eval.NewIterativeTester(l, d, opts)
	tester.Quiet = quiet
	tester.F1AgainstAnswer = cfg.F1AgainstAnswer
	l.SetTester(tester)

	start := time.Now()
	if cfg.LoadPath != "" {
		if err := l.Load(filepath.Join(cfg.LoadPath, ParamsFile)); err != nil {
			return nil, FoldResult{}, err
		}
	} else if err := l.Learn(d, nil); err != nil {
		return nil, FoldResult{}, err
	}
	slog.Debug("Fold trained", "fold", fold, "elapsed", time.Since(start))

	trainEval, err := eval.Test(l, d.Train, fmt.Sprintf("[fold %d] train", fold), opts)
	if err != nil {
		return nil, FoldResult{}, err
	}
	testEval, err := eval.Test(l, d.Test, fmt.Sprintf("[fold %d] test", fold), opts)
	if err != nil {
		return nil, FoldResult{}, err
	}
	if !quiet {
		trainEval.LogScores()
		testEval.LogScores()
		testEval.LogDetails()
	}
	return l, FoldResult{
		Fold:   fold,
		Train:  trainEval.Statistics(),
		Test:   testEval.Statistics(),
		Tester: tester,
	}, nil
}
