package eval

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/learner"
)

// IterativeTester evaluates a learner on both lists of a dataset after every
// training iteration. It implements learner.Tester.
type IterativeTester struct {
	learner learner.Learner
	data    *dataset.Dataset
	opts    Options

	// Quiet suppresses per-iteration score logs.
	Quiet bool
	// F1AgainstAnswer reports F1 against the answer key instead of against
	// the best candidate in the summary.
	F1AgainstAnswer bool

	Train []Statistics
	Test  []Statistics
}

// NewIterativeTester creates a tester for l on d.
func NewIterativeTester(l learner.Learner, d *dataset.Dataset, opts Options) *IterativeTester {
	return &IterativeTester{learner: l, data: d, opts: opts}
}

// Run evaluates the current model.
func (t *IterativeTester) Run(iteration int) error {
	train, err := Test(t.learner, t.data.Train, fmt.Sprintf("[iteration %d] train", iteration), t.opts)
	if err != nil {
		return err
	}
	test, err := Test(t.learner, t.data.Test, fmt.Sprintf("[iteration %d] test", iteration), t.opts)
	if err != nil {
		return err
	}
	if !t.Quiet {
		train.LogScores()
		test.LogScores()
	}
	t.Train = append(t.Train, train.Statistics())
	t.Test = append(t.Test, test.Statistics())
	return nil
}

// Last returns the statistics of the latest run.
func (t *IterativeTester) Last() (train, test Statistics, ok bool) {
	if len(t.Train) == 0 {
		return Statistics{}, Statistics{}, false
	}
	return t.Train[len(t.Train)-1], t.Test[len(t.Test)-1], true
}

// WriteSummary writes one row per iteration: accuracy, oracle and average
// F1 on train, then on test, in percent.
func (t *IterativeTester) WriteSummary(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%7s | %7s %7s %7s | %7s %7s %7s\n",
		"iter", "tracc", "trora", "traf1", "tsacc", "tsora", "tsaf1"); err != nil {
		return err
	}
	for i := range t.Train {
		tr, ts := t.Train[i], t.Test[i]
		trF1, tsF1 := tr.AvgF1OnBest, ts.AvgF1OnBest
		if t.F1AgainstAnswer {
			trF1, tsF1 = tr.AvgF1, ts.AvgF1
		}
		if _, err := fmt.Fprintf(w, "%7d | %7.2f %7.2f %7.2f | %7.2f %7.2f %7.2f\n", i+1,
			100*tr.Accuracy, 100*tr.Oracle, 100*trF1,
			100*ts.Accuracy, 100*ts.Oracle, 100*tsF1); err != nil {
			return err
		}
	}
	return nil
}

// Summarize logs the table of WriteSummary.
func (t *IterativeTester) Summarize() {
	var sb strings.Builder
	_ = t.WriteSummary(&sb)
	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		slog.Info(line)
	}
}
