package eval

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Statistics are the scores of one evaluation. Rates are in [0, 1] and are
// 0 when their denominator is.
type Statistics struct {
	NumExamples   int
	NumSuccess    int
	NumNormalFail int
	NumSuperFail  int
	NumFound      int

	Oracle        float64
	Accuracy      float64
	AccuracyFound float64
	AvgF1         float64
	AvgF1OnBest   float64
	// AccuracyAtK[k] for k in [0, MaxK]; AccuracyAtK[0] is 0.
	AccuracyAtK []float64
}

// MeanSD is a mean with its standard deviation over folds.
type MeanSD struct {
	Mean, SD float64
}

func (m MeanSD) String() string {
	return fmt.Sprintf("%.3f%% +- %.3f%%", 100*m.Mean, 100*m.SD)
}

// meanSD divides by n, not n-1.
func meanSD(xs []float64) MeanSD {
	if len(xs) == 0 {
		return MeanSD{}
	}
	n := float64(len(xs))
	sum, sumSq := 0.0, 0.0
	for _, x := range xs {
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	return MeanSD{Mean: mean, SD: math.Sqrt(max(0, sumSq/n-mean*mean))}
}

// Summary aggregates Statistics over folds.
type Summary struct {
	Name          string
	Folds         int
	Oracle        MeanSD
	Accuracy      MeanSD
	AccuracyFound MeanSD
	AvgF1         MeanSD
	AvgF1OnBest   MeanSD
	AccuracyAtK   []MeanSD
}

// Summarize aggregates per-fold statistics.
func Summarize(name string, stats []Statistics) Summary {
	pick := func(f func(Statistics) float64) MeanSD {
		xs := make([]float64, len(stats))
		for i, s := range stats {
			xs[i] = f(s)
		}
		return meanSD(xs)
	}
	s := Summary{
		Name:          name,
		Folds:         len(stats),
		Oracle:        pick(func(s Statistics) float64 { return s.Oracle }),
		Accuracy:      pick(func(s Statistics) float64 { return s.Accuracy }),
		AccuracyFound: pick(func(s Statistics) float64 { return s.AccuracyFound }),
		AvgF1:         pick(func(s Statistics) float64 { return s.AvgF1 }),
		AvgF1OnBest:   pick(func(s Statistics) float64 { return s.AvgF1OnBest }),
		AccuracyAtK:   make([]MeanSD, MaxK+1),
	}
	for k := range s.AccuracyAtK {
		s.AccuracyAtK[k] = pick(func(s Statistics) float64 {
			if k < len(s.AccuracyAtK) {
				return s.AccuracyAtK[k]
			}
			return 0
		})
	}
	return s
}

// Log writes the summary at info level.
func (s Summary) Log() {
	means := make([]float64, MaxK)
	sds := make([]float64, MaxK)
	for k := 1; k <= MaxK; k++ {
		means[k-1] = s.AccuracyAtK[k].Mean
		sds[k-1] = s.AccuracyAtK[k].SD
	}
	slog.Info("Summary", "suite", s.Name, "folds", s.Folds,
		"oracle", s.Oracle.String(),
		"accuracy", s.Accuracy.String(),
		"accuracy_found", s.AccuracyFound.String(),
		"avg_f1", s.AvgF1.String(),
		"avg_f1_best", s.AvgF1OnBest.String(),
		"accuracy_at_k", formatPercents(means),
		"accuracy_at_k_sd", formatPercents(sds))
}

func percent(x float64) string {
	return fmt.Sprintf("%.3f%%", 100*x)
}

func formatPercents(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%.2f", 100*x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
