package learner

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Bilinear scores x^T W y between the query vector x and the averaged
// entity vector y. It shares the update rule of Params.
type Bilinear struct {
	dim        int
	opts       ParamsOptions
	w          [][]float64
	sumSq      [][]float64
	sumGrad    [][]float64
	numUpdates int
}

func newMatrix(dim int) [][]float64 {
	m := make([][]float64, dim)
	for i := range m {
		m[i] = make([]float64, dim)
	}
	return m
}

// NewBilinear returns a dim x dim term.
func NewBilinear(dim int, opts ParamsOptions) (*Bilinear, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	b := &Bilinear{
		dim:     dim,
		opts:    opts,
		w:       newMatrix(dim),
		sumSq:   newMatrix(dim),
		sumGrad: newMatrix(dim),
	}
	var r *rand.Rand
	if opts.InitWeightsRandomly {
		r = rand.New(rand.NewPCG(opts.Seed, uint64(dim)))
	}
	for i := range b.w {
		for j := range b.w[i] {
			if r != nil {
				b.w[i][j] = 2*r.Float64() - 1
			} else {
				b.w[i][j] = opts.DefaultWeight
			}
		}
	}
	return b, nil
}

// Dim returns the vector dimension.
func (b *Bilinear) Dim() int { return b.dim }

func (b *Bilinear) usable(x, y []float64) bool {
	return len(x) == b.dim && len(y) == b.dim
}

// Score returns x^T W y, or 0 when either vector is missing.
func (b *Bilinear) Score(x, y []float64) float64 {
	if !b.usable(x, y) {
		return 0
	}
	sum := 0.0
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := b.w[i]
		for j, yj := range y {
			sum += xi * row[j] * yj
		}
	}
	return sum
}

// bilinearGradient accumulates outer products for one update.
type bilinearGradient [][]float64

func (b *Bilinear) newGradient() bilinearGradient {
	return newMatrix(b.dim)
}

// add accumulates factor * x y^T.
func (g bilinearGradient) add(x, y []float64, factor float64) {
	if len(x) != len(g) || len(y) != len(g) {
		return
	}
	for i, xi := range x {
		for j, yj := range y {
			g[i][j] += factor * xi * yj
		}
	}
}

// addL2 subtracts beta * W.
func (g bilinearGradient) addL2(b *Bilinear, beta float64) {
	if beta == 0 {
		return
	}
	for i := range g {
		for j := range g[i] {
			g[i][j] -= beta * b.w[i][j]
		}
	}
}

func (b *Bilinear) update(g bilinearGradient) error {
	b.numUpdates++
	for i := range g {
		for j, gij := range g[i] {
			if math.Abs(gij) < 1e-6 {
				continue
			}
			var step float64
			if b.opts.AdaptiveStepSize {
				b.sumSq[i][j] += gij * gij
				step = b.opts.InitStepSize / math.Sqrt(b.sumSq[i][j])
			} else {
				step = b.opts.InitStepSize / math.Pow(float64(b.numUpdates), b.opts.StepSizeReduction)
			}
			if math.IsNaN(step) || math.IsNaN(gij) {
				return fmt.Errorf("%w: word vector weight (%d, %d) gradient %v accumulator %v", ErrNaN, i, j, gij, b.sumSq[i][j])
			}
			if b.opts.DualAveraging {
				b.sumGrad[i][j] += gij
				b.w[i][j] = step * b.sumGrad[i][j]
			} else {
				b.w[i][j] += step * gij
			}
		}
	}
	return nil
}

func (b *Bilinear) applyL1(cutoff float64) {
	if cutoff <= 0 {
		return
	}
	for i := range b.w {
		for j, w := range b.w[i] {
			b.w[i][j] = L1Cut(w, cutoff)
		}
	}
}

// Write stores the nonzero entries as "i<TAB>j<TAB>w" lines.
func (b *Bilinear) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "dim\t%d\n", b.dim)
	for i := range b.w {
		for j, v := range b.w[i] {
			if v != 0 {
				fmt.Fprintf(bw, "%d\t%d\t%s\n", i, j, strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
	}
	return bw.Flush()
}

// ReadBilinear reads a term written by Write.
func ReadBilinear(r io.Reader, opts ParamsOptions) (*Bilinear, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("read word vector weights: empty input")
	}
	dimStr, ok := strings.CutPrefix(sc.Text(), "dim\t")
	if !ok {
		return nil, fmt.Errorf("read word vector weights: missing dim header")
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil {
		return nil, fmt.Errorf("read word vector weights: %w", err)
	}
	opts.InitWeightsRandomly = false
	opts.DefaultWeight = 0
	b, err := NewBilinear(dim, opts)
	if err != nil {
		return nil, err
	}
	line := 1
	for sc.Scan() {
		line++
		fields := strings.Split(sc.Text(), "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("read word vector weights: line %d: want 3 fields, got %d", line, len(fields))
		}
		i, err1 := strconv.Atoi(fields[0])
		j, err2 := strconv.Atoi(fields[1])
		v, err3 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil || err3 != nil || i < 0 || j < 0 || i >= dim || j >= dim {
			return nil, fmt.Errorf("read word vector weights: line %d: bad entry %q", line, sc.Text())
		}
		b.w[i][j] = v
	}
	return b, sc.Err()
}
