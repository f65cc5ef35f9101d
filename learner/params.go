package learner

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrNaN is returned when an update produces a NaN step.
	ErrNaN = errors.New("learner: NaN in parameter update")
	// ErrDualAveraging rejects dual averaging with a decaying fixed step.
	ErrDualAveraging = errors.New("learner: dual averaging needs an adaptive step size or no step size reduction")
)

// ParamsOptions controls initialization and the update rule.
type ParamsOptions struct {
	// Weight of features never updated.
	DefaultWeight float64
	// Draw unseen weights uniformly from [-1, 1). The draw depends only on
	// Seed and the feature key, and is kept once made.
	InitWeightsRandomly bool
	Seed                uint64
	InitStepSize        float64
	// Exponent of the update count dividing a fixed step size.
	StepSizeReduction float64
	// AdaGrad: divide the step by the root of the summed squared gradients.
	AdaptiveStepSize bool
	// Set weights from the summed gradients instead of adding each step.
	DualAveraging bool
}

// DefaultParamsOptions returns AdaGrad with a unit step.
func DefaultParamsOptions() ParamsOptions {
	return ParamsOptions{
		Seed:             1,
		InitStepSize:     1,
		AdaptiveStepSize: true,
	}
}

func (o ParamsOptions) Validate() error {
	if o.DualAveraging && !o.AdaptiveStepSize && o.StepSizeReduction != 0 {
		return ErrDualAveraging
	}
	return nil
}

// Params is a sparse weight table updated by gradient steps.
type Params struct {
	opts       ParamsOptions
	weights    map[string]float64
	sumSq      map[string]float64
	sumGrad    map[string]float64
	numUpdates int
}

// NewParams returns an empty table.
func NewParams(opts ParamsOptions) (*Params, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Params{
		opts:    opts,
		weights: make(map[string]float64),
		sumSq:   make(map[string]float64),
		sumGrad: make(map[string]float64),
	}, nil
}

// Weight returns the weight of key.
func (p *Params) Weight(key string) float64 {
	if w, ok := p.weights[key]; ok {
		return w
	}
	if !p.opts.InitWeightsRandomly {
		return p.opts.DefaultWeight
	}
	w := p.randomWeight(key)
	p.weights[key] = w
	return w
}

func (p *Params) randomWeight(key string) float64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	r := rand.New(rand.NewPCG(p.opts.Seed, h.Sum64()))
	return 2*r.Float64() - 1
}

// Len returns the number of stored weights.
func (p *Params) Len() int { return len(p.weights) }

// NumUpdates returns the number of Update calls.
func (p *Params) NumUpdates() int { return p.numUpdates }

// Update takes one ascent step along grad. Components below 1e-6 in
// magnitude are skipped.
func (p *Params) Update(grad map[string]float64) error {
	p.numUpdates++
	for k, g := range grad {
		if math.Abs(g) < 1e-6 {
			continue
		}
		var step float64
		if p.opts.AdaptiveStepSize {
			p.sumSq[k] += g * g
			step = p.opts.InitStepSize / math.Sqrt(p.sumSq[k])
		} else {
			step = p.opts.InitStepSize / math.Pow(float64(p.numUpdates), p.opts.StepSizeReduction)
		}
		if math.IsNaN(step) || math.IsNaN(g) {
			return fmt.Errorf("%w: feature %q gradient %v accumulator %v", ErrNaN, k, g, p.sumSq[k])
		}
		if p.opts.DualAveraging {
			p.sumGrad[k] += g
			p.weights[k] = step * p.sumGrad[k]
		} else {
			p.weights[k] = p.Weight(k) + step*g
		}
	}
	return nil
}

// L1Cut shrinks w toward zero by cutoff, stopping at zero.
func L1Cut(w, cutoff float64) float64 {
	switch {
	case w > cutoff:
		return w - cutoff
	case w < -cutoff:
		return w + cutoff
	}
	return 0
}

// ApplyL1 shrinks every stored weight by cutoff.
func (p *Params) ApplyL1(cutoff float64) {
	if cutoff <= 0 {
		return
	}
	for k, w := range p.weights {
		p.weights[k] = L1Cut(w, cutoff)
	}
}

// Prune drops the weights whose magnitude is below threshold and returns
// how many were dropped.
func (p *Params) Prune(threshold float64) int {
	n := 0
	for k, w := range p.weights {
		if math.Abs(w) < threshold {
			delete(p.weights, k)
			delete(p.sumSq, k)
			delete(p.sumGrad, k)
			n++
		}
	}
	return n
}

// Top returns the n weights of largest magnitude.
func (p *Params) Top(n int) []Weighted {
	all := sortedWeights(p.weights)
	slices.SortStableFunc(all, func(a, b Weighted) int {
		return cmp.Compare(math.Abs(b.Value), math.Abs(a.Value))
	})
	return all[:min(n, len(all))]
}

// Weighted is a key with its value.
type Weighted struct {
	Key   string
	Value float64
}

// sortedWeights orders by descending value, then key.
func sortedWeights(m map[string]float64) []Weighted {
	out := make([]Weighted, 0, len(m))
	for k, v := range m {
		out = append(out, Weighted{k, v})
	}
	slices.SortFunc(out, func(a, b Weighted) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out
}

func writeTSV(w io.Writer, m map[string]float64) error {
	bw := bufio.NewWriter(w)
	for _, e := range sortedWeights(m) {
		bw.WriteString(e.Key)
		bw.WriteByte('\t')
		bw.WriteString(strconv.FormatFloat(e.Value, 'g', -1, 64))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func readTSV(r io.Reader) (map[string]float64, error) {
	m := make(map[string]float64)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		i := strings.LastIndexByte(text, '\t')
		if i < 0 {
			return nil, fmt.Errorf("line %d: missing tab", line)
		}
		v, err := strconv.ParseFloat(text[i+1:], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		m[text[:i]] = v
	}
	return m, sc.Err()
}

// Write stores the weights as "key<TAB>value" lines, largest first.
func (p *Params) Write(w io.Writer) error {
	return writeTSV(w, p.weights)
}

// Read replaces the weights with the ones written by Write.
func (p *Params) Read(r io.Reader) error {
	m, err := readTSV(r)
	if err != nil {
		return fmt.Errorf("read params: %w", err)
	}
	p.weights = m
	return nil
}

// Save writes the weights to path.
func (p *Params) Save(path string) error {
	return saveFile(path, p.Write)
}

// Load reads the weights from path.
func (p *Params) Load(path string) error {
	return loadFile(path, p.Read)
}

func saveFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f)
}
