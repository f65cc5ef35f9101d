// Package extractor finds the list of entities a query asks for on a web
// page.
//
// A page is turned into node trees, every repeated region of the trees
// reachable by a selection path becomes a candidate list, and a trained
// model ranks the candidates.
//
//	m, _ := extractor.LoadModel("models/maxent")
//	preds, _ := m.Extract("european countries", html)
//	for _, p := range preds[:3] {
//	    fmt.Println(p.Score, p.Entities) // [Greece Germany France ...]
//	}
package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppasupat/web-entity-extractor-ACL2014/candidate"
	"github.com/ppasupat/web-entity-extractor-ACL2014/catalog"
	"github.com/ppasupat/web-entity-extractor-ACL2014/dataset"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
	"github.com/ppasupat/web-entity-extractor-ACL2014/learner"
	"github.com/ppasupat/web-entity-extractor-ACL2014/reward"
	"github.com/ppasupat/web-entity-extractor-ACL2014/tree"
	"github.com/ppasupat/web-entity-extractor-ACL2014/wordvec"
)

// Files of a model directory.
const (
	ConfigFile = "config.yaml"
	ParamsFile = "params"
)

// ErrNoModel is returned when using a Model that was neither trained nor
// loaded.
var ErrNoModel = errors.New("extractor: model not initialized")

// ModelConfig is everything needed to rebuild a trained model. It is saved
// as config.yaml next to the weights.
type ModelConfig struct {
	RunID   string    `yaml:"run_id,omitempty"`
	Created time.Time `yaml:"created,omitempty"`
	Learner string    `yaml:"learner"`

	Tree       tree.Options            `yaml:"tree"`
	Candidates candidate.Options       `yaml:"candidates"`
	Catalog    catalog.Options         `yaml:"catalog"`
	MaxEnt     learner.MaxEntOptions   `yaml:"maxent"`
	Params     learner.ParamsOptions   `yaml:"params"`
	Beam       learner.BeamOptions     `yaml:"beam"`
	Baseline   learner.BaselineOptions `yaml:"baseline"`
	// Word vector file enabling the bilinear query term.
	WordVectors string `yaml:"word_vectors,omitempty"`
}

// DefaultModelConfig returns the maxent model with default options.
func DefaultModelConfig() ModelConfig {
	lc := learner.DefaultConfig()
	return ModelConfig{
		Learner:    "maxent",
		Tree:       tree.DefaultOptions(),
		Candidates: candidate.DefaultOptions(),
		Catalog:    catalog.DefaultOptions(),
		MaxEnt:     lc.MaxEnt,
		Params:     lc.Params,
		Beam:       lc.Beam,
		Baseline:   lc.Baseline,
	}
}

// ReadModelConfig reads config.yaml of a model directory.
func ReadModelConfig(dir string) (ModelConfig, error) {
	cfg := DefaultModelConfig()
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return cfg, fmt.Errorf("extractor: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("extractor: %s: %w", ConfigFile, err)
	}
	return cfg, nil
}

// resources are built once from a ModelConfig and shared by every learner.
type resources struct {
	cfg     ModelConfig
	catalog *catalog.Catalog
	vectors *wordvec.Table
}

func (c ModelConfig) resources() (*resources, error) {
	cat, err := catalog.New(c.Catalog)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	r := &resources{cfg: c, catalog: cat}
	if c.WordVectors != "" {
		if r.vectors, err = wordvec.Load(c.WordVectors); err != nil {
			return nil, fmt.Errorf("extractor: %w", err)
		}
	}
	return r, nil
}

func (r *resources) learner(quiet bool) (learner.Learner, error) {
	lc := learner.Config{
		MaxEnt:     r.cfg.MaxEnt,
		Params:     r.cfg.Params,
		Beam:       r.cfg.Beam,
		Baseline:   r.cfg.Baseline,
		Candidates: r.cfg.Candidates,
		Populator:  r.catalog,
		Quiet:      quiet,
	}
	if r.vectors != nil {
		lc.WordVectors = r.vectors
	}
	l, err := learner.New(r.cfg.Learner, lc)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	return l, nil
}

func (r *resources) extractor(src dataset.PageSource, threads int) *dataset.Extractor {
	return &dataset.Extractor{
		Source:     src,
		Tree:       r.cfg.Tree,
		Candidates: r.cfg.Candidates,
		Populator:  r.catalog,
		Threads:    threads,
	}
}

// Model is a trained learner with the options it was trained with.
type Model struct {
	Config    ModelConfig
	learner   learner.Learner
	extractor *dataset.Extractor
}

// LoadModel loads a model directory written by Save.
func LoadModel(dir string) (*Model, error) {
	cfg, err := ReadModelConfig(dir)
	if err != nil {
		return nil, err
	}
	res, err := cfg.resources()
	if err != nil {
		return nil, err
	}
	l, err := res.learner(false)
	if err != nil {
		return nil, err
	}
	if err := l.Load(filepath.Join(dir, ParamsFile)); err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	return &Model{Config: cfg, learner: l, extractor: res.extractor(nil, 1)}, nil
}

// Save writes config.yaml and the weights into dir.
func (m *Model) Save(dir string) error {
	if m.learner == nil {
		return ErrNoModel
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	data, err := yaml.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), data, 0o644); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	if err := m.learner.Save(filepath.Join(dir, ParamsFile)); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	return nil
}

// Learner returns the underlying learner.
func (m *Model) Learner() learner.Learner { return m.learner }

// Prediction is one ranked entity list.
type Prediction struct {
	Rank     int      `json:"rank"`
	Score    float64  `json:"score"`
	Path     string   `json:"path"`
	Entities []string `json:"entities"`
}

// Extract ranks the entity lists of page for phrase. Lists are distinct:
// a list found by several paths is reported once, at its best rank.
func (m *Model) Extract(phrase string, page []byte) ([]Prediction, error) {
	if m.learner == nil || m.extractor == nil {
		return nil, ErrNoModel
	}
	ex := dataset.NewExample(phrase, storage.PageRef{}, nil)
	if err := m.extractor.ExtractHTML(ex, page); err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	ranked, err := m.learner.Rank(ex)
	if err != nil {
		return nil, fmt.Errorf("extractor: %w", err)
	}
	seen := make(map[string]bool)
	out := make([]Prediction, 0, len(ranked))
	for _, s := range ranked {
		entities := s.Candidate.PredictedEntities()
		key := reward.ListKey(entities)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Prediction{
			Rank:     len(out) + 1,
			Score:    s.Score,
			Path:     s.Candidate.Pattern(),
			Entities: entities,
		})
	}
	return out, nil
}
