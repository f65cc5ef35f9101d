// Package config layers the settings of the extractor CLI: defaults, an
// optional YAML file, WEE_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	extractor "github.com/ppasupat/web-entity-extractor-ACL2014"
	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/fetch"
)

// EnvPrefix is the prefix of environment overrides: data-dir is read from
// WEE_DATA_DIR.
const EnvPrefix = "WEE"

// Config holds every setting a command may read. Keys match flag names.
type Config struct {
	DataDir     string   `mapstructure:"data-dir"`
	Datasets    []string `mapstructure:"dataset"`
	CacheDir    string   `mapstructure:"cache-dir"`
	Threads     int      `mapstructure:"threads"`
	MetricsFile string   `mapstructure:"metrics-file"`

	Learner       string  `mapstructure:"learner"`
	Iterations    int     `mapstructure:"iterations"`
	Beta          float64 `mapstructure:"beta"`
	Lambda        float64 `mapstructure:"lambda"`
	DualAveraging bool    `mapstructure:"dual-averaging"`
	BeamSize      int     `mapstructure:"beam-size"`
	WordVectors   string  `mapstructure:"word-vectors"`
	Advanced      bool    `mapstructure:"advanced"`

	TrainFrac   float64 `mapstructure:"train-frac"`
	TestFrac    float64 `mapstructure:"test-frac"`
	ZeroOneLoss bool    `mapstructure:"zero-one-loss"`
	Fuzzy       bool    `mapstructure:"fuzzy"`
	Shuffle     bool    `mapstructure:"shuffle"`

	Folds       int  `mapstructure:"folds"`
	DomainFolds bool `mapstructure:"domain-folds"`
	UseSeed     bool `mapstructure:"use-seed"`

	Render    bool          `mapstructure:"render"`
	Offline   bool          `mapstructure:"offline"`
	Freeze    bool          `mapstructure:"freeze"`
	Delay     time.Duration `mapstructure:"delay"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user-agent"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	tc := extractor.DefaultTrainConfig("data")
	fo := fetch.DefaultOptions()
	return Config{
		DataDir:     tc.DataDir,
		CacheDir:    "cache/pages",
		Learner:     tc.Model.Learner,
		Iterations:  tc.Model.MaxEnt.NumTrainIters,
		Beta:        tc.Model.MaxEnt.Beta,
		Lambda:      tc.Model.MaxEnt.Lambda,
		BeamSize:    tc.Model.Beam.Size,
		TrainFrac:   tc.Reader.TrainFrac,
		TestFrac:    tc.Reader.TestFrac,
		ZeroOneLoss: tc.Reader.ZeroOneLoss,
		Fuzzy:       tc.Reader.FuzzyMatching,
		Shuffle:     tc.Reader.Shuffle,
		Folds:       tc.Folds,
		Delay:       fo.Delay,
		Timeout:     fo.Timeout,
		UserAgent:   fo.UserAgent,
	}
}

// settings maps every key to its value in c.
func settings(c Config) map[string]any {
	return map[string]any{
		"data-dir":       c.DataDir,
		"dataset":        c.Datasets,
		"cache-dir":      c.CacheDir,
		"threads":        c.Threads,
		"metrics-file":   c.MetricsFile,
		"learner":        c.Learner,
		"iterations":     c.Iterations,
		"beta":           c.Beta,
		"lambda":         c.Lambda,
		"dual-averaging": c.DualAveraging,
		"beam-size":      c.BeamSize,
		"word-vectors":   c.WordVectors,
		"advanced":       c.Advanced,
		"train-frac":     c.TrainFrac,
		"test-frac":      c.TestFrac,
		"zero-one-loss":  c.ZeroOneLoss,
		"fuzzy":          c.Fuzzy,
		"shuffle":        c.Shuffle,
		"folds":          c.Folds,
		"domain-folds":   c.DomainFolds,
		"use-seed":       c.UseSeed,
		"render":         c.Render,
		"offline":        c.Offline,
		"freeze":         c.Freeze,
		"delay":          c.Delay,
		"timeout":        c.Timeout,
		"user-agent":     c.UserAgent,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for k, val := range settings(Default()) {
		v.SetDefault(k, val)
	}
	return v
}

// Load reads the YAML file at path (skipped when empty), the environment,
// and the flags that were set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}
	if flags != nil {
		keys := settings(Config{})
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if _, ok := keys[f.Name]; !ok {
				return
			}
			if err := v.BindPFlag(f.Name, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("config: %w", bindErr)
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges that the learners cannot recover from.
func (c *Config) Validate() error {
	var errs []error
	if c.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations must be positive, got %d", c.Iterations))
	}
	if c.Folds < 1 {
		errs = append(errs, fmt.Errorf("folds must be positive, got %d", c.Folds))
	}
	if c.TrainFrac < 0 || c.TrainFrac > 1 || c.TestFrac < 0 || c.TestFrac > 1 {
		errs = append(errs, fmt.Errorf("train-frac and test-frac must be in [0, 1]"))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative"))
	}
	return errors.Join(errs...)
}

// TrainConfig converts the settings for extractor.Train and Evaluate.
func (c *Config) TrainConfig() extractor.TrainConfig {
	tc := extractor.DefaultTrainConfig(c.DataDir)
	tc.Datasets = c.Datasets
	tc.Threads = c.Threads
	tc.Folds = c.Folds
	tc.DomainFolds = c.DomainFolds
	tc.UseSeed = c.UseSeed

	tc.Reader.TrainFrac = c.TrainFrac
	tc.Reader.TestFrac = c.TestFrac
	tc.Reader.ZeroOneLoss = c.ZeroOneLoss
	tc.Reader.FuzzyMatching = c.Fuzzy
	tc.Reader.Shuffle = c.Shuffle

	m := &tc.Model
	m.Learner = c.Learner
	m.MaxEnt.NumTrainIters = c.Iterations
	m.MaxEnt.Beta = c.Beta
	m.MaxEnt.Lambda = c.Lambda
	m.Params.DualAveraging = c.DualAveraging
	m.Beam.Size = c.BeamSize
	m.WordVectors = c.WordVectors
	m.Candidates.UseAdvancedTreeTraverser = c.Advanced
	if c.Advanced {
		m.Candidates.AllowWildcards = 1
		m.Candidates.AllowEndCuts = 1
	}
	return tc
}

// FetchOptions converts the settings for fetch.New.
func (c *Config) FetchOptions() fetch.Options {
	o := fetch.DefaultOptions()
	o.Render = c.Render
	o.Offline = c.Offline
	o.Freeze = c.Freeze
	o.Delay = c.Delay
	o.Timeout = c.Timeout
	if c.UserAgent != "" {
		o.UserAgent = c.UserAgent
	}
	return o
}
