package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flagSet(d Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("data-dir", d.DataDir, "")
	fs.Int("folds", d.Folds, "")
	fs.StringSlice("dataset", nil, "")
	fs.Duration("delay", d.Delay, "")
	fs.String("model", "", "not a config key")
	return fs
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, "maxent", cfg.Learner)
	assert.Equal(t, 1, cfg.Folds)
}

func TestLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extractor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data-dir: /srv/data
learner: beam
folds: 5
delay: 2s
dataset: [web.dev]
`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/data", cfg.DataDir)
	assert.Equal(t, "beam", cfg.Learner)
	assert.Equal(t, 5, cfg.Folds)
	assert.Equal(t, 2*time.Second, cfg.Delay)
	assert.Equal(t, []string{"web.dev"}, cfg.Datasets)

	t.Setenv("WEE_LEARNER", "baseline")
	t.Setenv("WEE_DATA_DIR", "/env/data")
	fs := flagSet(Default())
	require.NoError(t, fs.Parse([]string{"--data-dir", "/flag/data", "--model", "m"}))
	cfg, err = Load(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "/flag/data", cfg.DataDir, "flags win")
	assert.Equal(t, "baseline", cfg.Learner, "env beats the file")
	assert.Equal(t, 5, cfg.Folds, "unset flags keep the file value")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	t.Setenv("WEE_FOLDS", "0")
	_, err = Load("", nil)
	assert.ErrorContains(t, err, "folds must be positive")
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Datasets = []string{"web.dev"}
	cfg.Learner = "beam"
	cfg.BeamSize = 20
	cfg.Advanced = true
	cfg.Folds = 3

	tc := cfg.TrainConfig()
	assert.Equal(t, []string{"web.dev"}, tc.Datasets)
	assert.Equal(t, "beam", tc.Model.Learner)
	assert.Equal(t, 20, tc.Model.Beam.Size)
	assert.True(t, tc.Model.Candidates.UseAdvancedTreeTraverser)
	assert.Equal(t, 3, tc.Folds)

	cfg.Render = true
	cfg.UserAgent = ""
	fo := cfg.FetchOptions()
	assert.True(t, fo.Render)
	assert.NotEmpty(t, fo.UserAgent)
}
