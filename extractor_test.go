package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/storage"
)

const countriesHTML = `<html><body>
<ul><li>Greece</li><li>Germany</li><li>France</li><li>Spain</li><li>Italy</li></ul>
</body></html>`

var countries = []string{"Greece", "Germany", "France", "Spain", "Italy"}

// writeCountries stores n copies of the countries page and a dataset
// web.countries pointing at them.
func writeCountries(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	s := storage.NewStorage(dir)
	f := &storage.DatasetFile{Options: storage.FileOptions{UseHashcode: true}}
	for i := range n {
		hash := fmt.Sprintf("countries%d", i)
		require.NoError(t, s.WritePage(storage.PageRef{Hashcode: hash}, []byte(countriesHTML)))
		f.Data = append(f.Data, storage.Datum{
			Hashcode: hash,
			Query:    "european countries",
			URL:      fmt.Sprintf("http://www.site%d.org/countries", i),
			Entities: countries,
		})
	}
	require.NoError(t, s.WriteDataset("web", "countries", f))
	return dir
}

func testConfig(t *testing.T, n int) TrainConfig {
	t.Helper()
	cfg := DefaultTrainConfig(writeCountries(t, n))
	cfg.Datasets = []string{"web.countries"}
	cfg.Reader.TrainFrac = 1
	cfg.Reader.TestFrac = 1
	cfg.Model.MaxEnt.NumTrainIters = 1
	return cfg
}

func TestTrainEndToEnd(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.SavePath = filepath.Join(t.TempDir(), "model")
	model, report, err := Train(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, model)

	require.Len(t, report.Folds, 1)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Folds[0].Train.NumSuccess)
	assert.Equal(t, 1.0, report.Test.Accuracy.Mean)
	assert.Equal(t, 1.0, report.Folds[0].Test.AccuracyAtK[1])
	_, _, ok := report.Folds[0].Tester.Last()
	assert.True(t, ok)

	preds, err := model.Extract("european countries", []byte(countriesHTML))
	require.NoError(t, err)
	require.NotEmpty(t, preds)
	assert.Equal(t, 1, preds[0].Rank)
	assert.Equal(t, countries, preds[0].Entities)

	for _, name := range []string{ConfigFile, ParamsFile} {
		_, err := os.Stat(filepath.Join(cfg.SavePath, name))
		assert.NoError(t, err, name)
	}
	loaded, err := LoadModel(cfg.SavePath)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, loaded.Config.RunID)
	assert.Equal(t, cfg.Model.MaxEnt, loaded.Config.MaxEnt)
	again, err := loaded.Extract("european countries", []byte(countriesHTML))
	require.NoError(t, err)
	assert.Equal(t, preds[0].Entities, again[0].Entities)
	assert.InDelta(t, preds[0].Score, again[0].Score, 1e-9)
}

func TestEvaluateFromLoadedModel(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.SavePath = filepath.Join(t.TempDir(), "model")
	_, _, err := Train(context.Background(), cfg)
	require.NoError(t, err)

	cfg.LoadPath, cfg.SavePath = cfg.SavePath, ""
	report, err := Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Test.Accuracy.Mean)
}

func TestEvaluateFolds(t *testing.T) {
	cfg := testConfig(t, 4)
	cfg.Reader.TrainFrac = 0.5
	cfg.Reader.TestFrac = 0.5
	cfg.Folds = 3
	report, err := Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, report.Folds, 3)
	assert.Equal(t, 3, report.Test.Folds)
	for i, f := range report.Folds {
		assert.Equal(t, i, f.Fold)
		assert.Equal(t, 2, f.Test.NumExamples)
	}
	assert.NotNil(t, report.Model)

	cfg.DomainFolds = true
	cfg.Folds = 2
	report, err = Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	for _, f := range report.Folds {
		assert.Positive(t, f.Test.NumExamples)
	}
}

func TestEvaluateErrors(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Folds = 2
	cfg.SavePath = t.TempDir()
	_, err := Evaluate(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrFoldsWithModel)

	cfg = testConfig(t, 1)
	cfg.Datasets = nil
	_, err = Evaluate(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrNoDataset)

	cfg = testConfig(t, 1)
	cfg.Model.Learner = "svm"
	_, err = Evaluate(context.Background(), cfg)
	assert.Error(t, err)

	_, err = LoadModel(t.TempDir())
	assert.Error(t, err)

	_, err = (&Model{}).Extract("q", []byte(countriesHTML))
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestBaselineModel(t *testing.T) {
	cfg := testConfig(t, 2)
	cfg.Model.Learner = "baseline"
	model, _, err := Train(context.Background(), cfg)
	require.NoError(t, err)
	preds, err := model.Extract("european countries", []byte(countriesHTML))
	require.NoError(t, err)
	require.NotEmpty(t, preds)
	assert.Equal(t, countries, preds[0].Entities)
}
