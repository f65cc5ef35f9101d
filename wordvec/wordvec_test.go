package wordvec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const table = `3 2
<unk> 0 0
red 1 0
blue 0 1
`

func TestRead(t *testing.T) {
	tab, err := Read(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, 2, tab.Dim())
	assert.Equal(t, 3, tab.Len())
	assert.Equal(t, []float64{1, 0}, tab.Vector("red"))
	assert.Equal(t, []float64{0, 0}, tab.Vector("green"), "unknown words use row 0")

	tab.UnknownIndex = -1
	assert.Nil(t, tab.Vector("green"))
}

func TestReadErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"2\n",
		"2 2\nred 1 0\n",
		"1 2\nred 1\n",
		"1 2\nred 1 x\n",
	} {
		_, err := Read(strings.NewReader(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.txt")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))
	tab, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, tab.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestAverage(t *testing.T) {
	tab := New([]string{"red", "blue"}, [][]float64{{1, 0}, {0, 1}})
	tab.UnknownIndex = -1

	assert.Equal(t, []float64{0.5, 0.5}, tab.Average([]string{"Red", "blue"}))
	assert.Equal(t, []float64{1, 0}, tab.Average([]string{"red green"}))
	assert.Nil(t, tab.Average([]string{"green"}))
	assert.Nil(t, tab.Average(nil))
}
