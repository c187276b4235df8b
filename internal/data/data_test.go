// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// write creates a file with the given content in a temporary directory.
func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCountLines(t *testing.T) {
	dir := t.TempDir()
	for content, want := range map[string]int{
		"":             0,
		"1:1":          1,
		"1:1\n":        1,
		"1:1\n2:2":     2,
		"1:1\n\n2:2\n": 3,
		"\n\n":         2,
	} {
		path := write(t, dir, "count", content)
		got, err := CountLines(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%q", content)
	}

	_, err := CountLines(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadSparse(t *testing.T) {
	path := write(t, t.TempDir(), "samples", "+1 1:0.5 3:2\n\n2:-1\n-1 4:1e-3")

	matrix, err := ReadSparse(path, 4)
	require.NoError(t, err)
	require.Equal(t, 4, matrix.Rows())
	assert.Equal(t, 4, matrix.Dimension())

	indices, values := matrix.Row(0)
	assert.Equal(t, []int{0, 2}, indices)
	assert.Equal(t, []float64{.5, 2}, values)

	indices, values = matrix.Row(1)
	assert.Empty(t, indices)
	assert.Empty(t, values)

	indices, values = matrix.Row(2)
	assert.Equal(t, []int{1}, indices)
	assert.Equal(t, []float64{-1}, values)

	indices, values = matrix.Row(3)
	assert.Equal(t, []int{3}, indices)
	assert.Equal(t, []float64{1e-3}, values)

	lines, err := CountLines(path)
	require.NoError(t, err)
	assert.Equal(t, lines, matrix.Rows())
}

func TestReadSparseRejectsMalformedInput(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"range":  "5:1\n",
		"zero":   "0:1\n",
		"index":  "a:1\n",
		"value":  "1:b\n",
		"label":  "1:1 label\n",
		"colons": "1:1:1\n",
	} {
		_, err := ReadSparse(write(t, dir, name, content), 4)
		assert.Error(t, err, name)
	}

	_, err := ReadSparse(filepath.Join(dir, "missing"), 4)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLayout(t *testing.T) {
	layout := Layout{Groups: []Group{{Positives: 2, Negatives: 1}, {Positives: 0, Negatives: 3}, {Positives: 1, Negatives: 0}}}

	assert.Equal(t, 7, layout.Instances())
	assert.Equal(t, 3, layout.Positives())
	assert.Equal(t, 4, layout.Negatives())
	assert.Equal(t, 0, layout.Offset(0))
	assert.Equal(t, 3, layout.Offset(1))
	assert.Equal(t, 6, layout.Offset(2))
	assert.Equal(t, []float64{1, 1, -1, -1, -1, -1, 1}, layout.Labels())
}

func TestTableScatter(t *testing.T) {
	table := NewTable(3, 4)
	require.NoError(t, table.Scatter(1, []float64{1, 2, 3}))
	require.NoError(t, table.Scatter(0, []float64{4, 5, 6}))

	assert.Equal(t, []float64{4, 5, 6}, table.Column(0))
	assert.Equal(t, []float64{1, 2, 3}, table.Column(1))
	assert.Equal(t, []float64{0, 0, 0}, table.Column(3))
	assert.Equal(t, []float64{5, 2, 0, 0}, table.Row(1))
	assert.Equal(t, 6., table.At(2, 0))

	table.Set(2, 3, 7)
	assert.Equal(t, 7., table.Column(3)[2])
}

func TestTableScatterRejectsMisalignedScores(t *testing.T) {
	table := NewTable(3, 2)

	err := table.Scatter(0, []float64{1, 2})
	var protocolErr *ProtocolError
	require.True(t, errors.As(err, &protocolErr))
	assert.Equal(t, ProtocolError{Column: 0, Want: 3, Got: 2}, *protocolErr)
	assert.Equal(t, []float64{0, 0, 0}, table.Column(0))

	assert.Error(t, table.Scatter(2, []float64{1, 2, 3}))
	assert.Error(t, table.Scatter(-1, []float64{1, 2, 3}))
}

// rowScorer scores each row with the sum of its values plus an offset.
type rowScorer float64

func (s rowScorer) Score(instances *Sparse) []float64 {
	scores := make([]float64, 0, instances.Rows())
	for row := 0; row < instances.Rows(); row++ {
		sum := float64(s)
		_, values := instances.Row(row)
		for _, value := range values {
			sum += value
		}
		scores = append(scores, sum)
	}
	return scores
}

func TestShardsScoreFollowsGlobalRowOrder(t *testing.T) {
	dir := t.TempDir()
	// Each row holds a single value identifying its group, polarity and line.
	for group, counts := range []Group{{Positives: 2, Negatives: 1}, {Positives: 1, Negatives: 2}} {
		content := ""
		for line := 0; line < counts.Positives; line++ {
			content += fmt.Sprintf("1:%d\n", 100*group+line)
		}
		write(t, dir, fmt.Sprintf("%d/pos", group), content)
		content = ""
		for line := 0; line < counts.Negatives; line++ {
			content += fmt.Sprintf("1:%d\n", 100*group+50+line)
		}
		write(t, dir, fmt.Sprintf("%d/neg", group), content)
	}
	path := func(group int, positive bool) string {
		if positive {
			return filepath.Join(dir, fmt.Sprint(group), "pos")
		}
		return filepath.Join(dir, fmt.Sprint(group), "neg")
	}

	shards, err := LoadShards(context.Background(), 2, 1, path)
	require.NoError(t, err)
	assert.Equal(t, Layout{Groups: []Group{{2, 1}, {1, 2}}}, shards.Layout())
	assert.Equal(t, []float64{0, 1, 50, 100, 150, 151}, shards.Score(rowScorer(0)))

	// Scoring is a pure function of the scorer and the shards.
	again, err := LoadShards(context.Background(), 2, 1, path)
	require.NoError(t, err)
	assert.Equal(t, shards.Score(rowScorer(.5)), again.Score(rowScorer(.5)))
}

func TestLoadShardsFailsOnMissingFile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "0/pos", "1:1\n")

	_, err := LoadShards(context.Background(), 1, 1, func(group int, positive bool) string {
		if positive {
			return filepath.Join(dir, "0/pos")
		}
		return filepath.Join(dir, "0/neg")
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
