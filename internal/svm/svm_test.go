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

package svm

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/9rum/ensemble/internal/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

func sparse(t *testing.T, dimension int, rows ...map[int]float64) *data.Sparse {
	t.Helper()
	matrix := data.NewSparse(dimension)
	for _, row := range rows {
		var (
			indices []int
			values  []float64
		)
		for index := 0; index < dimension; index++ {
			if value, ok := row[index]; ok {
				indices = append(indices, index)
				values = append(values, value)
			}
		}
		require.NoError(t, matrix.Append(indices, values))
	}
	return matrix
}

func TestRBFScore(t *testing.T) {
	model := &RBF{Gamma: 1, Bias: .5, Weights: []float64{2}, Vectors: [][]float64{{1, 0}}}
	require.NoError(t, model.Validate())

	scores := model.Score(sparse(t, 3, map[int]float64{0: 1}, map[int]float64{}, map[int]float64{1: 1}, map[int]float64{2: 2}))
	want := []float64{2.5, .5 + 2*math.Exp(-1), .5 + 2*math.Exp(-2), .5 + 2*math.Exp(-5)}
	require.Len(t, scores, len(want))
	for index := range want {
		assert.InDelta(t, want[index], scores[index], 1e-12, "row %d", index)
	}

	assert.Empty(t, model.Score(data.NewSparse(3)))
}

func TestRBFRoundTrip(t *testing.T) {
	model := &RBF{Gamma: .25, Bias: -1, Weights: []float64{1, -2}, Vectors: [][]float64{{1, 2}, {0, 0, 3}}}
	path := filepath.Join(t.TempDir(), "3", "0", "model")
	require.NoError(t, model.Dump(path))

	loaded, err := LoadRBF(path)
	require.NoError(t, err)
	assert.Equal(t, model, loaded)

	b, err := loaded.MarshalBinary()
	require.NoError(t, err)
	decoded, err := UnmarshalRBF(b)
	require.NoError(t, err)
	assert.Equal(t, model, decoded)
}

func TestRBFRejectsInvalidModels(t *testing.T) {
	for name, model := range map[string]*RBF{
		"gamma":   {Gamma: 0, Weights: []float64{1}, Vectors: [][]float64{{1}}},
		"nan":     {Gamma: math.NaN(), Weights: []float64{1}, Vectors: [][]float64{{1}}},
		"lengths": {Gamma: 1, Weights: []float64{1, 2}, Vectors: [][]float64{{1}}},
		"empty":   {Gamma: 1},
	} {
		assert.Error(t, model.Validate(), name)
	}

	_, err := UnmarshalRBF([]byte("gamma: [unterminated"))
	assert.Error(t, err)

	_, err = LoadRBF(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// separable returns a table whose first column separates the classes.
func separable() (*data.Table, []float64) {
	scores := []float64{2, 1.5, 3, -1, -2, -.5}
	labels := []float64{1, 1, 1, -1, -1, -1}
	table := data.NewTable(len(scores), 2)
	if err := table.Scatter(0, scores); err != nil {
		panic(err)
	}
	return table, labels
}

func TestTrainerSeparatesClasses(t *testing.T) {
	results, labels := separable()
	supportVectors := data.NewTable(results.Rows(), results.Cols())

	model, err := Trainer{}.Train(TrainInput{
		Negatives:      3,
		Weight:         10,
		Results:        results,
		SupportVectors: supportVectors,
		Labels:         labels,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, model.Components)
	assert.Len(t, model.Weights, 1)
	assert.Greater(t, model.Weights[0], 0.)

	for row, label := range labels {
		assert.Equal(t, 1., results.At(row, 1), "bias feature of row %d", row)
		assert.Greater(t, label*model.Decision(results.Row(row)), 0., "row %d", row)
	}

	// Rows far outside the margin stay neutral.
	assert.Equal(t, []float64{0, 0}, supportVectors.Row(2))
	assert.Equal(t, []float64{0, 0}, supportVectors.Row(4))
}

func TestTrainerDump(t *testing.T) {
	results, labels := separable()
	model, err := Trainer{MaxIterations: 5}.Train(TrainInput{
		Negatives:      3,
		Weight:         1,
		Results:        results,
		SupportVectors: data.NewTable(results.Rows(), results.Cols()),
		Labels:         labels,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, model.Iterations, 5)

	path := filepath.Join(t.TempDir(), "1", "final")
	require.NoError(t, model.Dump(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	loaded := new(Linear)
	require.NoError(t, yaml.Unmarshal(b, loaded))
	assert.Equal(t, model, loaded)
}

func TestTrainerRejectsInvalidInput(t *testing.T) {
	results, labels := separable()
	valid := func() TrainInput {
		return TrainInput{
			Negatives:      3,
			Weight:         1,
			Results:        results,
			SupportVectors: data.NewTable(results.Rows(), results.Cols()),
			Labels:         labels,
		}
	}

	for name, mutate := range map[string]func(*TrainInput){
		"negatives": func(in *TrainInput) { in.Negatives = 2 },
		"weight":    func(in *TrainInput) { in.Weight = 0 },
		"labels":    func(in *TrainInput) { in.Labels = in.Labels[1:] },
		"shape":     func(in *TrainInput) { in.SupportVectors = data.NewTable(1, 1) },
		"missing":   func(in *TrainInput) { in.Results = nil },
		"empty": func(in *TrainInput) {
			in.Results, in.SupportVectors, in.Labels, in.Negatives = data.NewTable(0, 1), data.NewTable(0, 1), nil, 0
		},
	} {
		in := valid()
		mutate(&in)
		_, err := Trainer{}.Train(in)
		assert.Error(t, err, name)
	}
}

func TestSolve(t *testing.T) {
	x, err := solve(mat.NewSymDense(2, []float64{4, 2, 2, 3}), mat.NewVecDense(2, []float64{2, 1}))
	require.NoError(t, err)
	assert.InDelta(t, .5, x.AtVec(0), 1e-12)
	assert.InDelta(t, 0., x.AtVec(1), 1e-12)

	_, err = solve(mat.NewSymDense(2, []float64{0, 1, 1, 0}), mat.NewVecDense(2, []float64{1, 1}))
	assert.Error(t, err)
}
