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
	"errors"
	"fmt"
	"math"

	"github.com/9rum/ensemble/internal/data"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultIterations = 50
	defaultTolerance  = 1e-6

	// armijo is the sufficient decrease constant of the line search.
	armijo = 1e-4
)

// Linear is the final classifier of the ensemble.  Its decision value is
// Bias + sum_c Weights[c] * score_c over the scores of the component models.
type Linear struct {
	Components int       `yaml:"components"`
	Weights    []float64 `yaml:"weights"`
	Bias       float64   `yaml:"bias"`
	Penalty    float64   `yaml:"penalty"`
	Iterations int       `yaml:"iterations"`
}

// Decision returns the decision value of a single row of component scores.
func (m *Linear) Decision(scores []float64) float64 {
	return m.Bias + dot(m.Weights, scores[:len(m.Weights)])
}

// Dump writes the model to the given path.
func (m *Linear) Dump(path string) error {
	return dump(path, m)
}

// TrainInput holds the arguments of the final training.
type TrainInput struct {
	// Negatives is the number of negative instances among the rows.
	Negatives int

	// Weight is the penalty of the margin violations.
	Weight float64

	// Results is the stacked table.  Its last column is overwritten with
	// ones and serves as the bias feature.
	Results *data.Table

	// SupportVectors receives a copy of every row that ends up inside the
	// margin; the other rows are left neutral.
	SupportVectors *data.Table

	// Labels holds +1 or -1 per row.
	Labels []float64
}

func (in TrainInput) validate() error {
	switch {
	case in.Results == nil || in.SupportVectors == nil:
		return errors.New("missing table")
	case in.Results.Rows() == 0 || in.Results.Cols() < 2:
		return fmt.Errorf("empty table of shape %dx%d", in.Results.Rows(), in.Results.Cols())
	case in.Results.Rows() != in.SupportVectors.Rows() || in.Results.Cols() != in.SupportVectors.Cols():
		return fmt.Errorf("support vector table of shape %dx%d does not match %dx%d",
			in.SupportVectors.Rows(), in.SupportVectors.Cols(), in.Results.Rows(), in.Results.Cols())
	case len(in.Labels) != in.Results.Rows():
		return fmt.Errorf("%d labels for %d rows", len(in.Labels), in.Results.Rows())
	case !(0 < in.Weight) || math.IsInf(in.Weight, 0):
		return fmt.Errorf("invalid weight %v", in.Weight)
	}

	negatives := 0
	for _, label := range in.Labels {
		if label < 0 {
			negatives++
		}
	}
	if negatives != in.Negatives {
		return fmt.Errorf("%d negative labels but %d negative instances", negatives, in.Negatives)
	}
	return nil
}

// Trainer trains the final classifier with a finite Newton method on the
// squared hinge loss.  The negative rows are reweighted so that both classes
// carry the same total weight.
type Trainer struct {
	// MaxIterations bounds the number of Newton steps; zero means 50.
	MaxIterations int

	// Tolerance on the gradient norm; zero means 1e-6.
	Tolerance float64
}

// Train fits the final classifier on the given input.
func (t Trainer) Train(in TrainInput) (*Linear, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	iterations, tolerance := t.MaxIterations, t.Tolerance
	if iterations <= 0 {
		iterations = defaultIterations
	}
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}

	rows, cols := in.Results.Rows(), in.Results.Cols()
	bias := in.Results.Column(cols - 1)
	for row := range bias {
		bias[row] = 1
	}

	costs := make([]float64, rows)
	positives := rows - in.Negatives
	for row, label := range in.Labels {
		costs[row] = in.Weight
		if label < 0 && 0 < positives {
			costs[row] *= float64(positives) / float64(in.Negatives)
		}
	}

	p := newProblem(in.Results, in.Labels, costs)
	w := mat.NewVecDense(cols, nil)
	step := 0
	for ; step < iterations; step++ {
		gradient, hessian := p.derivatives(w)
		if mat.Norm(gradient, 2) < tolerance {
			break
		}
		direction, err := solve(hessian, gradient)
		if err != nil {
			return nil, err
		}
		direction.ScaleVec(-1, direction)

		// backtrack until the objective decreases sufficiently
		objective, slope := p.objective(w), mat.Dot(gradient, direction)
		next := mat.NewVecDense(cols, nil)
		for scale := 1.; ; scale /= 2 {
			next.AddScaledVec(w, scale, direction)
			if p.objective(next) <= objective+armijo*scale*slope || scale < 1e-10 {
				break
			}
		}
		w = next
	}
	glog.Infof("final model converged after %d Newton steps", step)

	margins := p.margins(w)
	for row := 0; row < rows; row++ {
		if 0 < margins.AtVec(row) {
			for col := 0; col < cols; col++ {
				in.SupportVectors.Set(row, col, in.Results.At(row, col))
			}
		}
	}

	weights := make([]float64, cols-1)
	for col := range weights {
		weights[col] = w.AtVec(col)
	}
	return &Linear{
		Components: cols - 1,
		Weights:    weights,
		Bias:       w.AtVec(cols - 1),
		Penalty:    in.Weight,
		Iterations: step,
	}, nil
}

// problem is the squared hinge objective
//
//	1/2 ||w||^2 + 1/2 sum_i costs[i] * max(0, 1 - labels[i] * <w, x_i>)^2.
type problem struct {
	x      *mat.Dense
	labels []float64
	costs  []float64
}

func newProblem(table *data.Table, labels, costs []float64) problem {
	x := mat.NewDense(table.Rows(), table.Cols(), nil)
	for col := 0; col < table.Cols(); col++ {
		x.SetCol(col, table.Column(col))
	}
	return problem{x: x, labels: labels, costs: costs}
}

// margins returns 1 - y_i <w, x_i> per row; a row is active when its margin
// is positive.
func (p problem) margins(w *mat.VecDense) *mat.VecDense {
	var margins mat.VecDense
	margins.MulVec(p.x, w)
	for row, label := range p.labels {
		margins.SetVec(row, 1-label*margins.AtVec(row))
	}
	return &margins
}

func (p problem) objective(w *mat.VecDense) float64 {
	sum := mat.Dot(w, w)
	margins := p.margins(w)
	for row := range p.labels {
		if margin := margins.AtVec(row); 0 < margin {
			sum += p.costs[row] * margin * margin
		}
	}
	return sum / 2
}

// derivatives returns the gradient and the generalized Hessian at w.
func (p problem) derivatives(w *mat.VecDense) (*mat.VecDense, *mat.SymDense) {
	cols := w.Len()
	gradient := mat.VecDenseCopyOf(w)
	hessian := mat.NewSymDense(cols, nil)
	for col := 0; col < cols; col++ {
		hessian.SetSym(col, col, 1)
	}

	margins := p.margins(w)
	for row := range p.labels {
		margin := margins.AtVec(row)
		if margin <= 0 {
			continue
		}
		x := p.x.RowView(row)
		gradient.AddScaledVec(gradient, -p.costs[row]*p.labels[row]*margin, x)
		hessian.SymRankOne(hessian, p.costs[row], x)
	}
	return gradient, hessian
}

// solve solves a x = b for a symmetric positive definite a.  An ill
// conditioned a still yields its solution.
func solve(a *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, errors.New("matrix is not positive definite")
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		var condition mat.Condition
		if !errors.As(err, &condition) {
			return nil, err
		}
		glog.Warningf("solving the Newton system: %v", err)
	}
	return &x, nil
}
