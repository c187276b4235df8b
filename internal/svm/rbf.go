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

// Package svm implements the classifiers of the ensemble: the component
// models, reduced support vector classifiers with a Gaussian kernel, and the
// final linear classifier trained on their stacked scores.  Models are
// persisted as YAML documents.
package svm

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/9rum/ensemble/internal/data"
	"gopkg.in/yaml.v3"
)

// RBF is a reduced support vector classifier with a Gaussian kernel.  The
// decision value of an instance x is
//
//	Bias + sum_j Weights[j] * exp(-Gamma * ||x - Vectors[j]||^2).
//
// A reduced vector shorter than the feature dimension is zero-padded.
type RBF struct {
	Gamma   float64     `yaml:"gamma"`
	Bias    float64     `yaml:"bias"`
	Weights []float64   `yaml:"weights"`
	Vectors [][]float64 `yaml:"vectors"`
}

// LoadRBF reads a component model from the given path.
func LoadRBF(path string) (*RBF, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	model, err := UnmarshalRBF(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model, nil
}

// UnmarshalRBF decodes and validates a component model.
func UnmarshalRBF(b []byte) (*RBF, error) {
	model := new(RBF)
	if err := yaml.Unmarshal(b, model); err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// Validate checks that the model can score instances.
func (m *RBF) Validate() error {
	if m.Gamma <= 0 || math.IsInf(m.Gamma, 0) || math.IsNaN(m.Gamma) {
		return fmt.Errorf("invalid gamma %v", m.Gamma)
	}
	if len(m.Weights) != len(m.Vectors) {
		return fmt.Errorf("%d weights but %d reduced vectors", len(m.Weights), len(m.Vectors))
	}
	if len(m.Weights) == 0 {
		return errors.New("empty reduced set")
	}
	return nil
}

// MarshalBinary encodes the model as it is stored on disk.
func (m *RBF) MarshalBinary() ([]byte, error) {
	return yaml.Marshal(m)
}

// Dump writes the model to the given path.
func (m *RBF) Dump(path string) error {
	return dump(path, m)
}

// Score returns the decision value of every row of the given instances.
func (m *RBF) Score(instances *data.Sparse) []float64 {
	norms := make([]float64, 0, len(m.Vectors))
	for _, vector := range m.Vectors {
		norms = append(norms, dot(vector, vector))
	}

	scores := make([]float64, 0, instances.Rows())
	for row := 0; row < instances.Rows(); row++ {
		indices, values := instances.Row(row)
		norm := dot(values, values)

		score := m.Bias
		for j, vector := range m.Vectors {
			product := 0.
			for k, index := range indices {
				if index < len(vector) {
					product += values[k] * vector[index]
				}
			}
			distance := math.Max(norm+norms[j]-2*product, 0)
			score += m.Weights[j] * math.Exp(-m.Gamma*distance)
		}
		scores = append(scores, score)
	}
	return scores
}

func dot(x, y []float64) (sum float64) {
	for index := range x {
		sum += x[index] * y[index]
	}
	return
}

// dump writes the YAML encoding of the given model, creating its directory.
func dump(path string, model any) error {
	b, err := yaml.Marshal(model)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
