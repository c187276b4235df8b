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

// Package data provides primitives for representing the instances scored by
// the component models and the table their scores are stacked into.  Rows of
// the table follow a single global order: sample groups in ascending index
// and, within a group, every positive instance before every negative one.
package data

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// maxLineSize bounds a single line of a sample file.
const maxLineSize = 64 << 20

// Sparse represents a sparse matrix in compressed sparse row format.
type Sparse struct {
	dimension int
	indptr    []int
	indices   []int
	values    []float64
}

// NewSparse creates an empty sparse matrix with the given number of columns.
func NewSparse(dimension int) *Sparse {
	return &Sparse{
		dimension: dimension,
		indptr:    []int{0},
	}
}

// Dimension returns the number of columns.
func (s *Sparse) Dimension() int {
	return s.dimension
}

// Rows returns the number of rows.
func (s *Sparse) Rows() int {
	return len(s.indptr) - 1
}

// Append appends a row with the given zero-based column indices and values.
func (s *Sparse) Append(indices []int, values []float64) error {
	if len(indices) != len(values) {
		return fmt.Errorf("%d indices but %d values", len(indices), len(values))
	}
	for _, index := range indices {
		if index < 0 || s.dimension <= index {
			return fmt.Errorf("column %d out of range [0, %d)", index, s.dimension)
		}
	}
	s.indices = append(s.indices, indices...)
	s.values = append(s.values, values...)
	s.indptr = append(s.indptr, len(s.indices))
	return nil
}

// Row returns the column indices and values of the given row.  The returned
// slices alias the matrix and must not be modified.
func (s *Sparse) Row(row int) (indices []int, values []float64) {
	begin, end := s.indptr[row], s.indptr[row+1]
	return s.indices[begin:end], s.values[begin:end]
}

// ReadSparse reads a sample file where each line is a row of "index:value"
// pairs with one-based indices.  A leading token without a colon is taken as
// a label and ignored, and a blank line is an empty row, so the number of rows
// always equals CountLines of the same file.
func ReadSparse(path string, dimension int) (*Sparse, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	matrix := NewSparse(dimension)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<16), maxLineSize)

	var (
		indices []int
		values  []float64
	)
	for line := 1; scanner.Scan(); line++ {
		indices, values = indices[:0], values[:0]
		for position, token := range strings.Fields(scanner.Text()) {
			colon := strings.IndexByte(token, ':')
			if colon < 0 {
				if position == 0 {
					continue
				}
				return nil, fmt.Errorf("%s:%d: malformed token %q", path, line, token)
			}
			index, err := strconv.Atoi(token[:colon])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: malformed index %q", path, line, token)
			}
			value, err := strconv.ParseFloat(token[colon+1:], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: malformed value %q", path, line, token)
			}
			indices = append(indices, index-1)
			values = append(values, value)
		}
		if err := matrix.Append(indices, values); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return matrix, nil
}
