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

import "fmt"

// ProtocolError reports a score vector that cannot be scattered into the
// table without breaking the row alignment.
type ProtocolError struct {
	Column int
	Want   int
	Got    int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation: column %d expects %d scores, got %d", e.Column, e.Want, e.Got)
}

// Table is a dense matrix stored in column-major order, so that each column
// is contiguous.  The zero value of every cell is the neutral value.
type Table struct {
	rows int
	cols int
	data []float64
}

// NewTable creates a neutral table of the given shape.
func NewTable(rows, cols int) *Table {
	return &Table{
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols),
	}
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	return t.rows
}

// Cols returns the number of columns.
func (t *Table) Cols() int {
	return t.cols
}

// At returns the value at the given row and column.
func (t *Table) At(row, col int) float64 {
	return t.data[col*t.rows+row]
}

// Set sets the value at the given row and column.
func (t *Table) Set(row, col int, value float64) {
	t.data[col*t.rows+row] = value
}

// Column returns the given column.  The returned slice aliases the table.
func (t *Table) Column(col int) []float64 {
	return t.data[col*t.rows : (col+1)*t.rows]
}

// Row returns a copy of the given row.
func (t *Table) Row(row int) []float64 {
	out := make([]float64, 0, t.cols)
	for col := 0; col < t.cols; col++ {
		out = append(out, t.At(row, col))
	}
	return out
}

// Scatter copies the scores into the given column, row for row.  The number
// of scores must equal the number of rows.
func (t *Table) Scatter(col int, scores []float64) error {
	if col < 0 || t.cols <= col {
		return fmt.Errorf("column %d out of range [0, %d)", col, t.cols)
	}
	if len(scores) != t.rows {
		return &ProtocolError{Column: col, Want: t.rows, Got: len(scores)}
	}
	copy(t.Column(col), scores)
	return nil
}
