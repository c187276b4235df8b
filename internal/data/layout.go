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

// Group holds the instance counts of a single sample group.
type Group struct {
	Positives int
	Negatives int
}

// Layout describes the global row order of the result table.
type Layout struct {
	Groups []Group
}

// Instances returns the total number of rows.
func (l Layout) Instances() (sum int) {
	for _, group := range l.Groups {
		sum += group.Positives + group.Negatives
	}
	return
}

// Positives returns the total number of positive instances.
func (l Layout) Positives() (sum int) {
	for _, group := range l.Groups {
		sum += group.Positives
	}
	return
}

// Negatives returns the total number of negative instances.
func (l Layout) Negatives() (sum int) {
	for _, group := range l.Groups {
		sum += group.Negatives
	}
	return
}

// Offset returns the first row of the given group.
func (l Layout) Offset(group int) (offset int) {
	for _, g := range l.Groups[:group] {
		offset += g.Positives + g.Negatives
	}
	return
}

// Labels returns +1 for every positive row and -1 for every negative row.
func (l Layout) Labels() []float64 {
	labels := make([]float64, 0, l.Instances())
	for _, group := range l.Groups {
		for index := 0; index < group.Positives; index++ {
			labels = append(labels, 1)
		}
		for index := 0; index < group.Negatives; index++ {
			labels = append(labels, -1)
		}
	}
	return labels
}
