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

package ensemble

import (
	"fmt"

	"github.com/9rum/ensemble/internal/data"
	"github.com/golang/glog"
)

// CountInstances counts the instances of every sample group.  The row layout
// of the result table follows from these counts.
func CountInstances(config Config) (data.Layout, error) {
	groups := make([]data.Group, 0, config.SampleGroups)
	for group := 0; group < config.SampleGroups; group++ {
		positives, err := data.CountLines(config.SamplePath(group, true))
		if err != nil {
			return data.Layout{}, fmt.Errorf("counting sample group %d: %w", group, err)
		}

		from := config.SamplePath(group, false)
		if config.NegativeCount == CountPositivesTwice {
			from = config.SamplePath(group, true)
		}
		negatives, err := data.CountLines(from)
		if err != nil {
			return data.Layout{}, fmt.Errorf("counting sample group %d: %w", group, err)
		}

		groups = append(groups, data.Group{Positives: positives, Negatives: negatives})
	}

	layout := data.Layout{Groups: groups}
	glog.Infof("counted %d positive and %d negative instances in %d sample groups", layout.Positives(), layout.Negatives(), len(groups))
	return layout, nil
}
